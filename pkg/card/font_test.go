package card

import "testing"

func TestParseFontShorthand(t *testing.T) {
	d, err := ParseFontShorthand("Inter:700")
	if err != nil {
		t.Fatalf("ParseFontShorthand: %v", err)
	}
	if d.Name != "Inter" || d.Weight != 700 || d.Remote != "Inter:700" {
		t.Errorf("got %+v", d)
	}
	if d.Source() != FontSourceRemote {
		t.Errorf("Source = %v, want remote", d.Source())
	}

	d, err = ParseFontShorthand("Noto Sans")
	if err != nil {
		t.Fatalf("ParseFontShorthand: %v", err)
	}
	if d.Weight != DefaultFontWeight || d.Remote != "Noto Sans:400" {
		t.Errorf("got %+v", d)
	}

	for _, bad := range []string{"", "Inter:bold", "Inter:1000", "../x:400"} {
		if _, err := ParseFontShorthand(bad); err == nil {
			t.Errorf("ParseFontShorthand(%q) should fail", bad)
		}
	}
}

func TestFontSourcePrecedence(t *testing.T) {
	d := FontDescriptor{Name: "Inter", Weight: 400, Path: "a.ttf", Embedded: "go-regular", Remote: "Inter:400"}
	if d.Source() != FontSourceLocal {
		t.Errorf("Source = %v, want local", d.Source())
	}
	if d.SourceCount() != 3 {
		t.Errorf("SourceCount = %d", d.SourceCount())
	}

	c := d.Collapse()
	if c.Path != "a.ttf" || c.Embedded != "" || c.Remote != "" {
		t.Errorf("Collapse = %+v", c)
	}

	d.Path = ""
	if d.Collapse().Embedded != "go-regular" || d.Collapse().Remote != "" {
		t.Errorf("embedded should beat remote: %+v", d.Collapse())
	}
}
