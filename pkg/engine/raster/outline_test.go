package raster

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/linkcard/pkg/card"
)

func testFaces(t *testing.T) *faceSet {
	t.Helper()
	s, err := newFaceSet([]card.FontFace{
		{Descriptor: card.FontDescriptor{Name: "Go", Weight: 400}, Data: goregular.TTF},
		{Descriptor: card.FontDescriptor{Name: "Go", Weight: 700}, Data: gobold.TTF},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFaceSetPick(t *testing.T) {
	s := testFaces(t)

	if got := s.pick(`"Brand", Go`, 700); got != s.faces[1].font {
		t.Error("pick() should use the closest weight of the first known family")
	}
	if got := s.pick("go", 300); got != s.faces[0].font {
		t.Error("pick() should match families case-insensitively")
	}
	if got := s.pick("Unknown", 700); got != s.faces[0].font {
		t.Error("pick() should fall back to the first face")
	}
}

func TestNewFaceSetDefaults(t *testing.T) {
	s, err := newFaceSet(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.faces) != 1 || s.faces[0].name != "go" {
		t.Errorf("faces = %+v, want the Go fallback", s.faces)
	}

	if _, err := newFaceSet([]card.FontFace{{Descriptor: card.FontDescriptor{Name: "Bad"}, Data: []byte("nope")}}); err == nil {
		t.Error("newFaceSet() should reject unparseable font data")
	}
}

func TestOutlineText(t *testing.T) {
	in := `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100">` +
		`<g font-family="Go" font-size="24"><text x="10" y="40" fill="red" class="title">Hi <tspan>there</tspan></text></g>` +
		`<rect width="10" height="10"/></svg>`

	out, err := outlineText([]byte(in), testFaces(t))
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if strings.Contains(s, "<text") || strings.Contains(s, "tspan") {
		t.Errorf("text elements left behind: %s", s)
	}
	for _, want := range []string{
		`<path fill="red" class="title" d="M`,
		`<g font-family="Go" font-size="24">`,
		`<rect width="10" height="10"/>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("outlineText() missing %q in %s", want, s)
		}
	}
	if strings.Contains(s, `x="10"`) {
		t.Errorf("position attributes should be consumed: %s", s)
	}
}

func TestOutlineTextAnchor(t *testing.T) {
	faces := testFaces(t)
	outline := func(anchor string) string {
		t.Helper()
		in := `<svg><text x="100" y="50" text-anchor="` + anchor + `">Go</text></svg>`
		out, err := outlineText([]byte(in), faces)
		if err != nil {
			t.Fatal(err)
		}
		return string(out)
	}
	if outline("start") == outline("middle") || outline("middle") == outline("end") {
		t.Error("text-anchor should shift the outline")
	}
}

func TestOutlineTextDropsEmpty(t *testing.T) {
	out, err := outlineText([]byte(`<svg><text x="1" y="2">   </text><text/></svg>`), testFaces(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(out); got != "<svg></svg>" {
		t.Errorf("outlineText() = %q, want empty svg", got)
	}
}

func TestOutlineTextUnterminated(t *testing.T) {
	if _, err := outlineText([]byte(`<svg><text>Hi`), testFaces(t)); err == nil {
		t.Error("outlineText() should fail on an unterminated text element")
	}
}

func TestRasterizeDrawsText(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100" viewBox="0 0 200 100">` +
		`<defs><style>@font-face{font-family:"Go";src:url(data:font/ttf;base64,AAEAAA==) format("truetype");}</style></defs>` +
		`<text x="10" y="70" font-family="Go" font-size="64" fill="#000">Go</text></svg>`

	fonts := []card.FontFace{{Descriptor: card.FontDescriptor{Name: "Go", Weight: 400}, Data: goregular.TTF}}
	out, err := (&Engine{}).Rasterize(t.Context(), []byte(svg), 200, 100, fonts, nil)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("size = %dx%d, want 200x100", b.Dx(), b.Dy())
	}

	inked := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Error("text was not drawn")
	}
}

func TestRasterizeUnknownFamilyDoesNotPanic(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50"><text x="5" y="30" font-family="Nowhere Sans">Hi</text></svg>`
	if _, err := (&Engine{}).Rasterize(t.Context(), []byte(svg), 100, 50, nil, nil); err != nil {
		t.Errorf("Rasterize() = %v, want the fallback face", err)
	}
}
