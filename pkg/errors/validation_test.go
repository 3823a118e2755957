package errors

import (
	"testing"
)

func TestValidateRoute(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"root", "/", false},
		{"nested", "/blog/hello-world", false},
		{"no leading slash", "about", false},

		{"empty", "", true},
		{"too long", "/" + string(make([]byte, 600)), true},
		{"path traversal ..", "/blog/../secret", true},
		{"double slash", "/blog//post", true},
		{"backslash", "/blog\\post", true},
		{"newline", "/blog\npost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoute(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoute(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "fonts/inter.ttf", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "fonts/../../etc", true},
		{"backslash", "fonts\\inter.ttf", true},
		{"null", "fonts\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTemplateID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"basic", false},
		{"blog/post", false},
		{"hero_2", false},
		{"", true},
		{"Basic", true},
		{"../basic", true},
		{"blog/", true},
	}

	for _, tt := range tests {
		err := ValidateTemplateID(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTemplateID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateFontName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"Inter", false},
		{"Noto Sans", false},
		{"JetBrains-Mono", false},
		{"", true},
		{"../Inter", true},
		{"Inter;drop", true},
	}

	for _, tt := range tests {
		err := ValidateFontName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFontName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://cdn.jsdelivr.net/fontsource"); err != nil {
		t.Errorf("https URL should pass: %v", err)
	}
	if err := ValidateURL("ftp://example.com"); err == nil {
		t.Error("ftp URL should fail")
	}
	if err := ValidateURL(""); err == nil {
		t.Error("empty URL should fail")
	}
}
