package card

import (
	"strings"

	"github.com/matzehuels/linkcard/pkg/errors"
)

// Format is an output image format.
type Format string

// Supported output formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatSVG  Format = "svg"
)

// NativeFormat is the format the vector rasterizer and the browser capture
// produce without the bitmap encoder. It is also the downgrade target.
const NativeFormat = FormatPNG

var formatInfo = map[Format]struct {
	contentType string
	ext         string
	lossless    bool
}{
	FormatPNG:  {"image/png", "png", true},
	FormatJPEG: {"image/jpeg", "jpg", false},
	FormatGIF:  {"image/gif", "gif", true},
	FormatTIFF: {"image/tiff", "tiff", true},
	FormatBMP:  {"image/bmp", "bmp", true},
	FormatSVG:  {"image/svg+xml", "svg", true},
}

// Formats returns all supported formats in a stable order.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatGIF, FormatTIFF, FormatBMP, FormatSVG}
}

// ParseFormat parses a format name or file extension ("jpg", ".png").
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(s, "."))
	switch s {
	case "jpg":
		return FormatJPEG, nil
	case "tif":
		return FormatTIFF, nil
	}
	f := Format(s)
	if _, ok := formatInfo[f]; !ok {
		return "", errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: png, jpeg, gif, tiff, bmp, svg)", s)
	}
	return f, nil
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	_, ok := formatInfo[f]
	return ok
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if info, ok := formatInfo[f]; ok {
		return info.contentType
	}
	return "application/octet-stream"
}

// Extension returns the canonical file extension without a dot.
func (f Format) Extension() string {
	if info, ok := formatInfo[f]; ok {
		return info.ext
	}
	return string(f)
}

// Lossless reports whether f preserves pixels exactly.
func (f Format) Lossless() bool {
	return formatInfo[f].lossless
}

// IsVector reports whether f is a vector format.
func (f Format) IsVector() bool {
	return f == FormatSVG
}

// NeedsEncoder reports whether producing f from a rasterized bitmap requires
// the bitmap encoder.
func (f Format) NeedsEncoder() bool {
	return f.Valid() && f != NativeFormat && f != FormatSVG
}
