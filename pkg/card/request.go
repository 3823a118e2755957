package card

// Request is one image-generation request for a page.
type Request struct {
	// Route is the page route the image is for, e.g. "/blog/hello".
	Route string
	// Options are the merged render options for the page.
	Options RenderOptions
	// Props are passed to the template.
	Props map[string]any
}

// TreeKind describes the language of a resolved visual tree.
type TreeKind string

const (
	// TreeMarkup is SVG markup.
	TreeMarkup TreeKind = "markup"
	// TreeHTML is an HTML document or fragment. It can only be screenshotted.
	TreeHTML TreeKind = "html"
	// TreeDOT is a Graphviz DOT graph.
	TreeDOT TreeKind = "dot"
)

// TemplateRef identifies the template a context was built from.
type TemplateRef struct {
	ID   string
	Hash string
	Kind TreeKind
}

// RenderContext is the fully resolved input to a render call. It is built
// fresh per request and passed by value; engines must not modify it.
type RenderContext struct {
	Template TemplateRef
	Tree     string
	Fonts    []FontFace
	Width    int
	Height   int
	Emoji    Emoji
	Engines  map[string]map[string]any
}

// EngineOptions returns the override map for one engine.
func (c RenderContext) EngineOptions(engine string) EngineOptions {
	return EngineOptions(c.Engines[engine])
}

// Image is an encoded render result.
type Image struct {
	Data []byte
	// Format is the format actually produced.
	Format Format
	// Requested is the format the request asked for.
	Requested Format
	// Mode is the strategy that produced the image.
	Mode Mode
	// FellBack is set when the image came from the one-shot fallback.
	FellBack bool
}

// ContentType returns the MIME type of the produced bytes.
func (i Image) ContentType() string {
	return i.Format.ContentType()
}

// Downgraded reports whether the produced format differs from the requested
// one (the FormatDowngraded annotation).
func (i Image) Downgraded() bool {
	return i.Requested != "" && i.Format != i.Requested
}
