package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/observability"
	"github.com/matzehuels/linkcard/pkg/template"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"serve", "render", "prerender", "templates", "compat", "fonts", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, path := range [][]string{{"fonts", "prefetch"}, {"cache", "clear"}, {"cache", "path"}} {
		if cmd, _, err := root.Find(path); err != nil || cmd.Name() != path[1] {
			t.Errorf("subcommand %v not registered", path)
		}
	}
}

func TestRouteNames(t *testing.T) {
	tests := []struct {
		route string
		slug  string
		file  string
	}{
		{"/", "index", "index.png"},
		{"/blog/hello", "blog-hello", filepath.Join("blog", "hello") + ".png"},
		{"/about", "about", "about.png"},
	}
	for _, tt := range tests {
		if got := routeSlug(tt.route); got != tt.slug {
			t.Errorf("routeSlug(%q) = %q, want %q", tt.route, got, tt.slug)
		}
		if got := routeFile(tt.route, card.FormatPNG); got != tt.file {
			t.Errorf("routeFile(%q) = %q, want %q", tt.route, got, tt.file)
		}
	}
	if got := routeFile("/a", card.FormatJPEG); got != "a.jpg" {
		t.Errorf("routeFile jpeg = %q", got)
	}
}

func TestApplyRenderFlags(t *testing.T) {
	c := New(io.Discard, LogInfo)
	cmd := c.renderCommand()
	if err := cmd.ParseFlags([]string{"--format", "jpg", "--width", "800", "--template", "article"}); err != nil {
		t.Fatal(err)
	}

	opts := renderOpts{}
	opts.format, _ = cmd.Flags().GetString("format")
	opts.width, _ = cmd.Flags().GetInt("width")
	opts.height, _ = cmd.Flags().GetInt("height")
	opts.template, _ = cmd.Flags().GetString("template")

	base := card.DefaultOptions()
	base.Height = 400
	got, err := applyRenderFlags(cmd, base, &opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != card.FormatJPEG || got.Width != 800 || got.Template != "article" {
		t.Errorf("got %+v", got)
	}
	if got.Height != 400 {
		t.Errorf("unset --height changed height to %d", got.Height)
	}

	opts.format = "webp"
	if _, err := applyRenderFlags(cmd, base, &opts); err == nil {
		t.Error("webp should be rejected")
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range compat.Phases() {
		if _, err := parsePhase(string(p)); err != nil {
			t.Errorf("parsePhase(%q): %v", p, err)
		}
	}
	if _, err := parsePhase("staging"); err == nil {
		t.Error("unknown phase should fail")
	}
}

func TestReconcileDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[defaults]
renderer = "screenshot"
format = "jpeg"

[[pages]]
route = "/a"

[pages.options]
format = "jpeg"
`))
	if err != nil {
		t.Fatal(err)
	}
	m := compat.NewMatrix(map[compat.Phase][]compat.Engine{
		compat.PhaseRuntime: {compat.EngineVector, compat.EngineRasterizer},
	})

	warnings, err := reconcileDefaults(cfg, m, compat.PhaseRuntime)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 || !strings.HasPrefix(warnings[0], "defaults: ") {
		t.Errorf("warnings = %q, want defaults warnings", warnings)
	}

	home, err := cfg.Options("/")
	if err != nil {
		t.Fatal(err)
	}
	if home.Renderer != card.ModeVector || home.Format != card.FormatPNG {
		t.Errorf("defaults = %s/%s, want vector/png", home.Renderer, home.Format)
	}

	// Explicit page options are kept and only reported.
	page, err := cfg.Options("/a")
	if err != nil {
		t.Fatal(err)
	}
	if page.Format != card.FormatJPEG {
		t.Errorf("page format = %s, want jpeg as configured", page.Format)
	}
	if w := reconcileWarnings(cfg, m, compat.PhaseRuntime); len(w) != 1 || !strings.HasPrefix(w[0], "/a: ") {
		t.Errorf("page warnings = %q", w)
	}
}

func TestCacheDir(t *testing.T) {
	dir, err := cacheDir(cache.Config{})
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if !strings.HasSuffix(dir, appName) {
		t.Errorf("cacheDir() = %q, should end with %q", dir, appName)
	}

	dir, err = cacheDir(cache.Config{Dir: "/tmp/cards"})
	if err != nil || dir != "/tmp/cards" {
		t.Errorf("cacheDir() = %q, %v, want configured dir", dir, err)
	}
}

func TestRenderStats(t *testing.T) {
	line := renderStats(card.FormatPNG, card.ModeVector, 2048, true, true)
	for _, want := range []string{"png", "vector", "2.0 KB", iconFallback, iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("renderStats = %q, missing %q", line, want)
		}
	}
	if line := renderStats(card.FormatPNG, card.ModeVector, 10, false, false); !strings.Contains(line, iconFresh) {
		t.Errorf("renderStats = %q, want fresh", line)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int]string{
		512:     "512 B",
		1536:    "1.5 KB",
		3 << 20: "3.0 MB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestMatrixTable(t *testing.T) {
	m := compat.NewMatrix(map[compat.Phase][]compat.Engine{
		compat.PhaseRuntime: {compat.EngineVector},
	})
	out := matrixTable(m)
	for _, p := range compat.Phases() {
		if !strings.Contains(out, string(p)) {
			t.Errorf("table missing phase %s", p)
		}
	}
	if !strings.Contains(out, iconSuccess) || !strings.Contains(out, iconError) {
		t.Error("table should mark available and unavailable engines")
	}
}

func TestTemplateListModel(t *testing.T) {
	infos := []template.Info{
		{ID: "article", Kind: "html", Hash: "aaaaaaaaaaaa", Origin: "builtin"},
		{ID: "basic", Kind: "svg", Hash: "bbbbbbbbbbbb", Origin: "builtin"},
	}
	var m tea.Model = NewTemplateListModel(infos)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(TemplateListModel).Cursor; got != 1 {
		t.Errorf("cursor = %d, want 1 (clamped)", got)
	}
	if !strings.Contains(m.View(), "basic") {
		t.Error("view should list templates")
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	sel := m.(TemplateListModel).Selected
	if sel == nil || sel.ID != "basic" {
		t.Errorf("selected = %+v, want basic", sel)
	}
	if cmd == nil {
		t.Error("enter should quit")
	}

	m, _ = NewTemplateListModel(infos).Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(TemplateListModel).Selected != nil {
		t.Error("esc should not select")
	}
}

func TestCompletionCommand(t *testing.T) {
	t.Cleanup(observability.Reset)

	for _, shell := range completionShells {
		t.Run(shell, func(t *testing.T) {
			root := New(io.Discard, LogInfo).RootCommand()
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"completion", shell})
			if err := root.Execute(); err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if !strings.Contains(buf.String(), appName) {
				t.Errorf("%s script does not mention %s", shell, appName)
			}
		})
	}

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("unknown shell should fail")
	}
}
