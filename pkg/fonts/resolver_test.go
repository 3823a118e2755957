package fonts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/errors"
)

// fontServer mimics the CSS API: /css2 returns a stylesheet pointing at
// /files/<family>.ttf, which serves font bytes.
type fontServer struct {
	*httptest.Server
	cssHits  atomic.Int32
	fileHits atomic.Int32
}

func newFontServer(t *testing.T) *fontServer {
	t.Helper()
	fs := &fontServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/css2", func(w http.ResponseWriter, r *http.Request) {
		fs.cssHits.Add(1)
		family := r.URL.Query().Get("family")
		if family == "Missing:wght@400" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "@font-face {\n  font-family: 'X';\n  src: url(%s/files/font.ttf) format('truetype');\n}\n", fs.URL)
	})
	mux.HandleFunc("/files/font.ttf", func(w http.ResponseWriter, r *http.Request) {
		fs.fileHits.Add(1)
		_, _ = w.Write(gobold.TTF)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestResolver(fs *fontServer, c cache.Cache) *Resolver {
	r := NewResolver(c, quietLogger())
	r.CSSURL = fs.URL + "/css2"
	return r
}

func TestLoadEmbedded(t *testing.T) {
	r := NewResolver(nil, quietLogger())

	f, err := r.Load(context.Background(), DefaultDescriptor())

	require.NoError(t, err)
	assert.Equal(t, FormatTrueType, f.Format)
	assert.NotEmpty(t, f.Data)
}

func TestLoadEmbeddedMissing(t *testing.T) {
	r := NewResolver(nil, quietLogger())

	_, err := r.Load(context.Background(), card.FontDescriptor{Name: "X", Weight: 400, Embedded: "nope"})

	assert.True(t, errors.Is(err, errors.ErrCodeFontNotFound), "got %v", err)
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brand.ttf"), gobold.TTF, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.ttf"), []byte("nope"), 0644))

	r := NewResolver(nil, quietLogger())
	r.BaseDir = dir

	f, err := r.Load(context.Background(), card.FontDescriptor{Name: "Brand", Weight: 700, Path: "brand.ttf"})
	require.NoError(t, err)
	assert.Equal(t, gobold.TTF, f.Data)

	_, err = r.Load(context.Background(), card.FontDescriptor{Name: "Bad", Weight: 400, Path: "bad.ttf"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFont), "got %v", err)

	_, err = r.Load(context.Background(), card.FontDescriptor{Name: "Gone", Weight: 400, Path: "gone.ttf"})
	assert.True(t, errors.Is(err, errors.ErrCodeFontNotFound), "got %v", err)

	_, err = r.Load(context.Background(), card.FontDescriptor{Name: "Up", Weight: 400, Path: "../etc/font.ttf"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
}

func TestLoadPrefersLocalOverRemote(t *testing.T) {
	fs := newFontServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ttf"), gobold.TTF, 0644))

	r := newTestResolver(fs, nil)
	r.BaseDir = dir
	_, err := r.Load(context.Background(), card.FontDescriptor{Name: "A", Weight: 700, Path: "a.ttf", Remote: "A:700"})

	require.NoError(t, err)
	assert.Zero(t, fs.cssHits.Load(), "remote source should not be used")
}

func TestLoadRemote(t *testing.T) {
	fs := newFontServer(t)
	store := cache.NewMemoryCache()
	r := newTestResolver(fs, store)

	d, err := card.ParseFontShorthand("Inter:700")
	require.NoError(t, err)

	f, err := r.Load(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, gobold.TTF, f.Data)
	assert.Equal(t, int32(1), fs.cssHits.Load())

	// Memoized in process.
	_, err = r.Load(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.fileHits.Load())

	// A fresh resolver sharing the cache does not refetch.
	r2 := newTestResolver(fs, store)
	_, err = r2.Load(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.fileHits.Load())
}

func TestLoadRemoteConcurrent(t *testing.T) {
	fs := newFontServer(t)
	r := newTestResolver(fs, nil)
	d, _ := card.ParseFontShorthand("Inter:700")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Load(context.Background(), d)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, fs.fileHits.Load(), int32(1))
}

func TestLoadRemoteNotFound(t *testing.T) {
	fs := newFontServer(t)
	r := newTestResolver(fs, nil)
	d, _ := card.ParseFontShorthand("Missing")

	_, err := r.Load(context.Background(), d)

	assert.True(t, errors.Is(err, errors.ErrCodeFontNotFound), "got %v", err)
	assert.Equal(t, int32(1), fs.cssHits.Load(), "not found is not retried")
}

func TestLoadRemoteSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	var fileHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/css2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "src: url(%s/files/font.ttf) format('truetype');", srv.URL)
	})
	mux.HandleFunc("/files/font.ttf", func(w http.ResponseWriter, r *http.Request) {
		fileHits.Add(1)
		<-release
		_, _ = w.Write(gobold.TTF)
	})

	r := NewResolver(nil, quietLogger())
	r.CSSURL = srv.URL + "/css2"
	d, _ := card.ParseFontShorthand("Inter:700")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Load(ctx, d)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fileHits.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := r.Load(context.Background(), d)
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.NoError(t, <-secondErr, "a joined caller must not fail with the first caller's context")
	assert.Equal(t, int32(1), fileHits.Load())
}

func TestLoadAll(t *testing.T) {
	r := NewResolver(nil, quietLogger())

	faces, err := r.LoadAll(context.Background(), []card.FontDescriptor{
		{Name: "Go", Weight: 400, Embedded: "go-regular"},
		{Name: "Go", Weight: 700, Embedded: "go-bold"},
	})
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, 700, faces[1].Descriptor.Weight)

	_, err = r.LoadAll(context.Background(), []card.FontDescriptor{{Name: "X", Weight: 400, Embedded: "nope"}})
	assert.Error(t, err)
}

func TestFontURL(t *testing.T) {
	tests := []struct {
		css  string
		want string
	}{
		{`src: url(https://x/a.ttf) format('truetype');`, "https://x/a.ttf"},
		{`src:url('https://x/b.otf')`, "https://x/b.otf"},
		{`src: url("https://x/c.ttf")`, "https://x/c.ttf"},
	}
	for _, tt := range tests {
		got, err := fontURL([]byte(tt.css))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := fontURL([]byte("body{}"))
	assert.Error(t, err)
}
