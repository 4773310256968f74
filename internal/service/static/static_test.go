package static

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/config"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, files map[string]string) *staticService {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.ScannerConfig.WorkDir = "/webroot"

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewStaticServiceWithFS(fs, &cfg.ScannerConfig, log)
}

func readAsset(t *testing.T, a *Asset) string {
	t.Helper()
	defer a.Close()

	data, err := io.ReadAll(a.File)
	require.NoError(t, err)

	return string(data)
}

func TestOpen(t *testing.T) {
	srv := newTestService(t, map[string]string{
		"/webroot/foo/index.html":      "I AM FOO",
		"/webroot/foo/static/app.js":   "console.log(1)",
		"/webroot/foo/docs/index.html": "DOCS",
	})

	single := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo", Single: true}
	plain := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo", Single: false}

	testCases := []struct {
		name            string
		prop            *entity.Property
		remainder       string
		expectedContent string
		expectFallback  bool
		expectedErr     error
	}{
		{name: "Empty remainder serves index", prop: single, remainder: "", expectedContent: "I AM FOO"},
		{name: "Exact file", prop: single, remainder: "static/app.js", expectedContent: "console.log(1)"},
		{name: "Directory serves nested index", prop: single, remainder: "docs", expectedContent: "DOCS"},
		{name: "SPA fallback on missing file", prop: single, remainder: "users/42", expectedContent: "I AM FOO", expectFallback: true},
		{name: "No fallback when not single", prop: plain, remainder: "users/42", expectedErr: common.ErrAssetNotFoundError},
		{name: "Traversal rejected", prop: single, remainder: "../../etc/passwd", expectedErr: common.ErrTraversalRejectedError},
		{name: "Traversal rejected mid path", prop: single, remainder: "static/../../secret", expectedErr: common.ErrTraversalRejectedError},
		{name: "Backslash rejected", prop: single, remainder: `..\..\etc\passwd`, expectedErr: common.ErrTraversalRejectedError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			asset, err := srv.Open(tc.prop, tc.remainder)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectFallback, asset.Fallback)
			require.Equal(t, tc.expectedContent, readAsset(t, asset))
		})
	}
}

func TestOpenMissingIndex(t *testing.T) {
	srv := newTestService(t, map[string]string{
		"/webroot/foo/app.js": "console.log(1)",
	})

	single := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo", Single: true}

	// Root request with no index page.
	_, err := srv.Open(single, "")
	require.ErrorIs(t, err, common.ErrAssetNotFoundError)

	// SPA fallback target itself is missing.
	_, err = srv.Open(single, "missing")
	require.ErrorIs(t, err, common.ErrAssetNotFoundError)
}

func TestOpenContentType(t *testing.T) {
	srv := newTestService(t, map[string]string{
		"/webroot/foo/app.js":     "console.log(1)",
		"/webroot/foo/data.bin":   "\x00\x01\x02\x03",
		"/webroot/foo/index.html": "<html></html>",
	})

	p := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo"}

	asset, err := srv.Open(p, "app.js")
	require.NoError(t, err)
	require.Contains(t, asset.ContentType, "javascript")
	require.NoError(t, asset.Close())

	asset, err = srv.Open(p, "data.bin")
	require.NoError(t, err)
	require.Equal(t, mimeTypeUnknown, asset.ContentType)
	require.NoError(t, asset.Close())
}

type failingFs struct {
	afero.Fs
}

func (f *failingFs) Stat(name string) (os.FileInfo, error) {
	return nil, fmt.Errorf("stat %s: input/output error", name)
}

func TestOpenIOError(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.ScannerConfig.WorkDir = "/webroot"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/webroot/foo/index.html", []byte("I AM FOO"), 0o644))

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	srv := NewStaticServiceWithFS(&failingFs{Fs: fs}, &cfg.ScannerConfig, log)

	p := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo", Single: true}

	// An IO failure must surface as an error, never degrade into a
	// not-found or an SPA fallback.
	_, err := srv.Open(p, "app.js")
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrAssetNotFoundError)

	_, err = srv.Open(p, "")
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrAssetNotFoundError)
}

func TestOpenIdempotent(t *testing.T) {
	srv := newTestService(t, map[string]string{
		"/webroot/foo/index.html": "I AM FOO",
	})

	p := &entity.Property{Name: "foo", Path: "/foo", RootDir: "/webroot/foo", Single: true}

	first, err := srv.Open(p, "")
	require.NoError(t, err)

	second, err := srv.Open(p, "")
	require.NoError(t, err)

	require.Equal(t, readAsset(t, first), readAsset(t, second))
}
