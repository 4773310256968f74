package resolver

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/stretchr/testify/require"
)

func prop(name, path, ref string) *entity.Property {
	return &entity.Property{
		Name:    name,
		Path:    path,
		Ref:     ref,
		RootDir: "/webroot/" + name,
	}
}

func TestIndexResolve(t *testing.T) {
	idx := BuildIndex([]*entity.Property{
		prop("foo", "/foo", "v1"),
		prop("fooadmin", "/foo/admin", "v1"),
		prop("bar", "/bar", "v2"),
	})

	testCases := []struct {
		name              string
		requestPath       string
		expectedProp      string
		expectedRemainder string
		expectNotFound    bool
	}{
		{name: "Exact match", requestPath: "/foo", expectedProp: "foo", expectedRemainder: ""},
		{name: "Trailing slash", requestPath: "/foo/", expectedProp: "foo", expectedRemainder: ""},
		{name: "Sub path", requestPath: "/foo/static/app.js", expectedProp: "foo", expectedRemainder: "static/app.js"},
		{name: "Longest prefix wins", requestPath: "/foo/admin/users", expectedProp: "fooadmin", expectedRemainder: "users"},
		{name: "Longest prefix exact", requestPath: "/foo/admin", expectedProp: "fooadmin", expectedRemainder: ""},
		{name: "Segment boundary", requestPath: "/foobar", expectNotFound: true},
		{name: "Duplicate slashes collapsed", requestPath: "//foo///static//app.js", expectedProp: "foo", expectedRemainder: "static/app.js"},
		{name: "Other property", requestPath: "/bar/x", expectedProp: "bar", expectedRemainder: "x"},
		{name: "Unmounted path", requestPath: "/baz", expectNotFound: true},
		{name: "Root request unmounted", requestPath: "/", expectNotFound: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, remainder, err := idx.Resolve(tc.requestPath)
			if tc.expectNotFound {
				require.ErrorIs(t, err, common.ErrPathNotFoundError)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectedProp, p.Name)
			require.Equal(t, tc.expectedRemainder, remainder)
		})
	}
}

func TestIndexResolveRootProperty(t *testing.T) {
	idx := BuildIndex([]*entity.Property{
		prop("root", "/", "v1"),
		prop("foo", "/foo", "v1"),
	})

	p, remainder, err := idx.Resolve("/anything/else")
	require.NoError(t, err)
	require.Equal(t, "root", p.Name)
	require.Equal(t, "anything/else", remainder)

	p, remainder, err = idx.Resolve("/foo/app.js")
	require.NoError(t, err)
	require.Equal(t, "foo", p.Name)
	require.Equal(t, "app.js", remainder)

	p, remainder, err = idx.Resolve("/")
	require.NoError(t, err)
	require.Equal(t, "root", p.Name)
	require.Empty(t, remainder)
}

func TestBuildIndexDuplicatePathLastWins(t *testing.T) {
	idx := BuildIndex([]*entity.Property{
		prop("old", "/foo", "v1"),
		prop("new", "/foo", "v2"),
	})

	require.Equal(t, 1, idx.Size())

	p, _, err := idx.Resolve("/foo")
	require.NoError(t, err)
	require.Equal(t, "new", p.Name)
	require.Equal(t, "v2", p.Ref)
}

type fakeStorage struct {
	props []*entity.Property
	err   error
}

func (f *fakeStorage) Scan(_ context.Context) ([]*entity.Property, error) {
	return f.props, f.err
}

type fakeRepo struct {
	records []entity.DeployRecord
}

func (f *fakeRepo) Record(_ context.Context, records []entity.DeployRecord) error {
	f.records = append(f.records, records...)

	return nil
}

func newTestService(store PropertyStorage, repo DeployRepository) *ResolverService {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewResolverService(store, repo, log)
}

func TestResolverServiceNotReady(t *testing.T) {
	srv := newTestService(&fakeStorage{}, nil)

	_, _, err := srv.Resolve("/foo")
	require.ErrorIs(t, err, common.ErrIndexNotReadyError)
	require.Equal(t, -1, srv.Size())
}

func TestResolverServiceReload(t *testing.T) {
	store := &fakeStorage{props: []*entity.Property{prop("foo", "/foo", "v1")}}
	repo := &fakeRepo{}
	srv := newTestService(store, repo)

	require.NoError(t, srv.Reload(context.Background()))
	require.Equal(t, 1, srv.Size())

	p, _, err := srv.Resolve("/foo")
	require.NoError(t, err)
	require.Equal(t, "v1", p.Ref)

	require.Len(t, repo.records, 1)
	require.Equal(t, "v1", repo.records[0].Ref)

	// Requests holding the old snapshot keep working while a new one is
	// published.
	oldIdx := srv.idx.Load()

	store.props = []*entity.Property{prop("foo", "/foo", "v2")}
	require.NoError(t, srv.Reload(context.Background()))

	p, _, err = oldIdx.Resolve("/foo")
	require.NoError(t, err)
	require.Equal(t, "v1", p.Ref)

	p, _, err = srv.Resolve("/foo")
	require.NoError(t, err)
	require.Equal(t, "v2", p.Ref)

	// Only the changed ref is recorded.
	require.Len(t, repo.records, 2)
	require.Equal(t, "v2", repo.records[1].Ref)
}

func TestResolverServiceReloadUnchangedRefNotRecorded(t *testing.T) {
	store := &fakeStorage{props: []*entity.Property{prop("foo", "/foo", "v1")}}
	repo := &fakeRepo{}
	srv := newTestService(store, repo)

	require.NoError(t, srv.Reload(context.Background()))
	require.NoError(t, srv.Reload(context.Background()))

	require.Len(t, repo.records, 1)
}

func TestResolverServiceTryReloadBusy(t *testing.T) {
	srv := newTestService(&fakeStorage{}, nil)

	srv.reloadMu.Lock()
	defer srv.reloadMu.Unlock()

	err := srv.TryReload(context.Background())
	require.ErrorIs(t, err, common.ErrScanProcessHasAlreadyStarted)
}
