package pathcodec

import (
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "root", in: "/", want: "/"},
		{name: "empty is root", in: "", want: "/"},
		{name: "lowercase", in: "/Docs/API", want: "/docs/api"},
		{name: "trailing slash", in: "/docs/", want: "/docs"},
		{name: "many trailing slashes", in: "/docs///", want: "/docs"},
		{name: "root with slashes", in: "//", want: "/"},
		{name: "inner slashes", in: "/a//b", want: "/a/b"},
		{name: "dots inside a segment", in: "/v1..2/.config", want: "/v1..2/.config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, in := range []string{"docs", "/a/../b", "/a/./b", "/..", "/docs/.", "/a//../b/"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, apperr.ErrInvalidPath, in)
	}
}

func TestPrefixes(t *testing.T) {
	got, err := Prefixes("/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c"}, got)
	assert.Equal(t, "/a/b/c", got[len(got)-1])

	got, err = Prefixes("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, got)

	got, err = Prefixes("/a//b")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/a/b"}, got)

	_, err = Prefixes("a/b")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
}

func TestParentAndDepth(t *testing.T) {
	parent, ok := Parent("/a/b")
	assert.True(t, ok)
	assert.Equal(t, "/a", parent)

	parent, ok = Parent("/a")
	assert.True(t, ok)
	assert.Equal(t, "/", parent)

	_, ok = Parent("/")
	assert.False(t, ok)

	assert.Equal(t, 1, Depth("/"))
	assert.Equal(t, 3, Depth("/a/b"))
}

func TestRebase(t *testing.T) {
	tests := []struct {
		path, from, to string
		want           string
		ok             bool
	}{
		{path: "/a", from: "/a", to: "/b", want: "/b", ok: true},
		{path: "/a/x", from: "/a", to: "/b", want: "/b/x", ok: true},
		{path: "/a/x/y", from: "/a", to: "/b/c", want: "/b/c/x/y", ok: true},
		{path: "/ab", from: "/a", to: "/b", ok: false},
		{path: "/x", from: "/", to: "/b", want: "/b/x", ok: true},
		{path: "/a/x", from: "/a", to: "/", want: "/x", ok: true},
	}

	for _, tt := range tests {
		got, ok := Rebase(tt.path, tt.from, tt.to)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestBreadcrumbsAndSegment(t *testing.T) {
	assert.Equal(t, []Crumb{{Name: "a", Path: "/a"}, {Name: "b", Path: "/a/b"}}, Breadcrumbs("/a/b"))
	assert.Empty(t, Breadcrumbs("/"))
	assert.Equal(t, "b", LastSegment("/a/b"))
	assert.Equal(t, "", LastSegment("/"))
}
