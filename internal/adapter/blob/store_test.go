package blob

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

var day = time.Date(2024, 11, 29, 23, 59, 0, 0, time.UTC)

func TestPutGet_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, clockwork.NewFakeClockAt(day))
	ctx := context.Background()

	uri, err := s.Put(ctx, "marketing", "posts.json", []byte(`["a"]`))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^blob:///marketing/2024-11-29/[0-9a-f-]{36}-posts\.json$`), uri)

	data, err := s.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(data))

	p, err := ParseURI(uri)
	require.NoError(t, err)
	exists, err := afero.Exists(fsys, p)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPut_SameNameTwiceKeepsBoth(t *testing.T) {
	s := NewMemoryStore(clockwork.NewFakeClockAt(day))
	ctx := context.Background()

	first, err := s.Put(ctx, "ns", "out.json", []byte("1"))
	require.NoError(t, err)
	second, err := s.Put(ctx, "ns", "out.json", []byte("2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := s.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestPut_RejectsPathSegments(t *testing.T) {
	s := NewMemoryStore(clockwork.NewFakeClockAt(day))

	for _, tc := range []struct{ ns, name string }{
		{"", "a.json"},
		{"..", "a.json"},
		{"a/b", "a.json"},
		{"ns", "../escape.json"},
		{"ns", `dir\file`},
	} {
		_, err := s.Put(context.Background(), tc.ns, tc.name, nil)
		require.Error(t, err, tc)
		assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), tc)
	}
}

func TestGet_Errors(t *testing.T) {
	s := NewMemoryStore(clockwork.NewFakeClockAt(day))
	ctx := context.Background()

	_, err := s.Get(ctx, "blob:///ns/2024-11-29/missing.json")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	for _, uri := range []string{
		"kestra:///ns/file.json",
		"blob://host/ns/file.json",
		"blob:///ns/../../etc/passwd",
		"blob:///",
		"file:///etc/passwd",
		"blob:///ns/file.json?x=1",
	} {
		_, err := s.Get(ctx, uri)
		assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), uri)
	}
}

func TestNewOSStore_StaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewOSStore(root, clockwork.NewFakeClockAt(day))
	require.NoError(t, err)

	uri, err := s.Put(context.Background(), "ns", "tweets.json", []byte("[]"))
	require.NoError(t, err)

	p, err := ParseURI(uri)
	require.NoError(t, err)
	exists, err := afero.Exists(afero.NewOsFs(), root+p)
	require.NoError(t, err)
	assert.True(t, exists)
}
