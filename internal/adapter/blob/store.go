// Package blob stages task artifacts on an afero filesystem under /<namespace>/<yyyy-mm-dd>/<uuid>-<name>
// and addresses them as blob:///<path>.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

type Store struct {
	fs    afero.Fs
	clock clockwork.Clock
}

var _ domain.BlobStore = (*Store)(nil)

func NewStore(fsys afero.Fs, clock clockwork.Clock) *Store {
	return &Store{fs: fsys, clock: clock}
}

// NewOSStore roots the store at dir on the local disk, creating it if needed.
func NewOSStore(dir string, clock clockwork.Clock) (*Store, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", dir, err)
	}
	return NewStore(afero.NewBasePathFs(osfs, dir), clock), nil
}

func NewMemoryStore(clock clockwork.Clock) *Store {
	return NewStore(afero.NewMemMapFs(), clock)
}

func (s *Store) Put(_ context.Context, namespace, name string, data []byte) (string, error) {
	if err := checkSegment("namespace", namespace); err != nil {
		return "", err
	}
	if err := checkSegment("blob name", name); err != nil {
		return "", err
	}

	dir := path.Join("/", namespace, s.clock.Now().UTC().Format(domain.DateLayout))
	p := path.Join(dir, uuid.NewString()+"-"+name)

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return domain.BlobScheme + "://" + p, nil
}

func (s *Store) Get(_ context.Context, uri string) ([]byte, error) {
	p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFoundError("blob not found: " + uri)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// ParseURI returns the store path of a blob:/// URI. Other schemes, hosts and
// paths that are not already clean are ValidationErrors.
func ParseURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", apperrors.ValidationError(fmt.Sprintf("invalid blob URI %q", uri))
	}
	if u.Scheme != domain.BlobScheme || u.Host != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", apperrors.ValidationError(fmt.Sprintf("unsupported blob URI %q", uri))
	}
	if u.Path == "" || u.Path == "/" || path.Clean(u.Path) != u.Path {
		return "", apperrors.ValidationError(fmt.Sprintf("invalid blob path in %q", uri))
	}
	return u.Path, nil
}

func checkSegment(what, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return apperrors.ValidationError(fmt.Sprintf("invalid %s %q", what, s))
	}
	return nil
}
