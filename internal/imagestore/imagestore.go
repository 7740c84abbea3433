// Package imagestore persists uploaded product images on local disk and
// hands back reference strings. The core never interprets image bytes;
// references are stored on products and served by the static file layer.
package imagestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// refPrefix is the URL path prefix under which stored images are served.
const refPrefix = "/uploads/"

// Store writes uploaded images into a single directory.
type Store struct {
	dir string
}

// New creates the upload directory if needed and returns a Store for it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Store{dir: dir}, nil
}

// Save streams the uploaded file to disk under a collision-free name and
// returns the reference string to store on the product.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	name := uuid.New().String() + "-" + sanitize(originalName)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create image file")
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", errors.Wrap(err, "write image file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close image file")
	}

	return refPrefix + name, nil
}

// Remove deletes the file behind a reference previously returned by Save.
// Unknown or foreign references are ignored.
func (s *Store) Remove(ref string) error {
	name, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || name == "" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove image file")
	}
	return nil
}

// Dir returns the directory images are stored in, for the static file
// server.
func (s *Store) Dir() string { return s.dir }

// sanitize strips path separators and whitespace from client-supplied
// file names.
func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ' ':
			return '_'
		default:
			return r
		}
	}, name)
}
