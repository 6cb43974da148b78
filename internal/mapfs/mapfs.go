// Package mapfs gives uniform read access to the files of a map, whether they
// sit in a plain directory or inside a zip archive.
package mapfs

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem lists and reads the files of a single map.
type FileSystem interface {
	List() ([]string, error)
	Read(name string) ([]byte, error)
}

// ReadCloser is a FileSystem holding resources that must be released.
type ReadCloser interface {
	FileSystem
	io.Closer
}

// Open returns a directory FileSystem when path is a directory and a zip
// FileSystem otherwise.
func Open(path string) (ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return NewDir(path), nil
	}
	return OpenZip(path)
}

// IsArchive reports whether path names a zip archive by its extension.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// Find returns the listed name matching name case-insensitively.
func Find(fsys FileSystem, name string) (string, error) {
	names, err := fsys.List()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

// Dir is a FileSystem over the top level of a directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) String() string {
	return d.root
}

// List returns the names of the regular files directly under the root.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Read returns the contents of a file below the root. Names are slash
// separated and may not escape the root.
func (d *Dir) Read(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)))
}

// Close is a no-op.
func (d *Dir) Close() error {
	return nil
}

// Zip is a FileSystem over the entries of a zip archive.
type Zip struct {
	r      *zip.Reader
	closer io.Closer
}

// NewZip reads the archive directory from r.
func NewZip(r io.ReaderAt, size int64) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("error reading zip archive: %w", err)
	}
	return &Zip{r: zr}, nil
}

// OpenZip opens the archive at path. The caller must Close it.
func OpenZip(path string) (*Zip, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening zip archive %s: %w", path, err)
	}
	return &Zip{r: &zr.Reader, closer: zr}, nil
}

// List returns the names of every file entry in the archive.
func (z *Zip) List() ([]string, error) {
	names := make([]string, 0, len(z.r.File))
	for _, f := range z.r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// Read returns the uncompressed contents of an entry.
func (z *Zip) Read(name string) ([]byte, error) {
	f, err := z.r.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Close releases the underlying file when the archive was opened by path.
func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}
