package xlsx

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Container is a read-only set of named parts, each readable as a forward stream.
// Part names are absolute ("/xl/workbook.xml").
type Container interface {
	Name() string
	Open(part string) (io.ReadCloser, error)
}

// ZipContainer is a workbook package on disk.
type ZipContainer struct {
	path  string
	r     *zip.ReadCloser
	parts map[string]*zip.File
}

// OpenContainer opens the package at path read-only.
func OpenContainer(path string) (*ZipContainer, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	parts := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		id := partIdentity(f.Name)
		// first entry wins when an archive repeats a name
		if _, ok := parts[id]; !ok {
			parts[id] = f
		}
	}

	return &ZipContainer{path: path, r: r, parts: parts}, nil
}

// Name returns the file path the container was opened from.
func (z *ZipContainer) Name() string { return z.path }

// Open returns a stream over one part.
func (z *ZipContainer) Open(part string) (io.ReadCloser, error) {
	f, ok := z.parts[partIdentity(part)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", canonicalPart(part), ErrPartNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", canonicalPart(part), err)
	}
	return rc, nil
}

// Close releases the underlying file.
func (z *ZipContainer) Close() error {
	return z.r.Close()
}

// canonicalPart returns the absolute, cleaned form of a part name.
func canonicalPart(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Clean("/" + name)
}

// partIdentity is the key two names must share to denote the same part.
// Part names compare case-insensitively in the packaging format.
func partIdentity(name string) string {
	return strings.ToLower(canonicalPart(name))
}

// resolveTarget resolves a relationship target against the part that owns it.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return canonicalPart(target)
	}
	return canonicalPart(path.Join(path.Dir(canonicalPart(source)), target))
}

// relsPartFor returns the relationships part of source ("/xl/workbook.xml" -> "/xl/_rels/workbook.xml.rels").
func relsPartFor(source string) string {
	source = canonicalPart(source)
	return path.Join(path.Dir(source), "_rels", path.Base(source)+".rels")
}
