package xlsx

import (
	"archive/zip"
	"compress/flate"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrPartNotFound is returned by a Container when a named part does not exist.
var ErrPartNotFound = errors.New("part not found")

// errStructure marks packages whose parts are readable but inconsistent.
var errStructure = errors.New("inconsistent package structure")

// NotFoundError reports a sheet name absent from the workbook manifest.
type NotFoundError struct {
	Path  string
	Sheet string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: sheet %q not found in workbook", e.Path, e.Sheet)
}

// MalformedDocumentError reports a container or part that cannot be decoded.
type MalformedDocumentError struct {
	Path  string
	Sheet string
	Part  string
	Err   error
}

func (e *MalformedDocumentError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("%s: sheet %q: malformed document: %v", e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s: sheet %q: malformed document (%s): %v", e.Path, e.Sheet, e.Part, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// IOError reports a read failure on the container or one of its parts.
type IOError struct {
	Path  string
	Sheet string
	Part  string
	Err   error
}

func (e *IOError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("%s: sheet %q: read failed: %v", e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s: sheet %q: read %s failed: %v", e.Path, e.Sheet, e.Part, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// classify wraps err into the matching error type. Typed errors pass through.
func classify(path, sheet, part string, err error) error {
	var (
		nf  *NotFoundError
		mal *MalformedDocumentError
		ioe *IOError
	)
	if errors.As(err, &nf) || errors.As(err, &mal) || errors.As(err, &ioe) {
		return err
	}
	if isMalformed(err) {
		return &MalformedDocumentError{Path: path, Sheet: sheet, Part: part, Err: err}
	}
	return &IOError{Path: path, Sheet: sheet, Part: part, Err: err}
}

func isMalformed(err error) bool {
	var (
		syntax  *xml.SyntaxError
		corrupt flate.CorruptInputError
		rng     *RangeError
	)
	switch {
	case errors.As(err, &syntax), errors.As(err, &corrupt), errors.As(err, &rng):
		return true
	case errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, ErrPartNotFound),
		errors.Is(err, errStructure):
		return true
	}
	return false
}
