package xlsx

import (
	"encoding/xml"
	"fmt"
	"io"
)

// ExtractMergedRegions returns the merged cell regions of the named sheet in
// document order. The workbook is streamed; no cell data is loaded.
func ExtractMergedRegions(path, sheet string) ([]MergedRegion, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return nil, classify(path, sheet, "", err)
	}
	defer c.Close()

	return MergedRegions(c, sheet)
}

// SheetNames lists the sheets of the workbook at path in display order.
func SheetNames(path string) ([]string, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return nil, classify(path, "", "", err)
	}
	defer c.Close()

	wb, err := readWorkbook(c)
	if err != nil {
		return nil, classify(path, "", "", err)
	}
	return wb.names(), nil
}

// MergedRegions runs the extraction over an already opened container.
func MergedRegions(c Container, sheet string) ([]MergedRegion, error) {
	name := c.Name()

	wb, err := readWorkbook(c)
	if err != nil {
		return nil, classify(name, sheet, "", err)
	}

	index := wb.index(sheet)
	if index < 0 {
		return nil, &NotFoundError{Path: name, Sheet: sheet}
	}

	parts, err := wb.sheetParts()
	if err != nil {
		return nil, classify(name, sheet, "", err)
	}

	part, rc, err := openSheetPart(c, parts, index)
	if err != nil {
		return nil, classify(name, sheet, part, err)
	}
	defer rc.Close()

	regions, err := scanMergeCells(rc)
	if err != nil {
		return nil, classify(name, sheet, part, err)
	}
	return regions, nil
}

// openSheetPart walks the sheet parts in manifest order, skipping repeated
// parts, and returns the stream of the index-th distinct one. Every other
// stream is closed before it returns.
func openSheetPart(c Container, parts []string, index int) (string, io.ReadCloser, error) {
	var held retained
	defer held.release()

	seen := make(map[string]struct{}, len(parts))
	kept := 0
	for _, part := range parts {
		if kept > index {
			break
		}
		id := partIdentity(part)
		if _, dup := seen[id]; dup {
			continue
		}
		rc, err := c.Open(part)
		if err != nil {
			return part, nil, err
		}
		seen[id] = struct{}{}
		if kept == index {
			held.keep(part, rc)
		} else {
			rc.Close()
		}
		kept++
	}

	if held.rc == nil {
		return "", nil, fmt.Errorf("sheet ordinal %d has no distinct part: %w", index, errStructure)
	}
	part, rc := held.take()
	return part, rc, nil
}

// retained owns at most one open stream and closes it unless ownership is taken.
type retained struct {
	part string
	rc   io.ReadCloser
}

func (r *retained) keep(part string, rc io.ReadCloser) {
	r.release()
	r.part, r.rc = part, rc
}

func (r *retained) take() (string, io.ReadCloser) {
	part, rc := r.part, r.rc
	r.part, r.rc = "", nil
	return part, rc
}

func (r *retained) release() {
	if r.rc != nil {
		r.rc.Close()
		r.rc = nil
	}
}

// sheetRoots are the document elements a sheet relationship may point at.
var sheetRoots = map[string]bool{
	"worksheet":   true,
	"chartsheet":  true,
	"dialogsheet": true,
	"macrosheet":  true,
}

// scanMergeCells makes one forward pass over a worksheet part. A part
// without a sheet document element is malformed.
func scanMergeCells(r io.Reader) ([]MergedRegion, error) {
	regions := []MergedRegion{}
	dec := xml.NewDecoder(r)
	rooted := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !rooted {
				return nil, fmt.Errorf("no sheet element: %w", errStructure)
			}
			return regions, nil
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rooted {
			if !sheetRoots[se.Name.Local] {
				return nil, fmt.Errorf("document element <%s> is not a sheet: %w", se.Name.Local, errStructure)
			}
			rooted = true
			continue
		}
		if se.Name.Local != "mergeCell" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local != "ref" || a.Name.Space != "" || a.Value == "" {
				continue
			}
			region, err := ParseRange(a.Value)
			if err != nil {
				return nil, err
			}
			regions = append(regions, region)
		}
	}
}
