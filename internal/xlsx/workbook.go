package xlsx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	packageRels       = "/_rels/.rels"
	defaultWorkbook   = "/xl/workbook.xml"
	officeDocumentRel = "/officeDocument"
)

type relationshipsXML struct {
	Relationships []struct {
		ID         string `xml:"Id,attr"`
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

type workbookXML struct {
	Sheets []struct {
		Name  string     `xml:"name,attr"`
		Attrs []xml.Attr `xml:",any,attr"`
	} `xml:"sheets>sheet"`
}

type manifestSheet struct {
	name  string
	relID string
}

// workbook is the decoded manifest: sheet names in display order and the
// part each one lives in.
type workbook struct {
	part   string
	sheets []manifestSheet
	rels   map[string]string
}

// readWorkbook decodes the workbook manifest and its relationships.
func readWorkbook(c Container) (*workbook, error) {
	part, err := locateWorkbook(c)
	if err != nil {
		return nil, err
	}

	var wbXML workbookXML
	if err := decodePart(c, part, &wbXML); err != nil {
		return nil, err
	}

	wb := &workbook{part: part, rels: make(map[string]string)}
	for _, s := range wbXML.Sheets {
		wb.sheets = append(wb.sheets, manifestSheet{name: s.Name, relID: relationshipID(s.Attrs)})
	}

	var rels relationshipsXML
	if err := decodePart(c, relsPartFor(part), &rels); err != nil {
		return nil, err
	}
	for _, r := range rels.Relationships {
		if strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		wb.rels[r.ID] = resolveTarget(part, r.Target)
	}

	return wb, nil
}

// locateWorkbook follows the package relationships to the main document,
// falling back to the conventional location.
func locateWorkbook(c Container) (string, error) {
	var rels relationshipsXML
	err := decodePart(c, packageRels, &rels)
	if errors.Is(err, ErrPartNotFound) {
		return defaultWorkbook, nil
	}
	if err != nil {
		return "", err
	}
	for _, r := range rels.Relationships {
		if strings.HasSuffix(r.Type, officeDocumentRel) {
			return resolveTarget("/", r.Target), nil
		}
	}
	return defaultWorkbook, nil
}

// relationshipID picks the namespaced "id" attribute (r:id) of a sheet entry.
func relationshipID(attrs []xml.Attr) string {
	for _, a := range attrs {
		if a.Name.Local == "id" && a.Name.Space != "" {
			return a.Value
		}
	}
	return ""
}

// index returns the ordinal of the named sheet, or -1.
func (wb *workbook) index(name string) int {
	for i, s := range wb.sheets {
		if s.name == name {
			return i
		}
	}
	return -1
}

// names returns sheet names in display order.
func (wb *workbook) names() []string {
	out := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		out[i] = s.name
	}
	return out
}

// sheetParts resolves every manifest sheet to its part, in manifest order.
func (wb *workbook) sheetParts() ([]string, error) {
	parts := make([]string, 0, len(wb.sheets))
	for _, s := range wb.sheets {
		target, ok := wb.rels[s.relID]
		if !ok {
			return nil, fmt.Errorf("sheet %q: relationship %q: %w", s.name, s.relID, errStructure)
		}
		parts = append(parts, target)
	}
	return parts, nil
}

// decodePart unmarshals a small XML part in full.
func decodePart(c Container, part string, v any) (err error) {
	rc, err := c.Open(part)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("decode %s: empty part: %w", part, errStructure)
		}
		return fmt.Errorf("decode %s: %w", part, err)
	}
	return nil
}
