package xlsx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

type testSheet struct {
	name   string
	target string // relative to xl/
}

func workbookXMLFor(sheets []testSheet) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	for i, s := range sheets {
		fmt.Fprintf(&b, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, s.name, i+1, i+1)
	}
	b.WriteString(`</sheets></workbook>`)
	return b.String()
}

func workbookRelsFor(sheets []testSheet) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, s := range sheets {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="%s"/>`, i+1, s.target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func worksheetXML(refs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData><row r="1"><c r="A1" t="s"><v>0</v></c></row></sheetData>`)
	if len(refs) > 0 {
		fmt.Fprintf(&b, `<mergeCells count="%d">`, len(refs))
		for _, ref := range refs {
			fmt.Fprintf(&b, `<mergeCell ref="%s"/>`, ref)
		}
		b.WriteString(`</mergeCells>`)
	}
	b.WriteString(`</worksheet>`)
	return b.String()
}

// writePackage writes the parts, in order, as a zip file and returns its path.
func writePackage(t *testing.T, parts [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, p[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeWorkbook builds a package with one worksheet part per sheet.
func writeWorkbook(t *testing.T, sheets []testSheet, bodies map[string]string) string {
	t.Helper()
	parts := [][2]string{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"xl/workbook.xml", workbookXMLFor(sheets)},
		{"xl/_rels/workbook.xml.rels", workbookRelsFor(sheets)},
	}
	done := map[string]bool{}
	for _, s := range sheets {
		id := partIdentity("xl/" + s.target)
		if done[id] {
			continue
		}
		done[id] = true
		parts = append(parts, [2]string{"xl/" + s.target, bodies[s.target]})
	}
	return writePackage(t, parts)
}

func TestExtractMergedRegions(t *testing.T) {
	sheets := []testSheet{
		{"Cover", "worksheets/sheet1.xml"},
		{"Timetable", "worksheets/sheet2.xml"},
	}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:F1"),
		"worksheets/sheet2.xml": worksheetXML("A1:B2", "C5:C9", "$D$3:$E$3"),
	})

	got, err := ExtractMergedRegions(path, "Timetable")
	if err != nil {
		t.Fatalf("ExtractMergedRegions: %v", err)
	}
	want := []MergedRegion{
		{FirstRow: 0, LastRow: 1, FirstCol: 0, LastCol: 1},
		{FirstRow: 4, LastRow: 8, FirstCol: 2, LastCol: 2},
		{FirstRow: 2, LastRow: 2, FirstCol: 3, LastCol: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("regions = %+v, want %+v", got, want)
	}

	cover, err := ExtractMergedRegions(path, "Cover")
	if err != nil {
		t.Fatalf("ExtractMergedRegions(Cover): %v", err)
	}
	if len(cover) != 1 || cover[0].String() != "A1:F1" {
		t.Errorf("Cover regions = %+v", cover)
	}
}

func TestExtractMergedRegionsNoMerges(t *testing.T) {
	sheets := []testSheet{{"Sheet1", "worksheets/sheet1.xml"}}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML(),
	})

	got, err := ExtractMergedRegions(path, "Sheet1")
	if err != nil {
		t.Fatalf("ExtractMergedRegions: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("regions = %#v, want empty non-nil slice", got)
	}
}

func TestExtractMergedRegionsEmptyRefSkipped(t *testing.T) {
	sheets := []testSheet{{"Sheet1", "worksheets/sheet1.xml"}}
	body := strings.Replace(worksheetXML("A1:B1"), `</mergeCells>`, `<mergeCell ref=""/><mergeCell/></mergeCells>`, 1)
	path := writeWorkbook(t, sheets, map[string]string{"worksheets/sheet1.xml": body})

	got, err := ExtractMergedRegions(path, "Sheet1")
	if err != nil {
		t.Fatalf("ExtractMergedRegions: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("regions = %+v, want one", got)
	}
}

func TestExtractMergedRegionsSheetNotFound(t *testing.T) {
	sheets := []testSheet{{"Sheet1", "worksheets/sheet1.xml"}}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:B2"),
	})

	_, err := ExtractMergedRegions(path, "sheet1")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v (%T), want *NotFoundError", err, err)
	}
	if nf.Sheet != "sheet1" || nf.Path != path {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

// countingContainer records every stream it hands out.
type countingContainer struct {
	inner  Container
	opened map[string]int
	open   int
}

type countedStream struct {
	io.ReadCloser
	c      *countingContainer
	closed bool
}

func (s *countedStream) Close() error {
	if !s.closed {
		s.closed = true
		s.c.open--
	}
	return s.ReadCloser.Close()
}

func (c *countingContainer) Name() string { return c.inner.Name() }

func (c *countingContainer) Open(part string) (io.ReadCloser, error) {
	rc, err := c.inner.Open(part)
	if err != nil {
		return nil, err
	}
	c.opened[partIdentity(part)]++
	c.open++
	return &countedStream{ReadCloser: rc, c: c}, nil
}

func openCounting(t *testing.T, path string) *countingContainer {
	t.Helper()
	zc, err := OpenContainer(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { zc.Close() })
	return &countingContainer{inner: zc, opened: map[string]int{}}
}

func TestMergedRegionsNotFoundOpensNoSheet(t *testing.T) {
	sheets := []testSheet{
		{"A", "worksheets/sheet1.xml"},
		{"B", "worksheets/sheet2.xml"},
	}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:B2"),
		"worksheets/sheet2.xml": worksheetXML("A1:B2"),
	})
	c := openCounting(t, path)

	_, err := MergedRegions(c, "Missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	for part := range c.opened {
		if strings.Contains(part, "/worksheets/") {
			t.Errorf("sheet part %s opened before the name was resolved", part)
		}
	}
	if c.open != 0 {
		t.Errorf("%d streams left open", c.open)
	}
}

func TestMergedRegionsDuplicatePart(t *testing.T) {
	// "Copy" points at the same part as "First" under a different spelling,
	// so "Second" is the second distinct sheet.
	sheets := []testSheet{
		{"First", "worksheets/sheet1.xml"},
		{"Copy", "./worksheets/Sheet1.xml"},
		{"Second", "worksheets/sheet2.xml"},
	}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:A2"),
		"worksheets/sheet2.xml": worksheetXML("B1:C1", "D4:D8"),
	})
	c := openCounting(t, path)

	got, err := MergedRegions(c, "Copy")
	if err != nil {
		t.Fatalf("MergedRegions: %v", err)
	}
	if len(got) != 2 || got[0].String() != "B1:C1" {
		t.Errorf("regions = %+v, want the second distinct sheet", got)
	}
	if n := c.opened["/xl/worksheets/sheet1.xml"]; n != 1 {
		t.Errorf("duplicated part opened %d times, want 1", n)
	}
	if c.open != 0 {
		t.Errorf("%d streams left open", c.open)
	}
}

func TestMergedRegionsClosesStreamsOnError(t *testing.T) {
	sheets := []testSheet{
		{"A", "worksheets/sheet1.xml"},
		{"B", "worksheets/sheet2.xml"},
	}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:B2"),
		"worksheets/sheet2.xml": `<worksheet><mergeCells><mergeCell ref="A1:B2"></mergeCells>`,
	})
	c := openCounting(t, path)

	_, err := MergedRegions(c, "B")
	var mal *MalformedDocumentError
	if !errors.As(err, &mal) {
		t.Fatalf("error = %v, want *MalformedDocumentError", err)
	}
	if mal.Part != "/xl/worksheets/sheet2.xml" {
		t.Errorf("Part = %q", mal.Part)
	}
	if c.open != 0 {
		t.Errorf("%d streams left open", c.open)
	}
}

func TestExtractMergedRegionsErrors(t *testing.T) {
	sheets := []testSheet{{"Sheet1", "worksheets/sheet1.xml"}}

	badRef := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML("A1:B2", "1:ZZ"),
	})
	badXML := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": `<worksheet><mergeCells><mergeCell ref="A1:B2"`,
	})
	sheetBody := func(body string) string {
		return writeWorkbook(t, sheets, map[string]string{"worksheets/sheet1.xml": body})
	}
	emptyWorkbook := writePackage(t, [][2]string{
		{"_rels/.rels", rootRels},
		{"xl/workbook.xml", ""},
		{"xl/_rels/workbook.xml.rels", workbookRelsFor(sheets)},
		{"xl/worksheets/sheet1.xml", worksheetXML()},
	})
	emptyRels := writePackage(t, [][2]string{
		{"_rels/.rels", ""},
		{"xl/workbook.xml", workbookXMLFor(sheets)},
		{"xl/_rels/workbook.xml.rels", workbookRelsFor(sheets)},
		{"xl/worksheets/sheet1.xml", worksheetXML()},
	})
	missingPart := writePackage(t, [][2]string{
		{"_rels/.rels", rootRels},
		{"xl/workbook.xml", workbookXMLFor(sheets)},
		{"xl/_rels/workbook.xml.rels", workbookRelsFor(sheets)},
	})

	notZip := filepath.Join(t.TempDir(), "notzip.xlsx")
	if err := os.WriteFile(notZip, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		path      string
		malformed bool
	}{
		{"bad ref", badRef, true},
		{"truncated xml", badXML, true},
		{"empty sheet part", sheetBody(""), true},
		{"text sheet part", sheetBody("this is not xml at all"), true},
		{"non-sheet root", sheetBody(`<?xml version="1.0"?><html><mergeCell ref="A1:B2"/></html>`), true},
		{"empty workbook part", emptyWorkbook, true},
		{"empty package rels", emptyRels, true},
		{"missing sheet part", missingPart, true},
		{"not a zip", notZip, true},
		{"missing file", filepath.Join(t.TempDir(), "absent.xlsx"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractMergedRegions(tt.path, "Sheet1")
			if err == nil {
				t.Fatal("expected an error")
			}
			var (
				mal *MalformedDocumentError
				ioe *IOError
			)
			if tt.malformed {
				if !errors.As(err, &mal) {
					t.Fatalf("error = %v (%T), want *MalformedDocumentError", err, err)
				}
				if mal.Path != tt.path || mal.Sheet != "Sheet1" {
					t.Errorf("error context = %q/%q", mal.Path, mal.Sheet)
				}
				return
			}
			if !errors.As(err, &ioe) {
				t.Fatalf("error = %v (%T), want *IOError", err, err)
			}
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("IOError does not unwrap to os.ErrNotExist: %v", err)
			}
		})
	}
}

func TestWorkbookWithoutPackageRels(t *testing.T) {
	sheets := []testSheet{{"Sheet1", "worksheets/sheet1.xml"}}
	path := writePackage(t, [][2]string{
		{"xl/workbook.xml", workbookXMLFor(sheets)},
		{"xl/_rels/workbook.xml.rels", workbookRelsFor(sheets)},
		{"xl/worksheets/sheet1.xml", worksheetXML("A1:A3")},
	})

	got, err := ExtractMergedRegions(path, "Sheet1")
	if err != nil {
		t.Fatalf("ExtractMergedRegions: %v", err)
	}
	if len(got) != 1 || got[0].Rows() != 3 {
		t.Errorf("regions = %+v", got)
	}
}

func TestSheetNames(t *testing.T) {
	sheets := []testSheet{
		{"Titul", "worksheets/sheet1.xml"},
		{"Jízdní řád", "worksheets/sheet2.xml"},
	}
	path := writeWorkbook(t, sheets, map[string]string{
		"worksheets/sheet1.xml": worksheetXML(),
		"worksheets/sheet2.xml": worksheetXML(),
	})

	got, err := SheetNames(path)
	if err != nil {
		t.Fatalf("SheetNames: %v", err)
	}
	if want := []string{"Titul", "Jízdní řád"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SheetNames = %q, want %q", got, want)
	}
}
