package convert

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTestWorkbook writes a one-sheet workbook named name into dir with the
// given merged ranges and returns its path.
func writeTestWorkbook(t *testing.T, dir, name, sheet string, merges ...string) string {
	t.Helper()

	var ws strings.Builder
	ws.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData/>`)
	if len(merges) > 0 {
		fmt.Fprintf(&ws, `<mergeCells count="%d">`, len(merges))
		for _, m := range merges {
			fmt.Fprintf(&ws, `<mergeCell ref="%s"/>`, m)
		}
		ws.WriteString(`</mergeCells>`)
	}
	ws.WriteString(`</worksheet>`)

	parts := [][2]string{
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/></Relationships>`},
		{"xl/workbook.xml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="%s" sheetId="1" r:id="rId1"/></sheets></workbook>`, sheet)},
		{"xl/_rels/workbook.xml.rels", `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/></Relationships>`},
		{"xl/worksheets/sheet1.xml", ws.String()},
	}

	path := filepath.Join(dir, name)
	writeZip(t, path, parts)
	return path
}

func writeZip(t *testing.T, path string, parts [][2]string) {
	t.Helper()
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
}

func writeSidecar(t *testing.T, workbook, body string) {
	t.Helper()
	if err := os.WriteFile(workbook+SidecarSuffix, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sidecarOs1234 = `{"trains":[{
	"trainNumber": 1234,
	"trainType": "os",
	"stations": ["Praha hl.n.", " Kolín ", "Pardubice hl.n."],
	"arrivals": ["8:10", {"hours": 8, "minutes": 30, "isAfter30seconds": true}],
	"departures": ["08:00", "08:12:45"]
}]}`
