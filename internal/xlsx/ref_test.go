package xlsx

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		ref     string
		want    MergedRegion
		wantErr bool
	}{
		{"A1:B2", MergedRegion{0, 1, 0, 1}, false},
		{"C5:C9", MergedRegion{4, 8, 2, 2}, false},
		{"AA10:AB12", MergedRegion{9, 11, 26, 27}, false},
		{"$A$1:$D$3", MergedRegion{0, 2, 0, 3}, false},
		{"b2:a1", MergedRegion{0, 1, 0, 1}, false},
		{"E7", MergedRegion{6, 6, 4, 4}, false},
		{"XFD1048576", MergedRegion{MaxRows - 1, MaxRows - 1, MaxColumns - 1, MaxColumns - 1}, false},
		{"", MergedRegion{}, true},
		{"A0:B2", MergedRegion{}, true},
		{"1:2", MergedRegion{}, true},
		{"A1:B", MergedRegion{}, true},
		{"A1:B2x", MergedRegion{}, true},
		{"XFE1", MergedRegion{}, true},
		{"A1048577", MergedRegion{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseRange(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRange(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if err != nil {
				var re *RangeError
				if !errors.As(err, &re) {
					t.Errorf("error %T is not *RangeError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestMergedRegionString(t *testing.T) {
	for _, ref := range []string{"A1:B2", "C5:C9", "AA10:AB12", "Z1:AZ3"} {
		r, err := ParseRange(ref)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", ref, err)
		}
		if got := r.String(); got != ref {
			t.Errorf("String() = %q, want %q", got, ref)
		}
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{MaxColumns - 1, "XFD"},
	}
	for _, tt := range tests {
		if got := ColumnName(tt.col); got != tt.want {
			t.Errorf("ColumnName(%d) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

func TestMergedRegionGeometry(t *testing.T) {
	r := MergedRegion{FirstRow: 2, LastRow: 4, FirstCol: 1, LastCol: 1}
	if r.Rows() != 3 || r.Cols() != 1 {
		t.Errorf("Rows/Cols = %d/%d, want 3/1", r.Rows(), r.Cols())
	}
	if !r.Contains(3, 1) {
		t.Error("Contains(3,1) = false")
	}
	if r.Contains(5, 1) || r.Contains(3, 0) {
		t.Error("Contains reports a cell outside the region")
	}
}
