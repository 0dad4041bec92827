package chunk

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestNew tests range construction and bound validation
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		lo, hi  int64
		wantErr bool
		size    int64
	}{
		{name: "single value", lo: 7, hi: 7, size: 1},
		{name: "ordinary range", lo: 1, hi: 30, size: 30},
		{name: "negative lower bound", lo: -5, hi: 5, size: 11},
		{name: "inverted bounds", lo: 10, hi: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.lo, tt.hi)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("New(%d, %d) error = %v, want ErrInvalidRange", tt.lo, tt.hi, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%d, %d) unexpected error: %v", tt.lo, tt.hi, err)
			}
			if r.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", r.Size(), tt.size)
			}
		})
	}
}

// TestParse tests the textual range forms accepted by the CLI and config
func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{in: "1-30", want: Range{Lo: 1, Hi: 30}},
		{in: "1,30", want: Range{Lo: 1, Hi: 30}},
		{in: "[1,30]", want: Range{Lo: 1, Hi: 30}},
		{in: " 5:5 ", want: Range{Lo: 5, Hi: 5}},
		{in: "-5-10", want: Range{Lo: -5, Hi: 10}},
		{in: "30-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1-x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRangeRelations(t *testing.T) {
	a := MustNew(1, 10)
	b := MustNew(11, 20)
	c := MustNew(10, 12)

	if a.Overlaps(b) {
		t.Errorf("%v should not overlap %v", a, b)
	}
	if !a.Overlaps(c) || !c.Overlaps(b) {
		t.Errorf("%v should overlap both %v and %v", c, a, b)
	}
	if !a.Adjacent(b) {
		t.Errorf("%v should be adjacent to %v", a, b)
	}
	if !a.Contains(1) || !a.Contains(10) || a.Contains(11) {
		t.Errorf("Contains is not inclusive on both ends for %v", a)
	}
	if a.String() != "[1,10]" {
		t.Errorf("String() = %q, want [1,10]", a.String())
	}
}

// TestRangeJSON tests the two element array wire encoding
func TestRangeJSON(t *testing.T) {
	data, err := json.Marshal(MustNew(21, 30))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[21,30]" {
		t.Errorf("Marshal = %s, want [21,30]", data)
	}

	bad := []string{`[30,21]`, `[1]`, `[1,2,3]`, `"1-2"`}
	for _, in := range bad {
		var r Range
		if err := json.Unmarshal([]byte(in), &r); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidRange", in, err)
		}
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew(2, 1) did not panic")
		}
	}()
	MustNew(2, 1)
}
