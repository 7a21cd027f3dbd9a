package pagination

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		page    int
		perPage int
		wantErr bool
	}{
		{"first page", 1, 5, false},
		{"max per page", 3, 10, false},
		{"zero page", 0, 5, true},
		{"negative page", -1, 5, true},
		{"zero per page", 1, 0, true},
		{"per page over max", 1, 11, true},
	}

	for _, tt := range tests {
		err := Validate(tt.page, tt.perPage)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate(%d, %d) error = %v, wantErr %v", tt.name, tt.page, tt.perPage, err, tt.wantErr)
		}
	}
}

func TestSlice(t *testing.T) {
	seven := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name    string
		items   []int
		page    int
		perPage int
		want    []int
	}{
		{"first page of seven", seven, 1, 5, []int{1, 2, 3, 4, 5}},
		{"second page partial", seven, 2, 5, []int{6, 7}},
		{"second page past end", seven, 2, 7, nil},
		{"page well past end", seven, 9, 10, nil},
		{"empty input", nil, 1, 5, nil},
		{"exact boundary", []int{1, 2, 3, 4}, 2, 2, []int{3, 4}},
	}

	for _, tt := range tests {
		got := Slice(tt.items, tt.page, tt.perPage)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: Slice(page=%d, perPage=%d) = %v, want %v", tt.name, tt.page, tt.perPage, got, tt.want)
		}
	}
}

// paginate(len 7, page=2, size=5) must yield an empty page signal while
// page=1 yields the first five items.
func TestSliceEmptyPageSignal(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	if got := Slice(items, 1, 5); len(got) != 5 {
		t.Errorf("page 1 of 7 items = %d items, want 5", len(got))
	}
	if got := Slice(items, 2, 7); len(got) != 0 {
		t.Errorf("page 2 with size 7 over 7 items = %d items, want empty", len(got))
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(7, 2, 5)
	if m.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", m.PageCount)
	}
	if m.Total != 7 || m.Page != 2 {
		t.Errorf("Meta = %+v, want total 7 page 2", m)
	}

	if m := NewMeta(10, 1, 5); m.PageCount != 2 {
		t.Errorf("PageCount for even split = %d, want 2", m.PageCount)
	}
	if m := NewMeta(0, 1, 5); m.PageCount != 0 {
		t.Errorf("PageCount for empty set = %d, want 0", m.PageCount)
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(1, 5); got != 0 {
		t.Errorf("Offset(1,5) = %d, want 0", got)
	}
	if got := Offset(3, 10); got != 20 {
		t.Errorf("Offset(3,10) = %d, want 20", got)
	}
}
