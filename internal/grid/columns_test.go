package grid

import (
	"errors"
	"testing"
	"time"

	"github.com/oukeidos/arcat/internal/catalog"
)

func TestSameValuesCanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		a, b catalog.Values
		want bool
	}{
		{name: "nil and empty", a: catalog.Values{nil}, b: catalog.Values{""}, want: true},
		{name: "zero date and nil", a: catalog.Values{time.Time{}}, b: catalog.Values{nil}, want: true},
		{name: "same day different clock", a: catalog.Values{day("2020-01-01")}, b: catalog.Values{day("2020-01-01").Add(3 * time.Hour)}, want: true},
		{name: "int and text", a: catalog.Values{int64(3)}, b: catalog.Values{"3"}, want: true},
		{name: "trailing blank", a: catalog.Values{"a "}, b: catalog.Values{"a"}, want: true},
		{name: "short row", a: catalog.Values{"a"}, b: catalog.Values{"a", nil}, want: true},
		{name: "different", a: catalog.Values{"a"}, b: catalog.Values{"b"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SameValues(tc.a, tc.b); got != tc.want {
				t.Fatalf("SameValues(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestTruncateCountsGraphemes(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{in: "Concerto", width: 0, want: "Concerto"},
		{in: "Concerto", width: 8, want: "Concerto"},
		{in: "Concerto", width: 5, want: "Conc…"},
		{in: "🇯🇵🇯🇵🇯🇵", width: 2, want: "🇯🇵…"},
		{in: "éé", width: 1, want: "…"},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.width); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

type rejectPaths struct{}

func (rejectPaths) Check(path string) error {
	return errors.New("file not found")
}

func TestValidateRow(t *testing.T) {
	tbl := piecesTable()
	tbl.Columns[colTitle].MaxLength = 4
	row := catalog.Values{"Venue A", day("2020-01-01"), int64(1), "Long title", nil, nil}

	col, err := validateRow(t.Context(), Env{}, rowCheck{table: tbl, values: row})
	if err == nil || col != colTitle {
		t.Fatalf("validateRow = %d, %v; want title too long", col, err)
	}

	row[colTitle] = "Ok"
	row[colAudio] = "/missing.flac"
	col, err = validateRow(t.Context(), Env{Paths: rejectPaths{}}, rowCheck{table: tbl, values: row})
	if err == nil || col != colAudio {
		t.Fatalf("validateRow = %d, %v; want audio path error", col, err)
	}

	row[colVenue] = nil
	col, err = validateRow(t.Context(), Env{}, rowCheck{table: tbl, values: row, auto: map[int]bool{colVenue: true}})
	if err != nil {
		t.Fatalf("auto column validated: %d %v", col, err)
	}
}

func TestParseCellPath(t *testing.T) {
	c := catalog.Column{Name: "audio_path", Kind: catalog.KindPath}
	v, err := parseCell(c, ` "/music/a b.flac" `)
	if err != nil || v != "/music/a b.flac" {
		t.Fatalf("parseCell = %v, %v", v, err)
	}
	if got := Display(c, `C:\music\a.flac`, 0); got != "C:/music/a.flac" {
		t.Fatalf("Display = %q", got)
	}
}

func TestQueueRunsWorkQueuedWhileFlushing(t *testing.T) {
	q := &Queue{}
	var order []int
	q.Defer(func() {
		order = append(order, 1)
		q.Defer(func() { order = append(order, 3) })
	})
	q.Defer(func() { order = append(order, 2) })
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	if n := q.Flush(); n != 3 {
		t.Fatalf("Flush ran %d, want 3", n)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v", order)
	}
}

func TestRowStateString(t *testing.T) {
	if Promoting.String() != "promoting" || RowState(42).String() != "state(42)" {
		t.Fatalf("unexpected state names")
	}
	if !CommitFailed.Dirty() || Clean.Dirty() {
		t.Fatalf("Dirty() mismatch")
	}
}

func TestCheckReferenceMatchesStoredValue(t *testing.T) {
	c := catalog.Column{Name: "artist", Kind: catalog.KindForeignKey, ReferencedTable: "artists", ReferencedColumn: "name"}
	env := Env{References: fakeRefs{"artists.name": {"Ada", "Bob", "bob"}}}
	tests := []struct {
		text    string
		want    any
		wantErr bool
	}{
		{text: "Ada", want: "Ada"},
		{text: "ada", want: "Ada"},
		{text: "bob", want: "bob"},
		{text: "BOB", wantErr: true},
		{text: "Cy", wantErr: true},
		{text: "", want: nil},
	}
	for _, tc := range tests {
		got, err := checkReference(t.Context(), env, c, tc.text)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("checkReference(%q) = %v, want error", tc.text, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("checkReference(%q) = %v, %v; want %v", tc.text, got, err, tc.want)
		}
	}
}
