package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-topstocks/models"
)

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name     string
		cells    []string
		accepted bool
	}{
		{
			name:     "six cells",
			cells:    []string{"10", "1000", "5", "3", "9.5", "200"},
			accepted: true,
		},
		{
			name:     "three cells",
			cells:    []string{"A", "B", "C"},
			accepted: false,
		},
		{
			name:     "seven cells",
			cells:    []string{"1", "2", "3", "4", "5", "6", "7"},
			accepted: false,
		},
		{
			name:     "no cells",
			cells:    nil,
			accepted: false,
		},
		{
			name:     "six empty cells",
			cells:    []string{"", "", "", "", "", ""},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := ValidateRow(4, tt.cells)
			if outcome.Accepted != tt.accepted {
				t.Errorf("ValidateRow() accepted = %v, want %v", outcome.Accepted, tt.accepted)
			}
			if outcome.Index != 4 {
				t.Errorf("ValidateRow() index = %d, want 4", outcome.Index)
			}
			if !tt.accepted && outcome.Reason == "" {
				t.Errorf("rejected row should carry a reason")
			}
		})
	}
}

func TestNormalizeCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with whitespace", input: "  BBCA  ", expected: "BBCA"},
		{name: "with newlines", input: "\n\t1.2 B\n", expected: "1.2 B"},
		{name: "already clean", input: "9,150", expected: "9,150"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NormalizeCell(tt.input); result != tt.expected {
				t.Errorf("NormalizeCell(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestBuildTableKeepsOrderAndDropsMalformed(t *testing.T) {
	raw := [][]string{
		{" BBCA ", "1.2 B", "12,000", "340", "9,150", "+500 M"},
		{"A", "B", "C"},
		{"TLKM", "800 M", "9,000", "120", "3,890", "-20 M"},
		{"10", "1000", "5", "3", "9.5", "200"},
	}

	table, diagnostics := BuildTable(raw)

	if !reflect.DeepEqual(table.Columns, models.Columns) {
		t.Fatalf("columns = %v, want %v", table.Columns, models.Columns)
	}
	if table.Len() != 3 {
		t.Fatalf("rows = %d, want 3", table.Len())
	}
	wantBuys := []string{"BBCA", "TLKM", "10"}
	for i, want := range wantBuys {
		if table.Rows[i].Buy != want {
			t.Fatalf("row %d buy = %q, want %q", i, table.Rows[i].Buy, want)
		}
	}
	if got := table.Rows[2].Cells(); !reflect.DeepEqual(got, []string{"10", "1000", "5", "3", "9.5", "200"}) {
		t.Fatalf("row kept verbatim = %v", got)
	}

	if len(diagnostics) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diagnostics))
	}
	if diagnostics[0].Index != 1 || diagnostics[0].CellCount != 3 {
		t.Fatalf("unexpected diagnostic: %+v", diagnostics[0])
	}
}

func TestBuildTableEmpty(t *testing.T) {
	table, diagnostics := BuildTable(nil)
	if table.Len() != 0 {
		t.Fatalf("rows = %d, want 0", table.Len())
	}
	if table.Rows == nil {
		t.Fatalf("rows should be an empty slice, not nil")
	}
	if len(diagnostics) != 0 {
		t.Fatalf("diagnostics = %d, want 0", len(diagnostics))
	}
}

func TestBuildTableIsDeterministic(t *testing.T) {
	raw := [][]string{
		{"BBRI", "1", "2", "3", "4", "5"},
		{"short"},
		{"ASII", "6", "7", "8", "9", "10"},
	}
	first, firstDiag := BuildTable(raw)
	second, secondDiag := BuildTable(raw)
	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(firstDiag, secondDiag) {
		t.Fatalf("BuildTable is not deterministic")
	}
}

func TestCellTexts(t *testing.T) {
	html := `<table><tbody>
<tr><td> BBCA </td><td>1.2 B</td><td><span>12,000</span></td></tr>
</tbody></table>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	got := CellTexts(doc.Find("tbody tr").First(), "td")
	want := []string{" BBCA ", "1.2 B", "12,000"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CellTexts() = %q, want %q", got, want)
	}
}
