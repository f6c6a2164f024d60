package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dart_finstate/pkg/core/amount"
	"dart_finstate/pkg/core/collector"
	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/dataset"
	"dart_finstate/pkg/core/sheet"

	"github.com/PuerkitoBio/goquery"
)

func sampleExport() *collector.Export {
	ds := dataset.New("account_nm", "thstrm_amount")
	ds.Append(dataset.Row{"account_nm": amount.Text("자산총계"), "thstrm_amount": amount.Int(1000)})

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &collector.Export{
		Result: &collector.Result{
			RunID:   "run-1",
			Request: collector.Request{Years: []int{2023}, Report: dart.ReportAnnual},
			Units: []collector.UnitResult{
				{Entity: collector.Entity{ID: "006400", Name: "삼성SDI"}, Year: 2023, Status: collector.StatusSuccess, Rows: 1},
				{Entity: collector.Entity{ID: "373220"}, Year: 2023, Status: collector.StatusFailed, Err: errors.New("status 020 | limit")},
				{Entity: collector.Entity{ID: "259630"}, Year: 2023, Status: collector.StatusEmpty},
			},
			Dataset:       ds,
			AmountColumns: []string{"thstrm_amount"},
			Unparseable:   2,
			StartedAt:     start,
			FinishedAt:    start.Add(1500 * time.Millisecond),
		},
		Path: "out/dart_finstate_2023.xlsx",
		Sheet: &sheet.Report{
			Rows:        1,
			Repaired:    3,
			Irreparable: []sheet.IrreparableCell{{Cell: "D7", Column: "thstrm_amount", Row: 7, Text: "see note"}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleExport())

	for _, want := range []string{
		"`run-1`",
		"사업보고서 (11011)",
		"1 success, 1 empty, 1 failed",
		"`out/dart_finstate_2023.xlsx`",
		`status 020 \| limit`,
		"Unparseable values blanked: 2",
		"Cells converted from text: 3",
		"| D7 | thstrm_amount | see note |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %q\n%s", want, md)
		}
	}
}

func TestMarkdown_NothingCollected(t *testing.T) {
	exp := sampleExport()
	exp.Path, exp.Sheet = "", nil
	md := Markdown(exp)
	if !strings.Contains(md, "none (nothing collected)") || strings.Contains(md, "Spreadsheet Repair") {
		t.Errorf("unexpected summary:\n%s", md)
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(Markdown(sampleExport()))
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := doc.Find("h1").Text(); got != "DART Financial Statement Collection" {
		t.Errorf("h1 = %q", got)
	}

	tables := doc.Find("table")
	if tables.Length() != 2 {
		t.Fatalf("tables = %d, want 2", tables.Length())
	}
	units := tables.First().Find("tbody tr")
	if units.Length() != 3 {
		t.Errorf("unit rows = %d, want 3", units.Length())
	}
	if got := units.Eq(1).Find("td").Last().Text(); got != "status 020 | limit" {
		t.Errorf("error cell = %q", got)
	}
}
