package pipeline

import (
	"strings"
	"testing"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

func TestParseCSVRows_Basic(t *testing.T) {
	payload := strings.Join([]string{
		"SALE TYPE,PROPERTY TYPE,ADDRESS,CITY,STATE OR PROVINCE,ZIP OR POSTAL CODE,PRICE,BEDS,BATHS,SQUARE FEET,DAYS ON MARKET,URL",
		"MLS Listing,Single Family Residential,2204 Riverview Dr,Austin,TX,78702,425000,3,2,1480,17,https://example.com/home/1",
		"For Sale by Owner,Townhouse,811 Cardinal Ln,Austin,TX,78704,612500,2,2,1190,4,https://example.com/home/2",
	}, "\n")

	rows := parseCSVRows(payload)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first[models.FieldStreet] != "2204 Riverview Dr" {
		t.Fatalf("unexpected street %q", first[models.FieldStreet])
	}
	if first[models.FieldCity] != "Austin" {
		t.Fatalf("unexpected city %q", first[models.FieldCity])
	}
	if first[models.FieldState] != "TX" {
		t.Fatalf("unexpected state %q", first[models.FieldState])
	}
	if first[models.FieldZip] != "78702" {
		t.Fatalf("unexpected zip %q", first[models.FieldZip])
	}
	if first[models.FieldPrice] != "425000" {
		t.Fatalf("unexpected price %q", first[models.FieldPrice])
	}
	if first[models.FieldSaleType] != "MLS Listing" {
		t.Fatalf("unexpected sale type %q", first[models.FieldSaleType])
	}
	if first[models.FieldPropertyType] != "Single Family Residential" {
		t.Fatalf("unexpected property type %q", first[models.FieldPropertyType])
	}
	if first[models.FieldDaysOnMarket] != "17" {
		t.Fatalf("unexpected days on market %q", first[models.FieldDaysOnMarket])
	}

	if rows[1][models.FieldSaleType] != "For Sale by Owner" {
		t.Fatalf("unexpected second sale type %q", rows[1][models.FieldSaleType])
	}
}

func TestParseCSVRows_QuotedCommas(t *testing.T) {
	payload := strings.Join([]string{
		"ADDRESS,CITY,STATE,PRICE",
		`"123 Main St, Unit 4",Springfield,IL,"199,000"`,
	}, "\n")

	rows := parseCSVRows(payload)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0][models.FieldStreet] != "123 Main St, Unit 4" {
		t.Fatalf("quoted comma shredded: %q", rows[0][models.FieldStreet])
	}
	if rows[0][models.FieldPrice] != "199,000" {
		t.Fatalf("quoted price shredded: %q", rows[0][models.FieldPrice])
	}
}

func TestParseCSVRows_PreambleStripped(t *testing.T) {
	for _, preamble := range []string{"{}&&", "# export generated 2026-01-01", "disclaimer"} {
		payload := strings.Join([]string{
			preamble,
			"ADDRESS,CITY,STATE,PRICE",
			"500 Elm St,Dallas,TX,310000",
		}, "\n")

		rows := parseCSVRows(payload)
		if len(rows) != 1 {
			t.Fatalf("preamble %q: expected 1 row, got %d", preamble, len(rows))
		}
		if rows[0][models.FieldStreet] != "500 Elm St" {
			t.Fatalf("preamble %q: unexpected street %q", preamble, rows[0][models.FieldStreet])
		}
	}
}

func TestParseCSVRows_HeaderDrift(t *testing.T) {
	payload := strings.Join([]string{
		"STREET ADDRESS,CITY,STATE,LIST PRICE,$/SQUARE FEET",
		"42 Drift Way,Tulsa,OK,250000,180",
	}, "\n")

	rows := parseCSVRows(payload)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[models.FieldStreet] != "42 Drift Way" {
		t.Fatalf("unexpected street %q", row[models.FieldStreet])
	}
	if row[models.FieldPrice] != "250000" {
		t.Fatalf("unexpected price %q", row[models.FieldPrice])
	}
	// "$/SQUARE FEET" must map to sqft, never price.
	if row[models.FieldSqFt] != "180" {
		t.Fatalf("unexpected sqft %q", row[models.FieldSqFt])
	}
}

func TestParseCSVRows_ShortRowsSkipped(t *testing.T) {
	payload := strings.Join([]string{
		"ADDRESS,CITY,STATE,ZIP,PRICE,BEDS",
		"1 Ok St,Austin,TX,78701,100000,2",
		"corrupt,row",
		"",
		"2 Ok St,Austin,TX,78702,200000,3",
	}, "\n")

	rows := parseCSVRows(payload)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after skipping, got %d", len(rows))
	}
	if rows[1][models.FieldStreet] != "2 Ok St" {
		t.Fatalf("unexpected surviving row %v", rows[1])
	}
}

func TestParseCSVRows_TooFewRecognizedHeaders(t *testing.T) {
	payload := strings.Join([]string{
		"FOO,BAR,BAZ",
		"1,2,3",
	}, "\n")

	if rows := parseCSVRows(payload); rows != nil {
		t.Fatalf("expected nil for unrecognizable headers, got %v", rows)
	}
}

func TestParseCSVRows_DuplicateHeaderFirstWins(t *testing.T) {
	payload := strings.Join([]string{
		"ADDRESS,CITY,STATE,PRICE,PRICE PER LEVEL",
		"9 Dup St,Reno,NV,150000,75000",
	}, "\n")

	rows := parseCSVRows(payload)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0][models.FieldPrice] != "150000" {
		t.Fatalf("duplicate price column overwrote first value: %q", rows[0][models.FieldPrice])
	}
}

func TestSplitCSVLine_EmbeddedDelimiter(t *testing.T) {
	cells := splitCSVLine(`123 Main St,"Unit, 4",Springfield`)
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d: %v", len(cells), cells)
	}
	if cells[1] != "Unit, 4" {
		t.Fatalf("unexpected middle cell %q", cells[1])
	}
}

func TestSplitCSVLine_EscapedQuotes(t *testing.T) {
	cells := splitCSVLine(`a,"he said ""hi""",c`)
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d: %v", len(cells), cells)
	}
	if cells[1] != `he said "hi"` {
		t.Fatalf("unexpected middle cell %q", cells[1])
	}
}

func TestSplitLines_CRLF(t *testing.T) {
	lines := splitLines("a,b\r\nc,d\re,f\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if lines[1] != "c,d" || lines[2] != "e,f" {
		t.Fatalf("unexpected lines %v", lines)
	}
}
