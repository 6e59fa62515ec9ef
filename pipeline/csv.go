package pipeline

import (
	"log"
	"strings"

	"github.com/KeldrickD/deal-genie-sub000/models"
)

// headerRule maps header wording onto a canonical field by substring
// containment. The export's header names drift between revisions
// ("ADDRESS" vs "STREET ADDRESS", "ZIP" vs "ZIP OR POSTAL CODE"), so
// exact matching is a trap. Rules are checked in order and the first hit
// wins; narrower wordings are listed before broader ones.
type headerRule struct {
	needles []string
	field   string
}

var headerRules = []headerRule{
	{[]string{"SALE TYPE"}, models.FieldSaleType},
	{[]string{"PROPERTY TYPE", "HOME TYPE"}, models.FieldPropertyType},
	{[]string{"DAYS ON MARKET", "DOM"}, models.FieldDaysOnMarket},
	{[]string{"SQUARE FEET", "SQUARE FOOT", "SQFT"}, models.FieldSqFt},
	{[]string{"ZIP", "POSTAL"}, models.FieldZip},
	{[]string{"STATE", "PROVINCE"}, models.FieldState},
	{[]string{"CITY"}, models.FieldCity},
	{[]string{"ADDRESS", "STREET"}, models.FieldStreet},
	{[]string{"PRICE"}, models.FieldPrice},
	{[]string{"BEDS", "BEDROOM"}, models.FieldBeds},
	{[]string{"BATHS", "BATHROOM"}, models.FieldBaths},
	{[]string{"URL"}, models.FieldURL},
	{[]string{"REMARKS", "DESCRIPTION"}, models.FieldDescription},
}

// parseCSVRows turns a raw export payload into canonically keyed rows.
// It returns nil when the payload holds no parseable tabular data.
func parseCSVRows(payload string) []map[string]string {
	lines := splitLines(payload)
	lines = stripPreamble(lines)
	if len(lines) < 2 {
		return nil
	}

	headers := splitCSVLine(lines[0])
	fields := mapHeaders(headers)

	mapped := 0
	for _, f := range fields {
		if f != "" {
			mapped++
		}
	}
	if mapped < 3 {
		log.Printf("csv: only %d recognizable headers, refusing to parse", mapped)
		return nil
	}

	var rows []map[string]string
	skipped := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitCSVLine(line)
		// A row materially shorter than the header set is corrupt, not
		// a parse failure for the whole payload.
		if len(cells) < len(headers)-2 {
			skipped++
			continue
		}

		row := make(map[string]string, mapped)
		for i, cell := range cells {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			if _, exists := row[fields[i]]; exists {
				continue
			}
			row[fields[i]] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		log.Printf("csv: skipped %d short rows", skipped)
	}
	return rows
}

// stripPreamble drops a leading non-CSV metadata line. Exports have been
// seen prefixed with an anti-hijack marker or a commented disclaimer.
func stripPreamble(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(first, "{}&&") || strings.HasPrefix(first, "#") || !strings.Contains(first, ",") {
		return lines[1:]
	}
	return lines
}

func mapHeaders(headers []string) []string {
	fields := make([]string, len(headers))
	for i, h := range headers {
		upper := strings.ToUpper(strings.TrimSpace(h))
		for _, rule := range headerRules {
			matched := false
			for _, needle := range rule.needles {
				if strings.Contains(upper, needle) {
					matched = true
					break
				}
			}
			if matched {
				fields[i] = rule.field
				break
			}
		}
	}
	return fields
}

// splitCSVLine splits one line on commas, honoring double-quoted fields
// with embedded commas and doubled-quote escapes. A naive strings.Split
// shreds addresses like "Unit, 4".
func splitCSVLine(line string) []string {
	var cells []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			cells = append(cells, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	cells = append(cells, cur.String())
	return cells
}

func splitLines(payload string) []string {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	payload = strings.ReplaceAll(payload, "\r", "\n")
	return strings.Split(payload, "\n")
}
