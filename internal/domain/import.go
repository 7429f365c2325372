package domain

import "strings"

type Dataset string

const (
	DatasetEquipment Dataset = "equipment"
	DatasetPersonnel Dataset = "personnel"
	DatasetSites     Dataset = "sites"
	DatasetExpenses  Dataset = "expenses"
)

var Datasets = []Dataset{DatasetEquipment, DatasetPersonnel, DatasetSites, DatasetExpenses}

func (d Dataset) Valid() bool {
	for _, known := range Datasets {
		if d == known {
			return true
		}
	}
	return false
}

// placeholders are cell values that spreadsheets use for "no value".
var placeholders = map[string]struct{}{
	"":    {},
	"-":   {},
	"?":   {},
	"nan": {},
	"NaN": {},
}

// NormalizeCell trims a cell and maps placeholder tokens to "".
func NormalizeCell(value string) string {
	trimmed := strings.TrimSpace(value)
	if _, ok := placeholders[trimmed]; ok {
		return ""
	}
	return trimmed
}

// ImportRecord is one data row keyed by header. Line is the 1-based row
// number in the source, the header being line 1.
type ImportRecord struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
}

func (r ImportRecord) Get(column string) string {
	return NormalizeCell(r.Values[column])
}

type RowOutcome string

const (
	RowCreated RowOutcome = "created"
	RowUpdated RowOutcome = "updated"
	RowSkipped RowOutcome = "skipped"
)

type RowIssue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Dataset  Dataset    `json:"dataset"`
	Rows     int        `json:"rows"`
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Issues   []RowIssue `json:"issues"`
	Warnings []RowIssue `json:"warnings,omitempty"`
}

func (r *ImportReport) Count(outcome RowOutcome) {
	switch outcome {
	case RowCreated:
		r.Created++
	case RowUpdated:
		r.Updated++
	case RowSkipped:
		r.Skipped++
	}
}
