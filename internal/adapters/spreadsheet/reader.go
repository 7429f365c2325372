// Package spreadsheet turns uploaded workbooks and csv files into import
// records keyed by their header row.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// FormatOf picks the reader from the file extension.
func FormatOf(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", domain.Malformed("file", "expected an .xlsx or .csv file, got "+filename)
	}
}

// Read reads r according to the extension of filename.
func Read(filename string, r io.Reader) ([]domain.ImportRecord, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return ReadCSV(r)
	}
	return ReadXLSX(r)
}

// ReadXLSX reads the first sheet. Cells come back unformatted so dates
// arrive as serial numbers and amounts without thousands separators.
func ReadXLSX(r io.Reader) ([]domain.ImportRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.Malformed("file", "cannot open workbook: "+err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.Malformed("file", "workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheets[0])
	}
	return toRecords(rows)
}

// ReadCSV accepts comma or semicolon separated files, with or without a
// UTF-8 byte order mark.
func ReadCSV(r io.Reader) ([]domain.ImportRecord, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	head, _ := br.Peek(4096)
	firstLine, _, _ := bytes.Cut(head, []byte("\n"))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		cr.Comma = ';'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, domain.Malformed("file", "cannot parse csv: "+err.Error())
	}
	return toRecords(rows)
}

// toRecords keys every data row by the trimmed header. Blank rows are
// dropped but keep their line numbers counted.
func toRecords(rows [][]string) ([]domain.ImportRecord, error) {
	if len(rows) == 0 {
		return nil, domain.Malformed("file", "missing header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	records := make([]domain.ImportRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		values := make(map[string]string, len(header))
		blank := true
		for col, name := range header {
			if name == "" || col >= len(row) {
				continue
			}
			cell := domain.NormalizeCell(row[col])
			if cell != "" {
				blank = false
			}
			values[name] = cell
		}
		if blank {
			continue
		}
		records = append(records, domain.ImportRecord{Line: i + 2, Values: values})
	}
	return records, nil
}
