package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSXKeysRowsByHeader(t *testing.T) {
	buf := workbook(t, [][]any{
		{" EquipID ", "Categorie", "Cout_Usage_1h_lei"},
		{"EQ-01", "EXC", 45.5},
		{"", "", ""},
		{"EQ-02", " -  ", "?"},
	})

	recs, err := ReadXLSX(buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, "EQ-01", recs[0].Get("EquipID"))
	assert.Equal(t, "45.5", recs[0].Get("Cout_Usage_1h_lei"))

	assert.Equal(t, 4, recs[1].Line)
	assert.Equal(t, "", recs[1].Get("Categorie"))
	assert.Equal(t, "", recs[1].Get("Cout_Usage_1h_lei"))
}

func TestReadCSVSemicolonWithBOM(t *testing.T) {
	in := "\xEF\xBB\xBFImmatriculation;Data;montant\nB-1;2024-02-01;1250,40\nB-2;nan;\n"

	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "B-1", recs[0].Get("Immatriculation"))
	assert.Equal(t, "1250,40", recs[0].Get("montant"))
	assert.Equal(t, "", recs[1].Get("Data"))
}

func TestReadPicksFormatByExtension(t *testing.T) {
	recs, err := Read("sites.CSV", strings.NewReader("ChantierID,Intitule\nCH-1,Pod\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Pod", recs[0].Get("Intitule"))

	_, err = Read("sites.ods", strings.NewReader(""))
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestReadCSVWithoutHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}
