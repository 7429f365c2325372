package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCell(t *testing.T) {
	cases := map[string]string{
		"  EXC-01 ": "EXC-01",
		"":          "",
		" - ":       "",
		"?":         "",
		"nan":       "",
		"NaN":       "",
		"NAN":       "NAN",
		"0":         "0",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeCell(in), "input %q", in)
	}
}

func TestImportRecordGetNormalizes(t *testing.T) {
	rec := ImportRecord{Line: 2, Values: map[string]string{"EquipID": " EXC-01", "Immat": "-"}}
	require.Equal(t, "EXC-01", rec.Get("EquipID"))
	require.Empty(t, rec.Get("Immat"))
	require.Empty(t, rec.Get("Missing"))
}

func TestDatasetValid(t *testing.T) {
	for _, ds := range Datasets {
		require.True(t, ds.Valid())
	}
	require.False(t, Dataset("invoices").Valid())
}

func TestImportReportCount(t *testing.T) {
	var r ImportReport
	r.Count(RowCreated)
	r.Count(RowCreated)
	r.Count(RowUpdated)
	r.Count(RowSkipped)
	require.Equal(t, 2, r.Created)
	require.Equal(t, 1, r.Updated)
	require.Equal(t, 1, r.Skipped)
}
