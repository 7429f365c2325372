package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(rows ...map[string]string) []domain.ImportRecord {
	out := make([]domain.ImportRecord, 0, len(rows))
	for i, values := range rows {
		out = append(out, domain.ImportRecord{Line: i + 2, Values: values})
	}
	return out
}

func TestImportEquipmentSkipsRowsWithoutCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rows := make([]map[string]string, 0, 10)
	for i := 1; i <= 10; i++ {
		code := fmt.Sprintf("EQ-%02d", i)
		if i == 4 || i == 9 {
			code = " -  "
		}
		rows = append(rows, map[string]string{
			colEquipCode:    code,
			colCategory:     "EXC",
			colHourlyCost:   "45,5",
			colPer100kmCost: "nan",
		})
	}

	report, err := svc.Import(ctx, domain.DatasetEquipment, records(rows...))
	require.NoError(t, err)
	assert.Equal(t, 10, report.Rows)
	assert.Equal(t, 8, report.Created)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, 5, report.Issues[0].Line)
	assert.Equal(t, 10, report.Issues[1].Line)

	list, err := svc.ListEquipment(ctx, domain.EquipmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 8)
	assert.Equal(t, "45.50", list[0].HourlyUsageCost.StringFixed(2))
	assert.True(t, list[0].Per100kmUsageCost.IsZero())
	assert.Equal(t, "H", list[0].MeterUnit)

	home, err := svc.store.GetSiteByCode(ctx, homeSiteCode)
	require.NoError(t, err)
	assert.Equal(t, domain.SiteTypeDepot, home.SiteType)
	assert.Equal(t, domain.CenterAdmin, home.AnalyticCenter)
	require.NotNil(t, list[0].HomeSiteID)
	assert.Equal(t, home.ID, *list[0].HomeSiteID)
}

func TestImportEquipmentUpdatesCostsOfKnownCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Import(ctx, domain.DatasetEquipment, records(map[string]string{colEquipCode: "EQ-1", colHourlyCost: "10"}))
	require.NoError(t, err)

	report, err := svc.Import(ctx, domain.DatasetEquipment, records(map[string]string{colEquipCode: "EQ-1", colHourlyCost: "12.5", colPer100kmCost: "30"}))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	eq, err := svc.store.GetEquipmentByCode(ctx, "EQ-1")
	require.NoError(t, err)
	assert.Equal(t, "12.50", eq.HourlyUsageCost.StringFixed(2))
	assert.Equal(t, "30.00", eq.Per100kmUsageCost.StringFixed(2))
}

func TestImportPersonnelAssignsTemporaryMatricule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	report, err := svc.Import(ctx, domain.DatasetPersonnel, records(
		map[string]string{colFullName: "Ana Ionescu", colMatricule: "1001", colDivision: "Productie", colService: "Atelier", colFunction: "Sudor", colFunctionCode: "7212"},
		map[string]string{colFullName: "Mihai Pop", colMatricule: "?", colBaseSalary: "3000.00", colSupplement: "500.00"},
		map[string]string{colFullName: "", colMatricule: "1003"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Skipped)

	temp, err := svc.store.GetPersonByMatricule(ctx, "TEMP_2")
	require.NoError(t, err)
	assert.Equal(t, "Mihai Pop", temp.FullName)
	assert.Equal(t, "20.83", temp.HourlyCostRate.StringFixed(2))

	ana, err := svc.store.GetPersonByMatricule(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Atelier", ana.ServiceName)
	assert.Equal(t, "Sudor", ana.FunctionName)
	assert.True(t, ana.HourlyCostRate.IsZero())

	// re-import updates in place
	report, err = svc.Import(ctx, domain.DatasetPersonnel, records(map[string]string{colFullName: "Ana Ionescu-Pop", colMatricule: "1001"}))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	ana, err = svc.store.GetPersonByMatricule(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Ana Ionescu-Pop", ana.FullName)
}

func TestImportSitesWarnsAndKeepsRow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreatePerson(ctx, PersonInput{Matricule: "C-1", FullName: "Radu Chef Marinescu"})
	require.NoError(t, err)

	report, err := svc.Import(ctx, domain.DatasetSites, records(
		map[string]string{colSiteCode: "CH-10", colSiteTitle: "Pod", colSiteType: "usine", colClient: "Acme", colManager: "Chef", colStartDate: "45292", colStatus: "termine"},
		map[string]string{colSiteCode: "CH-11", colSiteTitle: "Drum", colManager: "Nobody", colEndDate: "soon"},
		map[string]string{colSiteCode: "CH-12"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Warnings, 2)

	plant, err := svc.store.GetSiteByCode(ctx, "CH-10")
	require.NoError(t, err)
	assert.Equal(t, domain.CenterProduction, plant.AnalyticCenter)
	assert.False(t, plant.Active)
	assert.Equal(t, "Radu Chef Marinescu", plant.ManagerName)
	require.NotNil(t, plant.StartDate)
	assert.Equal(t, "2024-01-01", plant.StartDate.Format(dateLayout))

	road, err := svc.store.GetSiteByCode(ctx, "CH-11")
	require.NoError(t, err)
	assert.Nil(t, road.ManagerID)
	assert.Nil(t, road.EndDate)
	assert.Equal(t, domain.CenterWorksite, road.AnalyticCenter)
	assert.True(t, road.Active)
}

func TestImportExpensesSkipsBadRows(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	report, err := svc.Import(ctx, domain.DatasetExpenses, records(
		map[string]string{colRegistration: fx.equipment.Registration, colExpenseDate: "2024-02-01", colSupplier: "Garage Sud", colAmount: "1 250,40"},
		map[string]string{colRegistration: "UNKNOWN", colExpenseDate: "2024-02-01", colAmount: "10"},
		map[string]string{colRegistration: fx.equipment.Registration, colExpenseDate: "2024-02-01", colAmount: "abc"},
		map[string]string{colRegistration: fx.equipment.Registration, colExpenseDate: "yesterday", colAmount: "10"},
		map[string]string{colRegistration: fx.equipment.Registration, colExpenseDate: "2024-02-01"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 4, report.Skipped)

	list, err := svc.ListExpenses(ctx, domain.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1250.40", list[0].AmountExclTax.StringFixed(2))
	assert.Equal(t, unknownExpenseType, list[0].ExpenseType)
	assert.Equal(t, "Garage Sud", list[0].SupplierName)
}

func TestImportExpensesSkipsAmountRoundingToZero(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	report, err := svc.Import(ctx, domain.DatasetExpenses, records(
		map[string]string{colRegistration: fx.equipment.Registration, colExpenseDate: "2024-02-01", colAmount: "0,004"},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].Reason, "must be > 0")

	list, err := svc.ListExpenses(ctx, domain.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportRejectsUnknownDataset(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Import(context.Background(), domain.Dataset("vehicles"), nil)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestParseCellDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-04":          "2024-03-04",
		"04/03/2024":          "2024-03-04",
		"04.03.2024":          "2024-03-04",
		"2024-03-04 10:30:00": "2024-03-04",
		"45355":               "2024-03-04",
		"45355.75":            "2024-03-04",
		"45292":               "2024-01-01",
		"61":                  "1900-03-01",
	}
	for in, want := range cases {
		got, err := parseCellDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format(dateLayout), in)
	}
	_, err := parseCellDate("next week")
	assert.Error(t, err)
	_, err = parseCellDate("0")
	assert.Error(t, err)
}
