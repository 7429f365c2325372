package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "siteops_test.db")

	db, err := Open(dbPath, nil)
	require.NoError(t, err, "open db")
	require.NoError(t, RunMigrations(ctx, db), "run migrations")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return NewStore(db)
}

func countSlot(t *testing.T, repo *Store, day time.Time, equipmentID uint, slot int) int64 {
	t.Helper()
	var count int64
	require.NoError(t, repo.db.Model(&AssignmentModel{}).
		Where("date = ? AND equipment_id = ? AND half_day_slot = ?", formatDate(day), equipmentID, slot).
		Count(&count).Error)
	return count
}

func seedSiteAndEquipment(t *testing.T, repo *Store) (domain.Site, domain.Equipment) {
	t.Helper()
	ctx := context.Background()

	site, err := repo.CreateSite(ctx, domain.Site{
		Code:           "CH-001",
		Name:           "Pont Nord",
		SiteType:       domain.SiteTypeWorksite,
		AnalyticCenter: domain.CenterWorksite,
		Status:         domain.SiteStatusOngoing,
		Active:         true,
	})
	require.NoError(t, err)

	eq, err := repo.CreateEquipment(ctx, domain.Equipment{
		Code:              "EXC-01",
		Registration:      "B-101-XYZ",
		HourlyUsageCost:   decimal.RequireFromString("50.00"),
		Per100kmUsageCost: decimal.RequireFromString("20.00"),
		Active:            true,
	})
	require.NoError(t, err)

	return site, eq
}

func TestInsertReferenceReturnsExistingRowOnSecondInsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	first, created, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindClient, Key: "Acme"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindClient, Key: "Acme", Label: "PRIVATE"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Empty(t, second.Label, "attrs of the losing insert must not leak into the stored row")

	all, err := repo.ListReferences(ctx, domain.KindClient, "Acme", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFindReferenceIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	_, _, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindCategory, Key: "EXCAV", Label: "Excavators"})
	require.NoError(t, err)

	_, err = repo.FindReference(ctx, domain.Reference{Kind: domain.KindCategory, Key: "excav"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFunctionIdentityFollowsCodeThenName(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	coded, created, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindFunction, Key: "Sudor", Code: "F01"})
	require.NoError(t, err)
	require.True(t, created)

	// same code, other name: the code wins
	hit, err := repo.FindReference(ctx, domain.Reference{Kind: domain.KindFunction, Key: "Welder", Code: "F01"})
	require.NoError(t, err)
	require.Equal(t, coded.ID, hit.ID)
	require.Equal(t, "Sudor", hit.Key)

	// same name without a code is a different function
	_, err = repo.FindReference(ctx, domain.Reference{Kind: domain.KindFunction, Key: "Sudor"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	uncoded, created, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindFunction, Key: "Sudor"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, coded.ID, uncoded.ID)

	again, created, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindFunction, Key: "Sudor"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, uncoded.ID, again.ID)
}

func TestInsertReferenceRejectsUnknownKind(t *testing.T) {
	repo := newTestStore(t)

	_, _, err := repo.InsertReference(context.Background(), domain.Reference{Kind: "vehicle", Key: "x"})
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestSiteReferenceMapsAnalyticCenter(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	ref, _, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindSite, Key: "DEPOT-CENTRAL", SiteType: domain.SiteTypeDepot})
	require.NoError(t, err)
	require.Equal(t, domain.CenterAdmin, ref.AnalyticCenter)

	site, err := repo.GetSiteByCode(ctx, "DEPOT-CENTRAL")
	require.NoError(t, err)
	require.Equal(t, ref.ID, site.ID)
	require.Equal(t, domain.SiteStatusOngoing, site.Status)
	require.True(t, site.Active)
}

func TestInsertAssignmentRejectsDuplicateSlot(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	site, eq := seedSiteAndEquipment(t, repo)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	value := domain.Assignment{
		Date:        day,
		EquipmentID: eq.ID,
		SiteID:      site.ID,
		HalfDaySlot: domain.SlotMorning,
		HoursWorked: decimal.RequireFromString("4"),
		UsageCost:   decimal.RequireFromString("200.00"),
	}
	stored, err := repo.InsertAssignment(ctx, value)
	require.NoError(t, err)
	require.Equal(t, "2024-03-01", stored.Date.Format("2006-01-02"))

	_, err = repo.InsertAssignment(ctx, value)
	require.ErrorIs(t, err, domain.ErrDuplicateSlot)

	require.EqualValues(t, 1, countSlot(t, repo, day, eq.ID, domain.SlotMorning))

	value.HalfDaySlot = domain.SlotAfternoon
	_, err = repo.InsertAssignment(ctx, value)
	require.NoError(t, err)

	found, err := repo.FindAssignmentBySlot(ctx, day, eq.ID, domain.SlotMorning)
	require.NoError(t, err)
	require.True(t, found.UsageCost.Equal(decimal.RequireFromString("200")))
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	site, eq := seedSiteAndEquipment(t, repo)
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx domain.Store) error {
		if _, err := tx.InsertAssignment(ctx, domain.Assignment{Date: day, EquipmentID: eq.ID, SiteID: site.ID, HalfDaySlot: domain.SlotMorning}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Zero(t, countSlot(t, repo, day, eq.ID, domain.SlotMorning))
}

func TestCreateSiteRejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	seedSiteAndEquipment(t, repo)

	_, err := repo.CreateSite(ctx, domain.Site{Code: "CH-001", Name: "Other", SiteType: domain.SiteTypeWorksite, Status: domain.SiteStatusOngoing})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestExpensesListNewestFirstWithJoins(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	_, eq := seedSiteAndEquipment(t, repo)

	supplier, _, err := repo.InsertReference(ctx, domain.Reference{Kind: domain.KindSupplier, Key: "Garage Sud"})
	require.NoError(t, err)

	for i, day := range []int{3, 9, 5} {
		_, err := repo.CreateExpense(ctx, domain.Expense{
			EquipmentID:   eq.ID,
			SupplierID:    &supplier.ID,
			Date:          time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC),
			ExpenseType:   "REPARATIE",
			AmountExclTax: decimal.NewFromInt(int64(100 * (i + 1))),
		})
		require.NoError(t, err)
	}

	rows, err := repo.ListExpenses(ctx, domain.ExpenseFilter{EquipmentID: &eq.ID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, 9, rows[0].Date.Day())
	require.Equal(t, 3, rows[2].Date.Day())
	require.Equal(t, "Garage Sud", rows[0].SupplierName)
	require.Equal(t, "B-101-XYZ", rows[0].EquipmentRegistration)
}

func TestSoftDeleteMissingEquipmentIsNotFound(t *testing.T) {
	repo := newTestStore(t)

	err := repo.SetEquipmentActive(context.Background(), 999, false)
	require.True(t, domain.IsNotFoundOf(err, domain.EntityEquipment))
}
