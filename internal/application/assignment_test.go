package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	site      domain.Site
	equipment domain.Equipment
	operator  domain.Person
}

func seedFixture(t *testing.T, svc *ERPService) fixture {
	t.Helper()
	ctx := context.Background()

	site, err := svc.CreateSite(ctx, SiteInput{Code: "CH-001", Name: "Pont Nord"})
	require.NoError(t, err)

	eq, err := svc.CreateEquipment(ctx, EquipmentInput{
		Code:              "EXC-01",
		Registration:      "B-101-XYZ",
		CategoryCode:      "EXC",
		HourlyUsageCost:   dec("50.00"),
		Per100kmUsageCost: dec("20.00"),
	})
	require.NoError(t, err)

	rate := dec("25.50")
	operator, err := svc.CreatePerson(ctx, PersonInput{
		Matricule:      "M-001",
		FullName:       "Ion Popescu",
		HourlyCostRate: &rate,
	})
	require.NoError(t, err)

	return fixture{site: site, equipment: eq, operator: operator}
}

func TestCreateAssignmentComputesCosts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	a, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		Date:        "2024-03-04",
		EquipmentID: fx.equipment.ID,
		SiteID:      fx.site.ID,
		HalfDaySlot: domain.SlotMorning,
		OperatorID:  &fx.operator.ID,
		HoursWorked: dec("8"),
		KmDriven:    dec("150"),
	})
	require.NoError(t, err)
	assert.Equal(t, "430.00", a.UsageCost.StringFixed(2))
	assert.Equal(t, "204.00", a.OperatorCost.StringFixed(2))
	assert.Equal(t, "2024-03-04", a.Date.Format(dateLayout))
}

func TestCreateAssignmentWithoutOperatorHasNoOperatorCost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	a, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		Date:        "2024-03-04",
		EquipmentID: fx.equipment.ID,
		SiteID:      fx.site.ID,
		HalfDaySlot: domain.SlotAfternoon,
		HoursWorked: dec("4"),
	})
	require.NoError(t, err)
	assert.True(t, a.OperatorCost.IsZero())
	assert.Equal(t, "200.00", a.UsageCost.StringFixed(2))
}

func TestCreateAssignmentRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	fx := seedFixture(t, svc)

	in := CreateAssignmentInput{Date: "2024-03-04", EquipmentID: fx.equipment.ID, SiteID: fx.site.ID, HalfDaySlot: 1, HoursWorked: dec("8")}
	_, err := svc.CreateAssignment(ctx, in)
	require.NoError(t, err)

	_, err = svc.CreateAssignment(ctx, in)
	require.ErrorIs(t, err, domain.ErrDuplicateSlot)

	// the other half-day is still free
	in.HalfDaySlot = 2
	_, err = svc.CreateAssignment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 1, countSlot(t, store, mustDate(t, "2024-03-04"), fx.equipment.ID, 1))
}

func TestConcurrentAssignmentsForOneSlotKeepOneRow(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	fx := seedFixture(t, svc)

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
				Date:        "2024-05-02",
				EquipmentID: fx.equipment.ID,
				SiteID:      fx.site.ID,
				HalfDaySlot: 2,
				HoursWorked: dec("3"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateSlot):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dupes)

	assert.Equal(t, 1, countSlot(t, store, mustDate(t, "2024-05-02"), fx.equipment.ID, 2))
}

func TestCreateAssignmentUnknownEquipmentWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		Date:        "2024-03-04",
		EquipmentID: 9999,
		SiteID:      fx.site.ID,
		HalfDaySlot: 1,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, domain.IsNotFoundOf(err, domain.EntityEquipment))

	list, err := svc.ListAssignments(ctx, domain.AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateAssignmentUnknownSiteAndOperator(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		Date: "2024-03-04", EquipmentID: fx.equipment.ID, SiteID: 4242, HalfDaySlot: 1,
	})
	assert.True(t, domain.IsNotFoundOf(err, domain.EntitySite), "got %v", err)

	missing := uint(777)
	_, err = svc.CreateAssignment(ctx, CreateAssignmentInput{
		Date: "2024-03-04", EquipmentID: fx.equipment.ID, SiteID: fx.site.ID, HalfDaySlot: 1, OperatorID: &missing,
	})
	assert.True(t, domain.IsNotFoundOf(err, domain.EntityOperator), "got %v", err)
}

func TestCreateAssignmentValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	fx := seedFixture(t, svc)

	cases := map[string]CreateAssignmentInput{
		"slot out of range": {Date: "2024-03-04", EquipmentID: fx.equipment.ID, SiteID: fx.site.ID, HalfDaySlot: 3},
		"negative hours":    {Date: "2024-03-04", EquipmentID: fx.equipment.ID, SiteID: fx.site.ID, HalfDaySlot: 1, HoursWorked: dec("-1")},
		"bad date":          {Date: "04/03/2024", EquipmentID: fx.equipment.ID, SiteID: fx.site.ID, HalfDaySlot: 1},
		"missing equipment": {Date: "2024-03-04", SiteID: fx.site.ID, HalfDaySlot: 1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateAssignment(ctx, in)
			require.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}

func countSlot(t *testing.T, store domain.LedgerRepository, day time.Time, equipmentID uint, slot int) int {
	t.Helper()
	rows, err := store.ListAssignments(context.Background(), domain.AssignmentFilter{From: &day, To: &day, EquipmentID: &equipmentID})
	require.NoError(t, err)
	n := 0
	for _, row := range rows {
		if row.HalfDaySlot == slot {
			n++
		}
	}
	return n
}
