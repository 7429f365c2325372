package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestUsageCostAddsHourAndDistanceTerms(t *testing.T) {
	got := UsageCost(d("8"), d("150"), d("50.00"), d("20.00"))
	require.True(t, got.Equal(d("430.00")), "got %s", got)

	onlyHours := UsageCost(d("8"), decimal.Zero, d("50.00"), d("20.00"))
	require.True(t, onlyHours.Equal(d("400")), "got %s", onlyHours)

	onlyKm := UsageCost(decimal.Zero, d("150"), d("50.00"), d("20.00"))
	require.True(t, onlyKm.Equal(d("30")), "got %s", onlyKm)
}

func TestUsageCostHasNoFloatDrift(t *testing.T) {
	got := UsageCost(d("0.1"), d("0.3"), d("0.2"), d("33.33"))
	// 0.02 + 0.09999
	require.Equal(t, "0.11999", got.String())
}

func TestOperatorCost(t *testing.T) {
	require.True(t, OperatorCost(d("8"), d("25.50")).Equal(d("204.00")))
	require.True(t, OperatorCost(d("8"), decimal.Zero).IsZero())
}

func TestHourlyRateFromSalary(t *testing.T) {
	require.Equal(t, "20.83", HourlyRateFromSalary(d("3000.00"), d("500.00")).StringFixed(2))
	require.True(t, HourlyRateFromSalary(decimal.Zero, decimal.Zero).IsZero())
	require.Equal(t, "17.86", HourlyRateFromSalary(d("3000"), decimal.Zero).StringFixed(2))
}

func TestResolveHourlyRate(t *testing.T) {
	salary := d("3000.00")
	supplement := d("500.00")
	explicit := d("31.20")
	zero := decimal.Zero

	require.Equal(t, "31.2", ResolveHourlyRate(&explicit, &salary, &supplement).String())
	require.Equal(t, "20.83", ResolveHourlyRate(nil, &salary, &supplement).String())
	require.Equal(t, "20.83", ResolveHourlyRate(&zero, &salary, &supplement).String())
	require.True(t, ResolveHourlyRate(nil, nil, &supplement).IsZero())
	require.True(t, ResolveHourlyRate(nil, nil, nil).IsZero())
}

func TestAnalyticCenterForSiteType(t *testing.T) {
	cases := map[string]string{
		SiteTypePlant:    CenterProduction,
		SiteTypeWorksite: CenterWorksite,
		SiteTypeDepot:    CenterAdmin,
		SiteTypeOffice:   CenterAdmin,
		"CARRIERE":       CenterWorksite,
	}
	for siteType, want := range cases {
		require.Equal(t, want, AnalyticCenterForSiteType(siteType), siteType)
	}
}

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	err := NotFound(EntityEquipment, 42)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, IsNotFoundOf(err, EntityEquipment))
	require.False(t, IsNotFoundOf(err, EntityOperator))
	require.EqualError(t, err, "equipment 42 not found")
}
