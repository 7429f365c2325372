package domain

import "github.com/shopspring/decimal"

// MonthlyHoursDivisor converts a monthly salary into an hourly cost.
const MonthlyHoursDivisor = 168

// MoneyPlaces is the storage precision of monetary fields.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// UsageCost is hours * hourly cost + km * per-100km cost / 100. Both terms
// apply when a slot has both hours and distance.
func UsageCost(hours, km, hourlyCost, per100kmCost decimal.Decimal) decimal.Decimal {
	return hours.Mul(hourlyCost).Add(km.Mul(per100kmCost).Div(hundred))
}

func OperatorCost(hours, hourlyRate decimal.Decimal) decimal.Decimal {
	return hours.Mul(hourlyRate)
}

// HourlyRateFromSalary derives (salary + supplement) / 168, rounded to the
// money precision. Non-positive totals give zero.
func HourlyRateFromSalary(salary, supplement decimal.Decimal) decimal.Decimal {
	total := salary.Add(supplement)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return RoundMoney(total.Div(decimal.NewFromInt(MonthlyHoursDivisor)))
}

func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// ResolveHourlyRate keeps an explicit positive rate and otherwise derives it
// from the salary when one is given.
func ResolveHourlyRate(explicit, salary, supplement *decimal.Decimal) decimal.Decimal {
	if explicit != nil && !explicit.IsZero() {
		return RoundMoney(*explicit)
	}
	if salary == nil || salary.IsZero() {
		return decimal.Zero
	}
	sup := decimal.Zero
	if supplement != nil {
		sup = *supplement
	}
	return HourlyRateFromSalary(*salary, sup)
}
