package application

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ActiveFilter reads the "active" list filter. Absent means active rows
// only, "all" lifts the filter.
func ActiveFilter(raw string) (*bool, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		v := true
		return &v, nil
	case "all":
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.Malformed("active", "must be true, false or all")
	}
	return &v, nil
}

type CreateAssignmentInput struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	EquipmentID uint            `json:"equipment_id" validate:"required"`
	SiteID      uint            `json:"site_id" validate:"required"`
	HalfDaySlot int             `json:"half_day_slot" validate:"required,oneof=1 2"`
	OperatorID  *uint           `json:"operator_id,omitempty" validate:"omitempty,gt=0"`
	ActivityID  *uint           `json:"activity_id,omitempty" validate:"omitempty,gt=0"`
	ReasonCode  string          `json:"reason_code,omitempty" validate:"max=32"`
	HoursWorked decimal.Decimal `json:"hours_worked" validate:"gte=0"`
	KmDriven    decimal.Decimal `json:"km_driven" validate:"gte=0"`
	FuelLiters  decimal.Decimal `json:"fuel_liters" validate:"gte=0"`
}

type SiteInput struct {
	Code       string `json:"code" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=255"`
	SiteType   string `json:"site_type" validate:"omitempty,oneof=USINE CHANTIER DEPOT BUREAU"`
	ClientName string `json:"client" validate:"max=255"`
	Location   string `json:"location" validate:"max=255"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ManagerID  *uint  `json:"manager_id" validate:"omitempty,gt=0"`
	Status     string `json:"status" validate:"omitempty,oneof=EN_COURS TERMINE PLANIFIE SUSPENDU"`
	Active     *bool  `json:"active"`
}

// SiteUpdate changes only the fields that are set.
type SiteUpdate struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	SiteType   *string `json:"site_type" validate:"omitempty,oneof=USINE CHANTIER DEPOT BUREAU"`
	ClientName *string `json:"client" validate:"omitempty,max=255"`
	Location   *string `json:"location" validate:"omitempty,max=255"`
	StartDate  *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ManagerID  *uint   `json:"manager_id" validate:"omitempty,gt=0"`
	Status     *string `json:"status" validate:"omitempty,oneof=EN_COURS TERMINE PLANIFIE SUSPENDU"`
	Active     *bool   `json:"active"`
}

type EquipmentInput struct {
	Code              string          `json:"code" validate:"required,max=64"`
	Registration      string          `json:"registration" validate:"max=64"`
	CategoryCode      string          `json:"category_code" validate:"max=64"`
	MeterUnit         string          `json:"meter_unit" validate:"max=16"`
	UsageSource       string          `json:"usage_source" validate:"max=32"`
	FuelPerHour       decimal.Decimal `json:"fuel_per_hour" validate:"gte=0"`
	HourlyUsageCost   decimal.Decimal `json:"hourly_usage_cost" validate:"gte=0"`
	Per100kmUsageCost decimal.Decimal `json:"per_100km_usage_cost" validate:"gte=0"`
	HomeSiteID        *uint           `json:"home_site_id" validate:"omitempty,gt=0"`
	Active            *bool           `json:"active"`
}

type EquipmentUpdate struct {
	Registration      *string          `json:"registration" validate:"omitempty,max=64"`
	CategoryCode      *string          `json:"category_code" validate:"omitempty,max=64"`
	MeterUnit         *string          `json:"meter_unit" validate:"omitempty,max=16"`
	UsageSource       *string          `json:"usage_source" validate:"omitempty,max=32"`
	FuelPerHour       *decimal.Decimal `json:"fuel_per_hour" validate:"omitempty,gte=0"`
	HourlyUsageCost   *decimal.Decimal `json:"hourly_usage_cost" validate:"omitempty,gte=0"`
	Per100kmUsageCost *decimal.Decimal `json:"per_100km_usage_cost" validate:"omitempty,gte=0"`
	HomeSiteID        *uint            `json:"home_site_id" validate:"omitempty,gt=0"`
	Active            *bool            `json:"active"`
}

type PersonInput struct {
	Matricule        string           `json:"matricule" validate:"required,max=64"`
	FullName         string           `json:"full_name" validate:"required,max=255"`
	Sector           string           `json:"sector" validate:"max=128"`
	DivisionName     string           `json:"division" validate:"max=255"`
	ServiceName      string           `json:"service" validate:"max=255"`
	FunctionName     string           `json:"function" validate:"max=255"`
	FunctionCode     string           `json:"function_code" validate:"max=64"`
	BaseSalary       *decimal.Decimal `json:"base_salary" validate:"omitempty,gte=0"`
	SalarySupplement *decimal.Decimal `json:"salary_supplement" validate:"omitempty,gte=0"`
	HourlyCostRate   *decimal.Decimal `json:"hourly_cost_rate" validate:"omitempty,gte=0"`
	Active           *bool            `json:"active"`
}

type PersonUpdate struct {
	FullName         *string          `json:"full_name" validate:"omitempty,min=1,max=255"`
	Sector           *string          `json:"sector" validate:"omitempty,max=128"`
	DivisionName     *string          `json:"division" validate:"omitempty,max=255"`
	ServiceName      *string          `json:"service" validate:"omitempty,max=255"`
	FunctionName     *string          `json:"function" validate:"omitempty,max=255"`
	FunctionCode     *string          `json:"function_code" validate:"omitempty,max=64"`
	BaseSalary       *decimal.Decimal `json:"base_salary" validate:"omitempty,gte=0"`
	SalarySupplement *decimal.Decimal `json:"salary_supplement" validate:"omitempty,gte=0"`
	HourlyCostRate   *decimal.Decimal `json:"hourly_cost_rate" validate:"omitempty,gte=0"`
	Active           *bool            `json:"active"`
}

type ExpenseInput struct {
	EquipmentID   uint            `json:"equipment_id" validate:"required"`
	SupplierName  string          `json:"supplier" validate:"max=255"`
	Date          string          `json:"date" validate:"required,datetime=2006-01-02"`
	ExpenseType   string          `json:"expense_type" validate:"required,max=64"`
	AmountExclTax decimal.Decimal `json:"amount_excl_tax" validate:"gt=0"`
	Description   string          `json:"description" validate:"max=2000"`
}

// newValidator checks decimals through their float value and reports
// fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// check validates in and converts the first violation to a
// MalformedInputError.
func (s *ERPService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.Malformed(fe.Field(), describeRule(fe))
	}
	return domain.Malformed("", err.Error())
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
