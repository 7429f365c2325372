package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferenceKind string

const (
	KindCategory ReferenceKind = "category"
	KindSite     ReferenceKind = "site"
	KindDivision ReferenceKind = "division"
	KindService  ReferenceKind = "service"
	KindFunction ReferenceKind = "function"
	KindSupplier ReferenceKind = "supplier"
	KindClient   ReferenceKind = "client"
	KindActivity ReferenceKind = "activity"
)

var ReferenceKinds = []ReferenceKind{
	KindCategory,
	KindSite,
	KindDivision,
	KindService,
	KindFunction,
	KindSupplier,
	KindClient,
	KindActivity,
}

func (k ReferenceKind) Valid() bool {
	for _, known := range ReferenceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Reference is the common shape of every lookup record. Key is the natural
// key of the kind: a code for categories, sites and activities, a name for
// the others. Functions keep both Key (name) and Code.
type Reference struct {
	ID             uint          `json:"id"`
	Kind           ReferenceKind `json:"kind"`
	Key            string        `json:"key"`
	Label          string        `json:"label,omitempty"`
	Code           string        `json:"code,omitempty"`
	ParentID       *uint         `json:"parent_id,omitempty"`
	SiteType       string        `json:"site_type,omitempty"`
	AnalyticCenter string        `json:"analytic_center,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ReferenceAttrs are only used when a reference has to be created.
type ReferenceAttrs struct {
	Label          string `json:"label"`
	Code           string `json:"code"`
	ParentID       *uint  `json:"parent_id"`
	SiteType       string `json:"site_type"`
	AnalyticCenter string `json:"analytic_center"`
}

const (
	SiteTypePlant    = "USINE"
	SiteTypeWorksite = "CHANTIER"
	SiteTypeDepot    = "DEPOT"
	SiteTypeOffice   = "BUREAU"

	CenterProduction = "PROD"
	CenterWorksite   = "CHANTIER"
	CenterAdmin      = "ADMIN"
	CenterRental     = "LOCATION"

	SiteStatusOngoing   = "EN_COURS"
	SiteStatusFinished  = "TERMINE"
	SiteStatusPlanned   = "PLANIFIE"
	SiteStatusSuspended = "SUSPENDU"
)

// AnalyticCenterForSiteType maps a site type to its analytic centre,
// falling back to the worksite centre for unknown types.
func AnalyticCenterForSiteType(siteType string) string {
	switch siteType {
	case SiteTypePlant:
		return CenterProduction
	case SiteTypeWorksite:
		return CenterWorksite
	case SiteTypeDepot, SiteTypeOffice:
		return CenterAdmin
	default:
		return CenterWorksite
	}
}

type Site struct {
	ID             uint       `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	SiteType       string     `json:"site_type"`
	AnalyticCenter string     `json:"analytic_center"`
	ClientID       *uint      `json:"client_id,omitempty"`
	ClientName     string     `json:"client,omitempty"`
	Location       string     `json:"location,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	ManagerID      *uint      `json:"manager_id,omitempty"`
	ManagerName    string     `json:"manager,omitempty"`
	Status         string     `json:"status"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type SiteFilter struct {
	SiteType string
	Status   string
	Active   *bool
	Limit    int
}

type Equipment struct {
	ID                uint            `json:"id"`
	Code              string          `json:"code"`
	Registration      string          `json:"registration,omitempty"`
	CategoryID        *uint           `json:"category_id,omitempty"`
	CategoryLabel     string          `json:"category,omitempty"`
	MeterUnit         string          `json:"meter_unit"`
	UsageSource       string          `json:"usage_source"`
	FuelPerHour       decimal.Decimal `json:"fuel_per_hour"`
	HourlyUsageCost   decimal.Decimal `json:"hourly_usage_cost"`
	Per100kmUsageCost decimal.Decimal `json:"per_100km_usage_cost"`
	HomeSiteID        *uint           `json:"home_site_id,omitempty"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type EquipmentFilter struct {
	CategoryCode string
	Active       *bool
	Limit        int
}

type Person struct {
	ID               uint            `json:"id"`
	Matricule        string          `json:"matricule"`
	FullName         string          `json:"full_name"`
	Sector           string          `json:"sector,omitempty"`
	DivisionID       *uint           `json:"division_id,omitempty"`
	DivisionName     string          `json:"division,omitempty"`
	ServiceID        *uint           `json:"service_id,omitempty"`
	ServiceName      string          `json:"service,omitempty"`
	FunctionID       *uint           `json:"function_id,omitempty"`
	FunctionName     string          `json:"function,omitempty"`
	FunctionCode     string          `json:"function_code,omitempty"`
	BaseSalary       decimal.Decimal `json:"base_salary"`
	SalarySupplement decimal.Decimal `json:"salary_supplement"`
	HourlyCostRate   decimal.Decimal `json:"hourly_cost_rate"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type PersonFilter struct {
	DivisionName string
	Active       *bool
	Limit        int
}

const (
	SlotMorning   = 1
	SlotAfternoon = 2
)

type Assignment struct {
	ID           uint            `json:"id"`
	Date         time.Time       `json:"date"`
	EquipmentID  uint            `json:"equipment_id"`
	SiteID       uint            `json:"site_id"`
	HalfDaySlot  int             `json:"half_day_slot"`
	OperatorID   *uint           `json:"operator_id,omitempty"`
	ActivityID   *uint           `json:"activity_id,omitempty"`
	ReasonCode   string          `json:"reason_code,omitempty"`
	HoursWorked  decimal.Decimal `json:"hours_worked"`
	KmDriven     decimal.Decimal `json:"km_driven"`
	FuelLiters   decimal.Decimal `json:"fuel_liters"`
	UsageCost    decimal.Decimal `json:"usage_cost"`
	OperatorCost decimal.Decimal `json:"operator_cost"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AssignmentFilter struct {
	From        *time.Time
	To          *time.Time
	SiteID      *uint
	EquipmentID *uint
	Limit       int
}

type Expense struct {
	ID                    uint            `json:"id"`
	EquipmentID           uint            `json:"equipment_id"`
	EquipmentCode         string          `json:"equipment_code,omitempty"`
	EquipmentRegistration string          `json:"equipment_registration,omitempty"`
	SupplierID            *uint           `json:"supplier_id,omitempty"`
	SupplierName          string          `json:"supplier,omitempty"`
	Date                  time.Time       `json:"date"`
	ExpenseType           string          `json:"expense_type"`
	AmountExclTax         decimal.Decimal `json:"amount_excl_tax"`
	Description           string          `json:"description,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

type ExpenseFilter struct {
	EquipmentID *uint
	From        *time.Time
	To          *time.Time
	Limit       int
}

type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type Role struct {
	ID        uint      `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type AuditRecord struct {
	ID             uint      `json:"id"`
	ActorUserID    *uint     `json:"actor_user_id,omitempty"`
	ActorUserEmail string    `json:"actor_user_email"`
	Action         string    `json:"action"`
	TargetType     string    `json:"target_type"`
	TargetID       *uint     `json:"target_id,omitempty"`
	Metadata       string    `json:"metadata"`
	CreatedAt      time.Time `json:"created_at"`
}
