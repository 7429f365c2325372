package sqlite

import (
	"time"

	"github.com/shopspring/decimal"
)

// Calendar dates are stored as text so they sort and compare lexically.
const dateLayout = "2006-01-02"

type CategoryModel struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"not null;uniqueIndex"`
	Label     string `gorm:"not null;default:''"`
	CreatedAt time.Time
}

func (CategoryModel) TableName() string { return "equipment_categories" }

type ClientModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null;uniqueIndex"`
	ClientType string `gorm:"not null;default:''"`
	Contact    string `gorm:"not null;default:''"`
	Active     bool   `gorm:"not null"`
	CreatedAt  time.Time
}

func (ClientModel) TableName() string { return "clients" }

type SupplierModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (SupplierModel) TableName() string { return "suppliers" }

type DivisionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (DivisionModel) TableName() string { return "divisions" }

type ServiceModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null;uniqueIndex"`
	DivisionID *uint
	CreatedAt  time.Time
}

func (ServiceModel) TableName() string { return "services" }

// FunctionModel has two partial unique indexes: code when present, name
// among rows without a code.
type FunctionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Code      *string
	CreatedAt time.Time
}

func (FunctionModel) TableName() string { return "functions" }

type ActivityModel struct {
	ID           uint   `gorm:"primaryKey"`
	Code         string `gorm:"not null;uniqueIndex"`
	Label        string `gorm:"not null;default:''"`
	ActivityType string `gorm:"not null;default:''"`
	CreatedAt    time.Time
}

func (ActivityModel) TableName() string { return "activities" }

type SiteModel struct {
	ID             uint   `gorm:"primaryKey"`
	Code           string `gorm:"not null;uniqueIndex"`
	Name           string `gorm:"not null"`
	SiteType       string `gorm:"not null;default:'CHANTIER'"`
	AnalyticCenter string `gorm:"not null;default:'CHANTIER'"`
	ClientID       *uint
	Location       string `gorm:"not null;default:''"`
	StartDate      *string
	EndDate        *string
	ManagerID      *uint
	Status         string `gorm:"not null;default:'EN_COURS'"`
	Active         bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (SiteModel) TableName() string { return "sites" }

type EquipmentModel struct {
	ID                uint   `gorm:"primaryKey"`
	Code              string `gorm:"not null;uniqueIndex"`
	Registration      string `gorm:"not null;default:'';index"`
	CategoryID        *uint
	MeterUnit         string          `gorm:"not null;default:'H'"`
	UsageSource       string          `gorm:"not null;default:'MANUEL'"`
	FuelPerHour       decimal.Decimal `gorm:"type:text;not null"`
	HourlyUsageCost   decimal.Decimal `gorm:"type:text;not null"`
	Per100kmUsageCost decimal.Decimal `gorm:"column:per100km_usage_cost;type:text;not null"`
	HomeSiteID        *uint
	Active            bool `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (EquipmentModel) TableName() string { return "equipment" }

type PersonModel struct {
	ID               uint   `gorm:"primaryKey"`
	Matricule        string `gorm:"not null;uniqueIndex"`
	FullName         string `gorm:"not null;index"`
	Sector           string `gorm:"not null;default:''"`
	DivisionID       *uint
	ServiceID        *uint
	FunctionID       *uint
	BaseSalary       decimal.Decimal `gorm:"type:text;not null"`
	SalarySupplement decimal.Decimal `gorm:"type:text;not null"`
	HourlyCostRate   decimal.Decimal `gorm:"type:text;not null"`
	Active           bool            `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PersonModel) TableName() string { return "persons" }

type AssignmentModel struct {
	ID           uint   `gorm:"primaryKey"`
	Date         string `gorm:"not null;index:idx_assignments_slot,unique"`
	EquipmentID  uint   `gorm:"not null;index:idx_assignments_slot,unique"`
	SiteID       uint   `gorm:"not null;index"`
	HalfDaySlot  int    `gorm:"not null;index:idx_assignments_slot,unique"`
	OperatorID   *uint
	ActivityID   *uint
	ReasonCode   string          `gorm:"not null;default:''"`
	HoursWorked  decimal.Decimal `gorm:"type:text;not null"`
	KmDriven     decimal.Decimal `gorm:"type:text;not null"`
	FuelLiters   decimal.Decimal `gorm:"type:text;not null"`
	UsageCost    decimal.Decimal `gorm:"type:text;not null"`
	OperatorCost decimal.Decimal `gorm:"type:text;not null"`
	CreatedAt    time.Time
}

func (AssignmentModel) TableName() string { return "assignments" }

type ExpenseModel struct {
	ID            uint `gorm:"primaryKey"`
	EquipmentID   uint `gorm:"not null;index"`
	SupplierID    *uint
	Date          string          `gorm:"not null"`
	ExpenseType   string          `gorm:"not null"`
	AmountExclTax decimal.Decimal `gorm:"type:text;not null"`
	Description   string          `gorm:"not null;default:''"`
	CreatedAt     time.Time
}

func (ExpenseModel) TableName() string { return "expenses" }

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
