package domain

import (
	"context"
	"time"
)

type ReferenceRepository interface {
	// FindReference looks up by the natural key of lookup.Kind. For functions a
	// non-empty lookup.Code is the identity, otherwise lookup.Key among
	// functions without a code. Returns a NotFoundError on a miss.
	FindReference(ctx context.Context, lookup Reference) (Reference, error)
	// InsertReference inserts unless the natural key already exists. created
	// is false when a concurrent writer got there first.
	InsertReference(ctx context.Context, value Reference) (ref Reference, created bool, err error)
	GetReference(ctx context.Context, kind ReferenceKind, id uint) (Reference, error)
	ListReferences(ctx context.Context, kind ReferenceKind, query string, limit int) ([]Reference, error)
}

type CatalogRepository interface {
	GetSite(ctx context.Context, id uint) (Site, error)
	GetSiteByCode(ctx context.Context, code string) (Site, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]Site, error)
	CreateSite(ctx context.Context, value Site) (Site, error)
	UpdateSite(ctx context.Context, value Site) (Site, error)
	SetSiteActive(ctx context.Context, id uint, active bool) error

	GetEquipment(ctx context.Context, id uint) (Equipment, error)
	GetEquipmentByCode(ctx context.Context, code string) (Equipment, error)
	GetEquipmentByRegistration(ctx context.Context, registration string) (Equipment, error)
	ListEquipment(ctx context.Context, filter EquipmentFilter) ([]Equipment, error)
	CreateEquipment(ctx context.Context, value Equipment) (Equipment, error)
	UpdateEquipment(ctx context.Context, value Equipment) (Equipment, error)
	SetEquipmentActive(ctx context.Context, id uint, active bool) error

	GetPerson(ctx context.Context, id uint) (Person, error)
	GetPersonByMatricule(ctx context.Context, matricule string) (Person, error)
	FindPersonByNameLike(ctx context.Context, name string) (Person, error)
	ListPersons(ctx context.Context, filter PersonFilter) ([]Person, error)
	CreatePerson(ctx context.Context, value Person) (Person, error)
	UpdatePerson(ctx context.Context, value Person) (Person, error)
	SetPersonActive(ctx context.Context, id uint, active bool) error
}

type LedgerRepository interface {
	FindAssignmentBySlot(ctx context.Context, date time.Time, equipmentID uint, slot int) (Assignment, error)
	// InsertAssignment returns ErrDuplicateSlot when the slot unique index
	// rejects the row.
	InsertAssignment(ctx context.Context, value Assignment) (Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)

	CreateExpense(ctx context.Context, value Expense) (Expense, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error)
}

type AccessRepository interface {
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)
	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}

type Store interface {
	ReferenceRepository
	CatalogRepository
	LedgerRepository
	AccessRepository

	// InTx runs fn against a store bound to one transaction. fn's error rolls
	// the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
