package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Store implements domain.Store on one gorm handle, which is either the
// pool or a transaction opened by InTx.
type Store struct {
	db *gorm.DB
}

var _ domain.Store = (*Store)(nil)

// Open connects to the database file at path. WAL mode, a busy timeout and
// foreign keys are enabled unless path already carries its own query. The
// pool is capped at one connection so writers queue instead of failing
// with SQLITE_BUSY.
func Open(path string, log logrus.FieldLogger) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Discard}
	if log != nil {
		cfg.Logger = logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn(path),
	}, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sql handle")
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (r *Store) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound converts gorm's miss into the domain error for kind.
func notFound(err error, kind domain.EntityKind, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(kind, id)
	}
	return err
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}

	return input
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDatePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseDate(*s)
	return &t
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 200
	}
	return limit
}

func (r *Store) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{Email: strings.ToLower(strings.TrimSpace(value.Email)), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, errors.Wrapf(domain.ErrConflict, "user %s", m.Email)
		}
		return domain.User{}, err
	}
	return userFromModel(m), nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (r *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, notFound(err, domain.EntityUser, 0)
	}
	return userFromModel(m), nil
}

func (r *Store) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, notFound(err, domain.EntityUser, id)
	}
	return userFromModel(m), nil
}

func (r *Store) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("email LIKE ?", like)
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Limit(limitOrDefault(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, userFromModel(m))
	}
	return result, nil
}

func (r *Store) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *Store) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Store) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Store) CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error) {
	m := RoleModel{Key: key, Name: name}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows := make([]RoleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Role, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *Store) CreatePermissionIfMissing(ctx context.Context, key string) (uint, error) {
	m := PermissionModel{Key: key}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *Store) GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	m := RolePermissionModel{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permissionID).FirstOrCreate(&m).Error
}

func (r *Store) AssignRoleToUser(ctx context.Context, userID, roleID uint) error {
	m := UserRoleModel{UserID: userID, RoleID: roleID}
	return r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&m).Error
}

func (r *Store) GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error) {
	type row struct{ Key string }
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT p.key
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = ?
`, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.Key)
	}
	return result, nil
}

func (r *Store) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	rows := make([]domain.AuditRecord, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limitOrDefault(limit)).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
