package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	PermRead  = "erp.read"
	PermWrite = "erp.write"
)

type actorKey struct{}

// WithActor marks ctx with the authenticated user so writes are audited
// against them.
func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func actorFromContext(ctx context.Context) *uint {
	id, ok := ctx.Value(actorKey{}).(uint)
	if !ok || id == 0 {
		return nil
	}
	return &id
}

type ERPService struct {
	store    domain.Store
	validate *validator.Validate
	metrics  *metrics.Recorder
}

func NewERPService(store domain.Store, rec *metrics.Recorder) *ERPService {
	return &ERPService{store: store, validate: newValidator(), metrics: rec}
}

type resolutionTallyKey struct{}

type resolution struct {
	kind    domain.ReferenceKind
	created bool
}

// resolutionTally holds the resolutions of one transaction until it commits.
type resolutionTally struct {
	entries []resolution
}

// inTx runs fn in a store transaction. Reference resolutions made inside
// are counted once the transaction commits and dropped on rollback.
func (s *ERPService) inTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if _, nested := ctx.Value(resolutionTallyKey{}).(*resolutionTally); nested {
		return s.store.InTx(ctx, func(tx domain.Store) error { return fn(ctx, tx) })
	}
	tally := &resolutionTally{}
	txCtx := context.WithValue(ctx, resolutionTallyKey{}, tally)
	if err := s.store.InTx(txCtx, func(tx domain.Store) error { return fn(txCtx, tx) }); err != nil {
		return err
	}
	for _, r := range tally.entries {
		s.metrics.Resolution(string(r.kind), r.created)
	}
	return nil
}

func (s *ERPService) countResolution(ctx context.Context, kind domain.ReferenceKind, created bool) {
	if tally, ok := ctx.Value(resolutionTallyKey{}).(*resolutionTally); ok {
		tally.entries = append(tally.entries, resolution{kind: kind, created: created})
		return
	}
	s.metrics.Resolution(string(kind), created)
}

// BootstrapAdmin creates the first administrator and the built-in roles
// when the user table is empty.
func (s *ERPService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return errors.New("bootstrap admin email and password are required")
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		u, err := tx.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
		if err != nil {
			return err
		}

		roles := []struct {
			key, name   string
			permissions []string
		}{
			{"admin", "Administrator", []string{"*"}},
			{"planner", "Planner", []string{PermRead, PermWrite}},
			{"viewer", "Viewer", []string{PermRead}},
		}
		var adminRoleID uint
		for _, role := range roles {
			roleID, err := tx.CreateRoleIfMissing(ctx, role.key, role.name)
			if err != nil {
				return err
			}
			if role.key == "admin" {
				adminRoleID = roleID
			}
			for _, key := range role.permissions {
				permID, err := tx.CreatePermissionIfMissing(ctx, key)
				if err != nil {
					return err
				}
				if err := tx.GrantPermissionToRole(ctx, roleID, permID); err != nil {
					return err
				}
			}
		}
		if err := tx.AssignRoleToUser(ctx, u.ID, adminRoleID); err != nil {
			return err
		}

		logging.FromContext(ctx).WithField("email", u.Email).Info("bootstrap admin created")
		return tx.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: &u.ID, Metadata: "initial admin created"})
	})
}

func (s *ERPService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	_, err = s.store.CreateSession(ctx, domain.AuthSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteAudit(ctx, &u.ID, "auth.login.session", "user", &u.ID, "session login")
	return u, plain, nil
}

func (s *ERPService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.store.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteAudit(ctx, &u.ID, "auth.login.api_token", "user", &u.ID, "api token issued")
	return u, plain, nil
}

func (s *ERPService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.store.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.store.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "session expired")
	}

	return s.identityByUserID(ctx, session.UserID)
}

func (s *ERPService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	apit, err := s.store.GetAPITokenByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, errors.Wrap(domain.ErrUnauthorized, "token expired")
	}

	return s.identityByUserID(ctx, apit.UserID)
}

func (s *ERPService) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.store.DeleteSessionByTokenHash(ctx, hashToken(token))
}

func (s *ERPService) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions["*"]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

// WriteAudit records a write. Failures are logged and never fail the caller.
func (s *ERPService) WriteAudit(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata string) {
	err := s.store.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("action", action).Warn("audit write failed")
	}
}

func (s *ERPService) CreateUser(ctx context.Context, email, password string, roleID uint) (domain.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, domain.Malformed("email", "email and password are required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	var u domain.User
	err = s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		created, err := tx.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
		if err != nil {
			return err
		}
		if roleID != 0 {
			if err := tx.AssignRoleToUser(ctx, created.ID, roleID); err != nil {
				return err
			}
		}
		u = created
		return nil
	})
	return u, err
}

func (s *ERPService) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	return s.store.ListUsers(ctx, query, clampLimit(limit))
}

func (s *ERPService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *ERPService) AssignRole(ctx context.Context, userID, roleID uint) error {
	if userID == 0 || roleID == 0 {
		return domain.Malformed("user_id", "user_id and role_id are required")
	}
	return s.store.AssignRoleToUser(ctx, userID, roleID)
}

func (s *ERPService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return s.store.ListAuditLogs(ctx, clampLimit(limit))
}

func (s *ERPService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, errors.Wrap(domain.ErrUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, errors.Wrap(domain.ErrUnauthorized, "invalid credentials")
	}
	return u, nil
}

func (s *ERPService) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	permList, err := s.store.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
