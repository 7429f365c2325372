package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ERPService, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "siteops_test.db"), nil)
	require.NoError(t, err, "open db")
	require.NoError(t, sqlite.RunMigrations(ctx, db), "run migrations")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := sqlite.NewStore(db)
	return NewERPService(store, metrics.NewRecorder(prometheus.NewRegistry())), store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBootstrapAdminThenLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.BootstrapAdmin(ctx, "Admin@Example.com", "secret"))
	// a second call is a no-op once users exist
	require.NoError(t, svc.BootstrapAdmin(ctx, "other@example.com", "secret"))

	users, err := svc.ListUsers(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@example.com", users[0].Email)

	_, token, err := svc.LoginWithSession(ctx, "admin@example.com", "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := svc.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	assert.True(t, svc.Can(identity, PermWrite))

	require.NoError(t, svc.LogoutSession(ctx, token))
	_, err = svc.AuthenticateSession(ctx, token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.BootstrapAdmin(ctx, "admin@example.com", "secret"))

	_, _, err := svc.LoginWithSession(ctx, "admin@example.com", "nope", time.Hour)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestViewerCannotWrite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.BootstrapAdmin(ctx, "admin@example.com", "secret"))

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	var viewerID uint
	for _, r := range roles {
		if r.Key == "viewer" {
			viewerID = r.ID
		}
	}
	require.NotZero(t, viewerID)

	_, err = svc.CreateUser(ctx, "viewer@example.com", "pw", viewerID)
	require.NoError(t, err)

	_, token, err := svc.LoginWithAPIToken(ctx, "viewer@example.com", "pw", "ci", nil)
	require.NoError(t, err)
	identity, err := svc.AuthenticateBearerToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, svc.Can(identity, PermRead))
	assert.False(t, svc.Can(identity, PermWrite))
}

func TestWritesAreAuditedAgainstActor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.BootstrapAdmin(ctx, "admin@example.com", "secret"))
	admin, _, err := svc.LoginWithSession(ctx, "admin@example.com", "secret", time.Hour)
	require.NoError(t, err)

	_, err = svc.CreateSite(WithActor(ctx, admin.ID), SiteInput{Code: "CH-9", Name: "Audit"})
	require.NoError(t, err)

	logs, err := svc.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "site.create", logs[0].Action)
	require.NotNil(t, logs[0].ActorUserID)
	assert.Equal(t, admin.ID, *logs[0].ActorUserID)
}

func TestResolutionsCountedOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	reg := prometheus.NewRegistry()
	svc.metrics = metrics.NewRecorder(reg)
	boom := errors.New("boom")

	err := svc.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := svc.resolve(ctx, tx, domain.KindClient, "Ghost", domain.ReferenceAttrs{}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = store.FindReference(ctx, domain.Reference{Kind: domain.KindClient, Key: "Ghost"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	count, err := testutil.GatherAndCount(reg, "siteops_reference_resolutions_total")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = svc.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		_, err := svc.resolve(ctx, tx, domain.KindClient, "Acme", domain.ReferenceAttrs{})
		return err
	})
	require.NoError(t, err)

	count, err = testutil.GatherAndCount(reg, "siteops_reference_resolutions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
