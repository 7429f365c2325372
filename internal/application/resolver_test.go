package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.ResolveOrCreate(ctx, domain.KindClient, "Acme", domain.ReferenceAttrs{Label: "PRIVE"})
	require.NoError(t, err)
	second, err := svc.ResolveOrCreate(ctx, domain.KindClient, "Acme", domain.ReferenceAttrs{Label: "PUBLIC"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	refs, err := svc.ListReferences(ctx, domain.KindClient, "", 0)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestResolveOrCreateIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.ResolveOrCreate(ctx, domain.KindSupplier, "Acme", domain.ReferenceAttrs{})
	require.NoError(t, err)
	b, err := svc.ResolveOrCreate(ctx, domain.KindSupplier, "ACME", domain.ReferenceAttrs{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolveOrCreateConvergesUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	const workers = 10
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := svc.ResolveOrCreate(ctx, domain.KindDivision, "Terrassement", domain.ReferenceAttrs{})
			ids[i], errs[i] = ref.ID, err
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	refs, err := svc.ListReferences(ctx, domain.KindDivision, "Terrassement", 0)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestResolveOrCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.ResolveOrCreate(ctx, domain.ReferenceKind("vehicle"), "x", domain.ReferenceAttrs{})
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = svc.ResolveOrCreate(ctx, domain.KindClient, "  ", domain.ReferenceAttrs{})
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestResolveFunctionByCodeOrName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	coded, err := svc.ResolveOrCreate(ctx, domain.KindFunction, "Operator", domain.ReferenceAttrs{Code: "F-10"})
	require.NoError(t, err)
	renamed, err := svc.ResolveOrCreate(ctx, domain.KindFunction, "Machine operator", domain.ReferenceAttrs{Code: "F-10"})
	require.NoError(t, err)
	assert.Equal(t, coded.ID, renamed.ID)

	// without a code the name only matches uncoded functions
	uncoded, err := svc.ResolveOrCreate(ctx, domain.KindFunction, "Operator", domain.ReferenceAttrs{})
	require.NoError(t, err)
	assert.NotEqual(t, coded.ID, uncoded.ID)

	again, err := svc.ResolveOrCreate(ctx, domain.KindFunction, "Operator", domain.ReferenceAttrs{})
	require.NoError(t, err)
	assert.Equal(t, uncoded.ID, again.ID)
}

func TestResolveServiceKeepsParentDivision(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	division, err := svc.ResolveOrCreate(ctx, domain.KindDivision, "Production", domain.ReferenceAttrs{})
	require.NoError(t, err)
	service, err := svc.ResolveOrCreate(ctx, domain.KindService, "Atelier", domain.ReferenceAttrs{ParentID: &division.ID})
	require.NoError(t, err)
	require.NotNil(t, service.ParentID)
	assert.Equal(t, division.ID, *service.ParentID)
}
