package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// ResolveOrCreate returns the reference of kind whose natural key is key,
// creating it from attrs when it does not exist. attrs are ignored on a hit.
// Lookup is exact and case-sensitive.
//
// For functions a non-empty attrs.Code is the identity and key is only the
// name stored on creation. Without a code, key matches functions that have
// no code.
func (s *ERPService) ResolveOrCreate(ctx context.Context, kind domain.ReferenceKind, key string, attrs domain.ReferenceAttrs) (domain.Reference, error) {
	return s.resolve(ctx, s.store, kind, key, attrs)
}

func (s *ERPService) resolve(ctx context.Context, repo domain.ReferenceRepository, kind domain.ReferenceKind, key string, attrs domain.ReferenceAttrs) (domain.Reference, error) {
	if !kind.Valid() {
		return domain.Reference{}, domain.Malformed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}
	if kind == domain.KindFunction && strings.TrimSpace(key) == "" {
		key = attrs.Code
	}
	if strings.TrimSpace(key) == "" {
		return domain.Reference{}, domain.Malformed("key", "natural key is required")
	}

	lookup := domain.Reference{Kind: kind, Key: key}
	if kind == domain.KindFunction {
		lookup.Code = attrs.Code
	}

	found, err := repo.FindReference(ctx, lookup)
	if err == nil {
		s.countResolution(ctx, kind, false)
		return found, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Reference{}, errors.Wrapf(err, "resolve %s %q", kind, key)
	}

	value := lookup
	value.Label = attrs.Label
	value.ParentID = attrs.ParentID
	value.SiteType = attrs.SiteType
	value.AnalyticCenter = attrs.AnalyticCenter

	ref, created, err := repo.InsertReference(ctx, value)
	if err != nil {
		return domain.Reference{}, errors.Wrapf(err, "create %s %q", kind, key)
	}
	s.countResolution(ctx, kind, created)
	if created {
		logging.FromContext(ctx).WithFields(logrus.Fields{
			"kind": kind,
			"key":  key,
			"id":   ref.ID,
		}).Debug("reference created")
	}
	return ref, nil
}

func (s *ERPService) GetReference(ctx context.Context, kind domain.ReferenceKind, id uint) (domain.Reference, error) {
	if !kind.Valid() {
		return domain.Reference{}, domain.Malformed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}
	return s.store.GetReference(ctx, kind, id)
}

func (s *ERPService) ListReferences(ctx context.Context, kind domain.ReferenceKind, query string, limit int) ([]domain.Reference, error) {
	if !kind.Valid() {
		return nil, domain.Malformed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}
	return s.store.ListReferences(ctx, kind, query, clampLimit(limit))
}

// resolveOptional resolves key when it is set and returns nil otherwise.
func (s *ERPService) resolveOptional(ctx context.Context, repo domain.ReferenceRepository, kind domain.ReferenceKind, key string, attrs domain.ReferenceAttrs) (*uint, error) {
	if strings.TrimSpace(key) == "" && (kind != domain.KindFunction || attrs.Code == "") {
		return nil, nil
	}
	ref, err := s.resolve(ctx, repo, kind, key, attrs)
	if err != nil {
		return nil, err
	}
	return &ref.ID, nil
}
