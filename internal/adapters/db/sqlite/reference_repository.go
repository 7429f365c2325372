package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// referenceTable projects one lookup table onto referenceRow.
type referenceTable struct {
	table   string
	keyCol  string
	columns string
}

var referenceTables = map[domain.ReferenceKind]referenceTable{
	domain.KindCategory: {
		table:   "equipment_categories",
		keyCol:  "code",
		columns: "id, code AS ref_key, label, '' AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindSite: {
		table:   "sites",
		keyCol:  "code",
		columns: "id, code AS ref_key, name AS label, '' AS code, NULL AS parent_id, site_type, analytic_center, created_at",
	},
	domain.KindDivision: {
		table:   "divisions",
		keyCol:  "name",
		columns: "id, name AS ref_key, '' AS label, '' AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindService: {
		table:   "services",
		keyCol:  "name",
		columns: "id, name AS ref_key, '' AS label, '' AS code, division_id AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindFunction: {
		table:   "functions",
		keyCol:  "name",
		columns: "id, name AS ref_key, '' AS label, COALESCE(code, '') AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindSupplier: {
		table:   "suppliers",
		keyCol:  "name",
		columns: "id, name AS ref_key, '' AS label, '' AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindClient: {
		table:   "clients",
		keyCol:  "name",
		columns: "id, name AS ref_key, client_type AS label, '' AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
	domain.KindActivity: {
		table:   "activities",
		keyCol:  "code",
		columns: "id, code AS ref_key, label, '' AS code, NULL AS parent_id, '' AS site_type, '' AS analytic_center, created_at",
	},
}

type referenceRow struct {
	ID             uint
	RefKey         string
	Label          string
	Code           string
	ParentID       *uint
	SiteType       string
	AnalyticCenter string
	CreatedAt      time.Time
}

func (row referenceRow) toDomain(kind domain.ReferenceKind) domain.Reference {
	return domain.Reference{
		ID:             row.ID,
		Kind:           kind,
		Key:            row.RefKey,
		Label:          row.Label,
		Code:           row.Code,
		ParentID:       row.ParentID,
		SiteType:       row.SiteType,
		AnalyticCenter: row.AnalyticCenter,
		CreatedAt:      row.CreatedAt,
	}
}

func lookupTable(kind domain.ReferenceKind) (referenceTable, error) {
	t, ok := referenceTables[kind]
	if !ok {
		return referenceTable{}, domain.Malformed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}
	return t, nil
}

func (r *Store) selectReferences(ctx context.Context, t referenceTable) *gorm.DB {
	return r.db.WithContext(ctx).Table(t.table).Select(t.columns)
}

func (r *Store) FindReference(ctx context.Context, lookup domain.Reference) (domain.Reference, error) {
	t, err := lookupTable(lookup.Kind)
	if err != nil {
		return domain.Reference{}, err
	}

	q := r.selectReferences(ctx, t)
	switch {
	case lookup.Kind == domain.KindFunction && lookup.Code != "":
		q = q.Where("code = ?", lookup.Code)
	case lookup.Kind == domain.KindFunction:
		q = q.Where("name = ? AND code IS NULL", lookup.Key)
	default:
		q = q.Where(t.keyCol+" = ?", lookup.Key)
	}

	rows := make([]referenceRow, 0, 1)
	if err := q.Limit(1).Scan(&rows).Error; err != nil {
		return domain.Reference{}, errors.Wrapf(err, "find %s", lookup.Kind)
	}
	if len(rows) == 0 {
		return domain.Reference{}, domain.NotFound(domain.EntityReference, 0)
	}
	return rows[0].toDomain(lookup.Kind), nil
}

func (r *Store) GetReference(ctx context.Context, kind domain.ReferenceKind, id uint) (domain.Reference, error) {
	t, err := lookupTable(kind)
	if err != nil {
		return domain.Reference{}, err
	}
	rows := make([]referenceRow, 0, 1)
	if err := r.selectReferences(ctx, t).Where("id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.Reference{}, errors.Wrapf(err, "get %s", kind)
	}
	if len(rows) == 0 {
		return domain.Reference{}, domain.NotFound(domain.EntityReference, id)
	}
	return rows[0].toDomain(kind), nil
}

func (r *Store) ListReferences(ctx context.Context, kind domain.ReferenceKind, query string, limit int) ([]domain.Reference, error) {
	t, err := lookupTable(kind)
	if err != nil {
		return nil, err
	}
	q := r.selectReferences(ctx, t)
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where(t.keyCol+" LIKE ?", like)
	}
	rows := make([]referenceRow, 0)
	if err := q.Order(t.keyCol + " ASC").Limit(limitOrDefault(limit)).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "list %s", kind)
	}
	result := make([]domain.Reference, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain(kind))
	}
	return result, nil
}

// InsertReference relies on the natural key unique index: the insert is
// ON CONFLICT DO NOTHING, and a row that was not inserted is read back.
func (r *Store) InsertReference(ctx context.Context, value domain.Reference) (domain.Reference, bool, error) {
	row, err := newReferenceModel(value)
	if err != nil {
		return domain.Reference{}, false, err
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row.model)
	switch {
	case res.Error != nil && !isUniqueViolation(res.Error):
		return domain.Reference{}, false, errors.Wrapf(res.Error, "insert %s", value.Kind)
	case res.Error != nil || res.RowsAffected == 0:
		existing, err := r.FindReference(ctx, value)
		if err != nil {
			return domain.Reference{}, false, errors.Wrapf(err, "re-read %s %q after conflict", value.Kind, value.Key)
		}
		return existing, false, nil
	}

	created, err := r.GetReference(ctx, value.Kind, row.id())
	if err != nil {
		return domain.Reference{}, false, err
	}
	return created, true, nil
}

type referenceModel struct {
	model any
	id    func() uint
}

func newReferenceModel(value domain.Reference) (referenceModel, error) {
	switch value.Kind {
	case domain.KindCategory:
		m := &CategoryModel{Code: value.Key, Label: defaultString(value.Label, value.Key)}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindSite:
		siteType := defaultString(strings.ToUpper(value.SiteType), domain.SiteTypeWorksite)
		m := &SiteModel{
			Code:           value.Key,
			Name:           defaultString(value.Label, value.Key),
			SiteType:       siteType,
			AnalyticCenter: defaultString(value.AnalyticCenter, domain.AnalyticCenterForSiteType(siteType)),
			Status:         domain.SiteStatusOngoing,
			Active:         true,
		}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindDivision:
		m := &DivisionModel{Name: value.Key}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindService:
		m := &ServiceModel{Name: value.Key, DivisionID: value.ParentID}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindFunction:
		m := &FunctionModel{Name: value.Key}
		if value.Code != "" {
			code := value.Code
			m.Code = &code
		}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindSupplier:
		m := &SupplierModel{Name: value.Key}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindClient:
		m := &ClientModel{Name: value.Key, ClientType: value.Label, Active: true}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	case domain.KindActivity:
		m := &ActivityModel{Code: value.Key, Label: defaultString(value.Label, value.Key)}
		return referenceModel{model: m, id: func() uint { return m.ID }}, nil
	default:
		return referenceModel{}, domain.Malformed("kind", fmt.Sprintf("unknown reference kind %q", value.Kind))
	}
}
