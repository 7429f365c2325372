package sqlite

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"gorm.io/gorm"
)

type siteRow struct {
	SiteModel
	ClientName  string
	ManagerName string
}

const siteSelect = `
SELECT s.*,
       COALESCE(c.name, '') AS client_name,
       COALESCE(p.full_name, '') AS manager_name
FROM sites s
LEFT JOIN clients c ON c.id = s.client_id
LEFT JOIN persons p ON p.id = s.manager_id
`

func (row siteRow) toDomain() domain.Site {
	return domain.Site{
		ID:             row.ID,
		Code:           row.Code,
		Name:           row.Name,
		SiteType:       row.SiteType,
		AnalyticCenter: row.AnalyticCenter,
		ClientID:       row.ClientID,
		ClientName:     row.ClientName,
		Location:       row.Location,
		StartDate:      parseDatePtr(row.StartDate),
		EndDate:        parseDatePtr(row.EndDate),
		ManagerID:      row.ManagerID,
		ManagerName:    row.ManagerName,
		Status:         row.Status,
		Active:         row.Active,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func (r *Store) findSite(ctx context.Context, where string, arg any) (domain.Site, bool, error) {
	rows := make([]siteRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(siteSelect+"WHERE "+where+" LIMIT 1", arg).Scan(&rows).Error; err != nil {
		return domain.Site{}, false, errors.Wrap(err, "select site")
	}
	if len(rows) == 0 {
		return domain.Site{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (r *Store) GetSite(ctx context.Context, id uint) (domain.Site, error) {
	site, ok, err := r.findSite(ctx, "s.id = ?", id)
	if err != nil {
		return domain.Site{}, err
	}
	if !ok {
		return domain.Site{}, domain.NotFound(domain.EntitySite, id)
	}
	return site, nil
}

func (r *Store) GetSiteByCode(ctx context.Context, code string) (domain.Site, error) {
	site, ok, err := r.findSite(ctx, "s.code = ?", code)
	if err != nil {
		return domain.Site{}, err
	}
	if !ok {
		return domain.Site{}, domain.NotFound(domain.EntitySite, 0)
	}
	return site, nil
}

func (r *Store) ListSites(ctx context.Context, filter domain.SiteFilter) ([]domain.Site, error) {
	query := siteSelect + "WHERE 1 = 1"
	args := make([]any, 0, 4)
	if filter.SiteType != "" {
		query += " AND s.site_type = ?"
		args = append(args, filter.SiteType)
	}
	if filter.Status != "" {
		query += " AND s.status = ?"
		args = append(args, filter.Status)
	}
	if filter.Active != nil {
		query += " AND s.active = ?"
		args = append(args, *filter.Active)
	}
	query += " ORDER BY s.code ASC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows := make([]siteRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list sites")
	}
	result := make([]domain.Site, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func siteModel(value domain.Site) SiteModel {
	return SiteModel{
		ID:             value.ID,
		Code:           value.Code,
		Name:           value.Name,
		SiteType:       value.SiteType,
		AnalyticCenter: value.AnalyticCenter,
		ClientID:       value.ClientID,
		Location:       value.Location,
		StartDate:      formatDatePtr(value.StartDate),
		EndDate:        formatDatePtr(value.EndDate),
		ManagerID:      value.ManagerID,
		Status:         value.Status,
		Active:         value.Active,
	}
}

func (r *Store) CreateSite(ctx context.Context, value domain.Site) (domain.Site, error) {
	m := siteModel(value)
	m.ID = 0
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Site{}, errors.Wrapf(domain.ErrConflict, "site code %q", value.Code)
		}
		return domain.Site{}, errors.Wrap(err, "create site")
	}
	return r.GetSite(ctx, m.ID)
}

func (r *Store) UpdateSite(ctx context.Context, value domain.Site) (domain.Site, error) {
	m := siteModel(value)
	res := r.db.WithContext(ctx).Model(&SiteModel{ID: value.ID}).Updates(map[string]any{
		"name":            m.Name,
		"site_type":       m.SiteType,
		"analytic_center": m.AnalyticCenter,
		"client_id":       m.ClientID,
		"location":        m.Location,
		"start_date":      m.StartDate,
		"end_date":        m.EndDate,
		"manager_id":      m.ManagerID,
		"status":          m.Status,
		"active":          m.Active,
		"updated_at":      time.Now(),
	})
	if err := rowsOrNotFound(res, domain.EntitySite, value.ID); err != nil {
		return domain.Site{}, err
	}
	return r.GetSite(ctx, value.ID)
}

func (r *Store) SetSiteActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&SiteModel{ID: id}).Updates(map[string]any{"active": active, "updated_at": time.Now()})
	return rowsOrNotFound(res, domain.EntitySite, id)
}

// rowsOrNotFound reports an update that matched nothing as NotFound.
func rowsOrNotFound(res *gorm.DB, kind domain.EntityKind, id uint) error {
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update %s %d", kind, id)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}

type equipmentRow struct {
	EquipmentModel
	CategoryLabel string
}

const equipmentSelect = `
SELECT e.*,
       COALESCE(c.label, '') AS category_label
FROM equipment e
LEFT JOIN equipment_categories c ON c.id = e.category_id
`

func (row equipmentRow) toDomain() domain.Equipment {
	return domain.Equipment{
		ID:                row.ID,
		Code:              row.Code,
		Registration:      row.Registration,
		CategoryID:        row.CategoryID,
		CategoryLabel:     row.CategoryLabel,
		MeterUnit:         row.MeterUnit,
		UsageSource:       row.UsageSource,
		FuelPerHour:       row.FuelPerHour,
		HourlyUsageCost:   row.HourlyUsageCost,
		Per100kmUsageCost: row.Per100kmUsageCost,
		HomeSiteID:        row.HomeSiteID,
		Active:            row.Active,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func (r *Store) findEquipment(ctx context.Context, where string, arg any) (domain.Equipment, bool, error) {
	rows := make([]equipmentRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(equipmentSelect+"WHERE "+where+" ORDER BY e.id ASC LIMIT 1", arg).Scan(&rows).Error; err != nil {
		return domain.Equipment{}, false, errors.Wrap(err, "select equipment")
	}
	if len(rows) == 0 {
		return domain.Equipment{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (r *Store) GetEquipment(ctx context.Context, id uint) (domain.Equipment, error) {
	eq, ok, err := r.findEquipment(ctx, "e.id = ?", id)
	if err != nil {
		return domain.Equipment{}, err
	}
	if !ok {
		return domain.Equipment{}, domain.NotFound(domain.EntityEquipment, id)
	}
	return eq, nil
}

func (r *Store) GetEquipmentByCode(ctx context.Context, code string) (domain.Equipment, error) {
	eq, ok, err := r.findEquipment(ctx, "e.code = ?", code)
	if err != nil {
		return domain.Equipment{}, err
	}
	if !ok {
		return domain.Equipment{}, domain.NotFound(domain.EntityEquipment, 0)
	}
	return eq, nil
}

// GetEquipmentByRegistration returns the oldest unit carrying the plate.
func (r *Store) GetEquipmentByRegistration(ctx context.Context, registration string) (domain.Equipment, error) {
	eq, ok, err := r.findEquipment(ctx, "e.registration = ?", registration)
	if err != nil {
		return domain.Equipment{}, err
	}
	if !ok {
		return domain.Equipment{}, domain.NotFound(domain.EntityEquipment, 0)
	}
	return eq, nil
}

func (r *Store) ListEquipment(ctx context.Context, filter domain.EquipmentFilter) ([]domain.Equipment, error) {
	query := equipmentSelect + "WHERE 1 = 1"
	args := make([]any, 0, 3)
	if filter.CategoryCode != "" {
		query += " AND c.code = ?"
		args = append(args, filter.CategoryCode)
	}
	if filter.Active != nil {
		query += " AND e.active = ?"
		args = append(args, *filter.Active)
	}
	query += " ORDER BY e.code ASC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows := make([]equipmentRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list equipment")
	}
	result := make([]domain.Equipment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r *Store) CreateEquipment(ctx context.Context, value domain.Equipment) (domain.Equipment, error) {
	m := EquipmentModel{
		Code:              value.Code,
		Registration:      value.Registration,
		CategoryID:        value.CategoryID,
		MeterUnit:         value.MeterUnit,
		UsageSource:       value.UsageSource,
		FuelPerHour:       value.FuelPerHour,
		HourlyUsageCost:   value.HourlyUsageCost,
		Per100kmUsageCost: value.Per100kmUsageCost,
		HomeSiteID:        value.HomeSiteID,
		Active:            value.Active,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Equipment{}, errors.Wrapf(domain.ErrConflict, "equipment code %q", value.Code)
		}
		return domain.Equipment{}, errors.Wrap(err, "create equipment")
	}
	return r.GetEquipment(ctx, m.ID)
}

func (r *Store) UpdateEquipment(ctx context.Context, value domain.Equipment) (domain.Equipment, error) {
	res := r.db.WithContext(ctx).Model(&EquipmentModel{ID: value.ID}).Updates(map[string]any{
		"registration":        value.Registration,
		"category_id":         value.CategoryID,
		"meter_unit":          value.MeterUnit,
		"usage_source":        value.UsageSource,
		"fuel_per_hour":       value.FuelPerHour,
		"hourly_usage_cost":   value.HourlyUsageCost,
		"per100km_usage_cost": value.Per100kmUsageCost,
		"home_site_id":        value.HomeSiteID,
		"active":              value.Active,
		"updated_at":          time.Now(),
	})
	if err := rowsOrNotFound(res, domain.EntityEquipment, value.ID); err != nil {
		return domain.Equipment{}, err
	}
	return r.GetEquipment(ctx, value.ID)
}

func (r *Store) SetEquipmentActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&EquipmentModel{ID: id}).Updates(map[string]any{"active": active, "updated_at": time.Now()})
	return rowsOrNotFound(res, domain.EntityEquipment, id)
}

type personRow struct {
	PersonModel
	DivisionName string
	ServiceName  string
	FunctionName string
	FunctionCode string
}

const personSelect = `
SELECT p.*,
       COALESCE(d.name, '') AS division_name,
       COALESCE(sv.name, '') AS service_name,
       COALESCE(f.name, '') AS function_name,
       COALESCE(f.code, '') AS function_code
FROM persons p
LEFT JOIN divisions d ON d.id = p.division_id
LEFT JOIN services sv ON sv.id = p.service_id
LEFT JOIN functions f ON f.id = p.function_id
`

func (row personRow) toDomain() domain.Person {
	return domain.Person{
		ID:               row.ID,
		Matricule:        row.Matricule,
		FullName:         row.FullName,
		Sector:           row.Sector,
		DivisionID:       row.DivisionID,
		DivisionName:     row.DivisionName,
		ServiceID:        row.ServiceID,
		ServiceName:      row.ServiceName,
		FunctionID:       row.FunctionID,
		FunctionName:     row.FunctionName,
		FunctionCode:     row.FunctionCode,
		BaseSalary:       row.BaseSalary,
		SalarySupplement: row.SalarySupplement,
		HourlyCostRate:   row.HourlyCostRate,
		Active:           row.Active,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func (r *Store) findPerson(ctx context.Context, where string, arg any) (domain.Person, bool, error) {
	rows := make([]personRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(personSelect+"WHERE "+where+" ORDER BY p.id ASC LIMIT 1", arg).Scan(&rows).Error; err != nil {
		return domain.Person{}, false, errors.Wrap(err, "select person")
	}
	if len(rows) == 0 {
		return domain.Person{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (r *Store) GetPerson(ctx context.Context, id uint) (domain.Person, error) {
	p, ok, err := r.findPerson(ctx, "p.id = ?", id)
	if err != nil {
		return domain.Person{}, err
	}
	if !ok {
		return domain.Person{}, domain.NotFound(domain.EntityPerson, id)
	}
	return p, nil
}

func (r *Store) GetPersonByMatricule(ctx context.Context, matricule string) (domain.Person, error) {
	p, ok, err := r.findPerson(ctx, "p.matricule = ?", matricule)
	if err != nil {
		return domain.Person{}, err
	}
	if !ok {
		return domain.Person{}, domain.NotFound(domain.EntityPerson, 0)
	}
	return p, nil
}

// FindPersonByNameLike matches a name fragment, case-insensitively for ASCII.
func (r *Store) FindPersonByNameLike(ctx context.Context, name string) (domain.Person, error) {
	p, ok, err := r.findPerson(ctx, "p.full_name LIKE ?", "%"+name+"%")
	if err != nil {
		return domain.Person{}, err
	}
	if !ok {
		return domain.Person{}, domain.NotFound(domain.EntityPerson, 0)
	}
	return p, nil
}

func (r *Store) ListPersons(ctx context.Context, filter domain.PersonFilter) ([]domain.Person, error) {
	query := personSelect + "WHERE 1 = 1"
	args := make([]any, 0, 3)
	if filter.DivisionName != "" {
		query += " AND d.name = ?"
		args = append(args, filter.DivisionName)
	}
	if filter.Active != nil {
		query += " AND p.active = ?"
		args = append(args, *filter.Active)
	}
	query += " ORDER BY p.full_name ASC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows := make([]personRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list persons")
	}
	result := make([]domain.Person, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r *Store) CreatePerson(ctx context.Context, value domain.Person) (domain.Person, error) {
	m := PersonModel{
		Matricule:        value.Matricule,
		FullName:         value.FullName,
		Sector:           value.Sector,
		DivisionID:       value.DivisionID,
		ServiceID:        value.ServiceID,
		FunctionID:       value.FunctionID,
		BaseSalary:       value.BaseSalary,
		SalarySupplement: value.SalarySupplement,
		HourlyCostRate:   value.HourlyCostRate,
		Active:           value.Active,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Person{}, errors.Wrapf(domain.ErrConflict, "matricule %q", value.Matricule)
		}
		return domain.Person{}, errors.Wrap(err, "create person")
	}
	return r.GetPerson(ctx, m.ID)
}

func (r *Store) UpdatePerson(ctx context.Context, value domain.Person) (domain.Person, error) {
	res := r.db.WithContext(ctx).Model(&PersonModel{ID: value.ID}).Updates(map[string]any{
		"full_name":         value.FullName,
		"sector":            value.Sector,
		"division_id":       value.DivisionID,
		"service_id":        value.ServiceID,
		"function_id":       value.FunctionID,
		"base_salary":       value.BaseSalary,
		"salary_supplement": value.SalarySupplement,
		"hourly_cost_rate":  value.HourlyCostRate,
		"active":            value.Active,
		"updated_at":        time.Now(),
	})
	if err := rowsOrNotFound(res, domain.EntityPerson, value.ID); err != nil {
		return domain.Person{}, err
	}
	return r.GetPerson(ctx, value.ID)
}

func (r *Store) SetPersonActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&PersonModel{ID: id}).Updates(map[string]any{"active": active, "updated_at": time.Now()})
	return rowsOrNotFound(res, domain.EntityPerson, id)
}
