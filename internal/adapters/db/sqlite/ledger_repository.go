package sqlite

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
)

func assignmentFromModel(m AssignmentModel) domain.Assignment {
	return domain.Assignment{
		ID:           m.ID,
		Date:         parseDate(m.Date),
		EquipmentID:  m.EquipmentID,
		SiteID:       m.SiteID,
		HalfDaySlot:  m.HalfDaySlot,
		OperatorID:   m.OperatorID,
		ActivityID:   m.ActivityID,
		ReasonCode:   m.ReasonCode,
		HoursWorked:  m.HoursWorked,
		KmDriven:     m.KmDriven,
		FuelLiters:   m.FuelLiters,
		UsageCost:    m.UsageCost,
		OperatorCost: m.OperatorCost,
		CreatedAt:    m.CreatedAt,
	}
}

func (r *Store) FindAssignmentBySlot(ctx context.Context, date time.Time, equipmentID uint, slot int) (domain.Assignment, error) {
	var m AssignmentModel
	err := r.db.WithContext(ctx).
		Where("date = ? AND equipment_id = ? AND half_day_slot = ?", formatDate(date), equipmentID, slot).
		First(&m).Error
	if err != nil {
		return domain.Assignment{}, notFound(err, domain.EntityAssignment, 0)
	}
	return assignmentFromModel(m), nil
}

func (r *Store) InsertAssignment(ctx context.Context, value domain.Assignment) (domain.Assignment, error) {
	m := AssignmentModel{
		Date:         formatDate(value.Date),
		EquipmentID:  value.EquipmentID,
		SiteID:       value.SiteID,
		HalfDaySlot:  value.HalfDaySlot,
		OperatorID:   value.OperatorID,
		ActivityID:   value.ActivityID,
		ReasonCode:   value.ReasonCode,
		HoursWorked:  value.HoursWorked,
		KmDriven:     value.KmDriven,
		FuelLiters:   value.FuelLiters,
		UsageCost:    value.UsageCost,
		OperatorCost: value.OperatorCost,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Assignment{}, domain.ErrDuplicateSlot
		}
		return domain.Assignment{}, errors.Wrap(err, "insert assignment")
	}
	return assignmentFromModel(m), nil
}

func (r *Store) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	q := r.db.WithContext(ctx).Model(&AssignmentModel{})
	if filter.From != nil {
		q = q.Where("date >= ?", formatDate(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("date <= ?", formatDate(*filter.To))
	}
	if filter.SiteID != nil {
		q = q.Where("site_id = ?", *filter.SiteID)
	}
	if filter.EquipmentID != nil {
		q = q.Where("equipment_id = ?", *filter.EquipmentID)
	}

	rows := make([]AssignmentModel, 0)
	if err := q.Order("date DESC, equipment_id ASC, half_day_slot ASC").Limit(limitOrDefault(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	result := make([]domain.Assignment, 0, len(rows))
	for _, m := range rows {
		result = append(result, assignmentFromModel(m))
	}
	return result, nil
}

type expenseRow struct {
	ExpenseModel
	EquipmentCode         string
	EquipmentRegistration string
	SupplierName          string
}

func (row expenseRow) toDomain() domain.Expense {
	return domain.Expense{
		ID:                    row.ID,
		EquipmentID:           row.EquipmentID,
		EquipmentCode:         row.EquipmentCode,
		EquipmentRegistration: row.EquipmentRegistration,
		SupplierID:            row.SupplierID,
		SupplierName:          row.SupplierName,
		Date:                  parseDate(row.Date),
		ExpenseType:           row.ExpenseType,
		AmountExclTax:         row.AmountExclTax,
		Description:           row.Description,
		CreatedAt:             row.CreatedAt,
	}
}

const expenseSelect = `
SELECT x.*,
       e.code AS equipment_code,
       e.registration AS equipment_registration,
       COALESCE(s.name, '') AS supplier_name
FROM expenses x
JOIN equipment e ON e.id = x.equipment_id
LEFT JOIN suppliers s ON s.id = x.supplier_id
`

func (r *Store) CreateExpense(ctx context.Context, value domain.Expense) (domain.Expense, error) {
	m := ExpenseModel{
		EquipmentID:   value.EquipmentID,
		SupplierID:    value.SupplierID,
		Date:          formatDate(value.Date),
		ExpenseType:   value.ExpenseType,
		AmountExclTax: value.AmountExclTax,
		Description:   value.Description,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Expense{}, errors.Wrap(err, "insert expense")
	}

	rows := make([]expenseRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(expenseSelect+"WHERE x.id = ?", m.ID).Scan(&rows).Error; err != nil {
		return domain.Expense{}, errors.Wrap(err, "read expense")
	}
	if len(rows) == 0 {
		return domain.Expense{}, domain.NotFound(domain.EntityExpense, m.ID)
	}
	return rows[0].toDomain(), nil
}

// ListExpenses returns the newest expenses first.
func (r *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	query := expenseSelect + "WHERE 1 = 1"
	args := make([]any, 0, 4)
	if filter.EquipmentID != nil {
		query += " AND x.equipment_id = ?"
		args = append(args, *filter.EquipmentID)
	}
	if filter.From != nil {
		query += " AND x.date >= ?"
		args = append(args, formatDate(*filter.From))
	}
	if filter.To != nil {
		query += " AND x.date <= ?"
		args = append(args, formatDate(*filter.To))
	}
	query += " ORDER BY x.date DESC, x.id DESC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows := make([]expenseRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list expenses")
	}
	result := make([]domain.Expense, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
