package application

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateAssignment books one equipment half-day slot and derives its costs:
//
//	operator_cost = hours * operator hourly rate (0 without operator)
//	usage_cost    = hours * hourly cost + km * per-100km cost / 100
//
// The slot check, the lookups and the insert share one transaction, so a
// failure writes nothing. A slot taken concurrently is reported as
// ErrDuplicateSlot.
func (s *ERPService) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (domain.Assignment, error) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"date":         in.Date,
		"equipment_id": in.EquipmentID,
		"slot":         in.HalfDaySlot,
	})

	out, err := s.createAssignment(ctx, in)
	if err != nil {
		s.metrics.Assignment(metrics.OutcomeRejected)
		log.WithError(err).Info("assignment rejected")
		return domain.Assignment{}, err
	}

	s.metrics.Assignment(metrics.OutcomeCreated)
	log.WithFields(logrus.Fields{
		"assignment_id": out.ID,
		"usage_cost":    out.UsageCost.StringFixed(domain.MoneyPlaces),
		"operator_cost": out.OperatorCost.StringFixed(domain.MoneyPlaces),
	}).Info("assignment created")
	return out, nil
}

func (s *ERPService) createAssignment(ctx context.Context, in CreateAssignmentInput) (domain.Assignment, error) {
	if err := s.check(in); err != nil {
		return domain.Assignment{}, err
	}
	date, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return domain.Assignment{}, domain.Malformed("date", "must be a date formatted YYYY-MM-DD")
	}

	var out domain.Assignment
	err = s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		_, err := tx.FindAssignmentBySlot(ctx, date, in.EquipmentID, in.HalfDaySlot)
		switch {
		case err == nil:
			return domain.ErrDuplicateSlot
		case !errors.Is(err, domain.ErrNotFound):
			return errors.Wrap(err, "check slot")
		}

		equipment, err := tx.GetEquipment(ctx, in.EquipmentID)
		if err != nil {
			return err
		}
		if _, err := tx.GetSite(ctx, in.SiteID); err != nil {
			return err
		}

		rate := decimal.Zero
		if in.OperatorID != nil {
			operator, err := tx.GetPerson(ctx, *in.OperatorID)
			if domain.IsNotFoundOf(err, domain.EntityPerson) {
				return domain.NotFound(domain.EntityOperator, *in.OperatorID)
			}
			if err != nil {
				return err
			}
			rate = operator.HourlyCostRate
		}
		if in.ActivityID != nil {
			if _, err := tx.GetReference(ctx, domain.KindActivity, *in.ActivityID); err != nil {
				return err
			}
		}

		out, err = tx.InsertAssignment(ctx, domain.Assignment{
			Date:         date,
			EquipmentID:  equipment.ID,
			SiteID:       in.SiteID,
			HalfDaySlot:  in.HalfDaySlot,
			OperatorID:   in.OperatorID,
			ActivityID:   in.ActivityID,
			ReasonCode:   in.ReasonCode,
			HoursWorked:  in.HoursWorked,
			KmDriven:     in.KmDriven,
			FuelLiters:   in.FuelLiters,
			UsageCost:    domain.RoundMoney(domain.UsageCost(in.HoursWorked, in.KmDriven, equipment.HourlyUsageCost, equipment.Per100kmUsageCost)),
			OperatorCost: domain.RoundMoney(domain.OperatorCost(in.HoursWorked, rate)),
		})
		return err
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	return out, nil
}

func (s *ERPService) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListAssignments(ctx, filter)
}
