package application

import (
	"context"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultMeterUnit   = "H"
	defaultUsageSource = "MANUEL"
)

func parseOptionalDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func upper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func upperPtr(value *string) *string {
	if value == nil {
		return nil
	}
	u := upper(*value)
	return &u
}

func (s *ERPService) ListSites(ctx context.Context, filter domain.SiteFilter) ([]domain.Site, error) {
	filter.SiteType = upper(filter.SiteType)
	filter.Status = upper(filter.Status)
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListSites(ctx, filter)
}

func (s *ERPService) GetSite(ctx context.Context, id uint) (domain.Site, error) {
	return s.store.GetSite(ctx, id)
}

func (s *ERPService) CreateSite(ctx context.Context, in SiteInput) (domain.Site, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.SiteType = upper(in.SiteType)
	in.Status = upper(in.Status)
	if err := s.check(in); err != nil {
		return domain.Site{}, err
	}

	siteType := defaultString(in.SiteType, domain.SiteTypeWorksite)
	status := defaultString(in.Status, domain.SiteStatusOngoing)

	var out domain.Site
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.GetSiteByCode(ctx, in.Code); err == nil {
			return errors.Wrapf(domain.ErrConflict, "site code %q already exists", in.Code)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		clientID, err := s.resolveOptional(ctx, tx, domain.KindClient, strings.TrimSpace(in.ClientName), domain.ReferenceAttrs{})
		if err != nil {
			return err
		}
		if in.ManagerID != nil {
			if _, err := tx.GetPerson(ctx, *in.ManagerID); err != nil {
				return err
			}
		}

		out, err = tx.CreateSite(ctx, domain.Site{
			Code:           in.Code,
			Name:           in.Name,
			SiteType:       siteType,
			AnalyticCenter: domain.AnalyticCenterForSiteType(siteType),
			ClientID:       clientID,
			Location:       strings.TrimSpace(in.Location),
			StartDate:      parseOptionalDate(in.StartDate),
			EndDate:        parseOptionalDate(in.EndDate),
			ManagerID:      in.ManagerID,
			Status:         status,
			Active:         boolOr(in.Active, status != domain.SiteStatusFinished),
		})
		return err
	})
	if err != nil {
		return domain.Site{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "site.create", "site", &out.ID, out.Code)
	return out, nil
}

func (s *ERPService) UpdateSite(ctx context.Context, id uint, in SiteUpdate) (domain.Site, error) {
	in.SiteType = upperPtr(in.SiteType)
	in.Status = upperPtr(in.Status)
	if err := s.check(in); err != nil {
		return domain.Site{}, err
	}

	var out domain.Site
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		site, err := tx.GetSite(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil {
			site.Name = strings.TrimSpace(*in.Name)
		}
		if in.SiteType != nil {
			site.SiteType = *in.SiteType
			site.AnalyticCenter = domain.AnalyticCenterForSiteType(site.SiteType)
		}
		if in.ClientName != nil {
			site.ClientID, err = s.resolveOptional(ctx, tx, domain.KindClient, strings.TrimSpace(*in.ClientName), domain.ReferenceAttrs{})
			if err != nil {
				return err
			}
		}
		if in.Location != nil {
			site.Location = strings.TrimSpace(*in.Location)
		}
		if in.StartDate != nil {
			site.StartDate = parseOptionalDate(*in.StartDate)
		}
		if in.EndDate != nil {
			site.EndDate = parseOptionalDate(*in.EndDate)
		}
		if in.ManagerID != nil {
			if _, err := tx.GetPerson(ctx, *in.ManagerID); err != nil {
				return err
			}
			site.ManagerID = in.ManagerID
		}
		if in.Status != nil {
			site.Status = *in.Status
		}
		if in.Active != nil {
			site.Active = *in.Active
		}

		out, err = tx.UpdateSite(ctx, site)
		return err
	})
	if err != nil {
		return domain.Site{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "site.update", "site", &out.ID, out.Code)
	return out, nil
}

func (s *ERPService) DeactivateSite(ctx context.Context, id uint) error {
	if err := s.store.SetSiteActive(ctx, id, false); err != nil {
		return err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "site.deactivate", "site", &id, "")
	return nil
}

func (s *ERPService) ListEquipment(ctx context.Context, filter domain.EquipmentFilter) ([]domain.Equipment, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListEquipment(ctx, filter)
}

func (s *ERPService) GetEquipment(ctx context.Context, id uint) (domain.Equipment, error) {
	return s.store.GetEquipment(ctx, id)
}

func (s *ERPService) CreateEquipment(ctx context.Context, in EquipmentInput) (domain.Equipment, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := s.check(in); err != nil {
		return domain.Equipment{}, err
	}

	var out domain.Equipment
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.GetEquipmentByCode(ctx, in.Code); err == nil {
			return errors.Wrapf(domain.ErrConflict, "equipment code %q already exists", in.Code)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		categoryID, err := s.resolveOptional(ctx, tx, domain.KindCategory, strings.TrimSpace(in.CategoryCode), domain.ReferenceAttrs{})
		if err != nil {
			return err
		}
		if in.HomeSiteID != nil {
			if _, err := tx.GetSite(ctx, *in.HomeSiteID); err != nil {
				return err
			}
		}

		out, err = tx.CreateEquipment(ctx, domain.Equipment{
			Code:              in.Code,
			Registration:      strings.TrimSpace(in.Registration),
			CategoryID:        categoryID,
			MeterUnit:         defaultString(in.MeterUnit, defaultMeterUnit),
			UsageSource:       defaultString(in.UsageSource, defaultUsageSource),
			FuelPerHour:       in.FuelPerHour,
			HourlyUsageCost:   domain.RoundMoney(in.HourlyUsageCost),
			Per100kmUsageCost: domain.RoundMoney(in.Per100kmUsageCost),
			HomeSiteID:        in.HomeSiteID,
			Active:            boolOr(in.Active, true),
		})
		return err
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "equipment.create", "equipment", &out.ID, out.Code)
	return out, nil
}

func (s *ERPService) UpdateEquipment(ctx context.Context, id uint, in EquipmentUpdate) (domain.Equipment, error) {
	if err := s.check(in); err != nil {
		return domain.Equipment{}, err
	}

	var out domain.Equipment
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		eq, err := tx.GetEquipment(ctx, id)
		if err != nil {
			return err
		}
		if in.Registration != nil {
			eq.Registration = strings.TrimSpace(*in.Registration)
		}
		if in.CategoryCode != nil {
			eq.CategoryID, err = s.resolveOptional(ctx, tx, domain.KindCategory, strings.TrimSpace(*in.CategoryCode), domain.ReferenceAttrs{})
			if err != nil {
				return err
			}
		}
		if in.MeterUnit != nil {
			eq.MeterUnit = defaultString(*in.MeterUnit, defaultMeterUnit)
		}
		if in.UsageSource != nil {
			eq.UsageSource = defaultString(*in.UsageSource, defaultUsageSource)
		}
		if in.FuelPerHour != nil {
			eq.FuelPerHour = *in.FuelPerHour
		}
		if in.HourlyUsageCost != nil {
			eq.HourlyUsageCost = domain.RoundMoney(*in.HourlyUsageCost)
		}
		if in.Per100kmUsageCost != nil {
			eq.Per100kmUsageCost = domain.RoundMoney(*in.Per100kmUsageCost)
		}
		if in.HomeSiteID != nil {
			if _, err := tx.GetSite(ctx, *in.HomeSiteID); err != nil {
				return err
			}
			eq.HomeSiteID = in.HomeSiteID
		}
		if in.Active != nil {
			eq.Active = *in.Active
		}

		out, err = tx.UpdateEquipment(ctx, eq)
		return err
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "equipment.update", "equipment", &out.ID, out.Code)
	return out, nil
}

func (s *ERPService) DeactivateEquipment(ctx context.Context, id uint) error {
	if err := s.store.SetEquipmentActive(ctx, id, false); err != nil {
		return err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "equipment.deactivate", "equipment", &id, "")
	return nil
}

func (s *ERPService) ListPersons(ctx context.Context, filter domain.PersonFilter) ([]domain.Person, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListPersons(ctx, filter)
}

func (s *ERPService) GetPerson(ctx context.Context, id uint) (domain.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// orgRefs resolves the division, the service under it and the function of
// a person.
func (s *ERPService) orgRefs(ctx context.Context, repo domain.ReferenceRepository, division, service, function, functionCode string) (divisionID, serviceID, functionID *uint, err error) {
	divisionID, err = s.resolveOptional(ctx, repo, domain.KindDivision, strings.TrimSpace(division), domain.ReferenceAttrs{})
	if err != nil {
		return nil, nil, nil, err
	}
	serviceID, err = s.resolveOptional(ctx, repo, domain.KindService, strings.TrimSpace(service), domain.ReferenceAttrs{ParentID: divisionID})
	if err != nil {
		return nil, nil, nil, err
	}
	functionID, err = s.resolveOptional(ctx, repo, domain.KindFunction, strings.TrimSpace(function), domain.ReferenceAttrs{Code: strings.TrimSpace(functionCode)})
	if err != nil {
		return nil, nil, nil, err
	}
	return divisionID, serviceID, functionID, nil
}

func decimalOrZero(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

func (s *ERPService) CreatePerson(ctx context.Context, in PersonInput) (domain.Person, error) {
	in.Matricule = strings.TrimSpace(in.Matricule)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return domain.Person{}, err
	}

	var out domain.Person
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.GetPersonByMatricule(ctx, in.Matricule); err == nil {
			return errors.Wrapf(domain.ErrConflict, "matricule %q already exists", in.Matricule)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		divisionID, serviceID, functionID, err := s.orgRefs(ctx, tx, in.DivisionName, in.ServiceName, in.FunctionName, in.FunctionCode)
		if err != nil {
			return err
		}

		out, err = tx.CreatePerson(ctx, domain.Person{
			Matricule:        in.Matricule,
			FullName:         in.FullName,
			Sector:           strings.TrimSpace(in.Sector),
			DivisionID:       divisionID,
			ServiceID:        serviceID,
			FunctionID:       functionID,
			BaseSalary:       domain.RoundMoney(decimalOrZero(in.BaseSalary)),
			SalarySupplement: domain.RoundMoney(decimalOrZero(in.SalarySupplement)),
			HourlyCostRate:   domain.ResolveHourlyRate(in.HourlyCostRate, in.BaseSalary, in.SalarySupplement),
			Active:           boolOr(in.Active, true),
		})
		return err
	})
	if err != nil {
		return domain.Person{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "person.create", "person", &out.ID, out.Matricule)
	return out, nil
}

// UpdatePerson re-derives the hourly rate from the salary when the salary
// changes and no explicit rate is given.
func (s *ERPService) UpdatePerson(ctx context.Context, id uint, in PersonUpdate) (domain.Person, error) {
	if err := s.check(in); err != nil {
		return domain.Person{}, err
	}

	var out domain.Person
	err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		p, err := tx.GetPerson(ctx, id)
		if err != nil {
			return err
		}
		if in.FullName != nil {
			p.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Sector != nil {
			p.Sector = strings.TrimSpace(*in.Sector)
		}
		if in.DivisionName != nil || in.ServiceName != nil {
			division := pick(in.DivisionName, p.DivisionName)
			service := pick(in.ServiceName, p.ServiceName)
			p.DivisionID, p.ServiceID, _, err = s.orgRefs(ctx, tx, division, service, "", "")
			if err != nil {
				return err
			}
		}
		// the function is only re-resolved when named or coded here. A
		// new name without a code means the uncoded function of that name.
		if in.FunctionName != nil || in.FunctionCode != nil {
			function := pick(in.FunctionName, p.FunctionName)
			code := p.FunctionCode
			if in.FunctionName != nil {
				code = ""
			}
			code = pick(in.FunctionCode, code)
			p.FunctionID, err = s.resolveOptional(ctx, tx, domain.KindFunction, strings.TrimSpace(function), domain.ReferenceAttrs{Code: strings.TrimSpace(code)})
			if err != nil {
				return err
			}
		}

		salaryChanged := in.BaseSalary != nil || in.SalarySupplement != nil
		if in.BaseSalary != nil {
			p.BaseSalary = domain.RoundMoney(*in.BaseSalary)
		}
		if in.SalarySupplement != nil {
			p.SalarySupplement = domain.RoundMoney(*in.SalarySupplement)
		}
		switch {
		case in.HourlyCostRate != nil:
			p.HourlyCostRate = domain.ResolveHourlyRate(in.HourlyCostRate, &p.BaseSalary, &p.SalarySupplement)
		case salaryChanged:
			p.HourlyCostRate = domain.ResolveHourlyRate(nil, &p.BaseSalary, &p.SalarySupplement)
		}
		if in.Active != nil {
			p.Active = *in.Active
		}

		out, err = tx.UpdatePerson(ctx, p)
		return err
	})
	if err != nil {
		return domain.Person{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "person.update", "person", &out.ID, out.Matricule)
	return out, nil
}

func pick(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func (s *ERPService) DeactivatePerson(ctx context.Context, id uint) error {
	if err := s.store.SetPersonActive(ctx, id, false); err != nil {
		return err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "person.deactivate", "person", &id, "")
	return nil
}

func (s *ERPService) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListExpenses(ctx, filter)
}

// CreateExpense appends to the expense ledger. The equipment must exist;
// the supplier is resolved by name.
func (s *ERPService) CreateExpense(ctx context.Context, in ExpenseInput) (domain.Expense, error) {
	in.ExpenseType = strings.TrimSpace(in.ExpenseType)
	if err := s.check(in); err != nil {
		return domain.Expense{}, err
	}
	// checked after rounding: 0.004 is stored as 0.00
	amount := domain.RoundMoney(in.AmountExclTax)
	if !amount.IsPositive() {
		return domain.Expense{}, domain.Malformed("amount_excl_tax", "must be > 0")
	}
	date, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return domain.Expense{}, domain.Malformed("date", "must be a date formatted YYYY-MM-DD")
	}

	var out domain.Expense
	err = s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.GetEquipment(ctx, in.EquipmentID); err != nil {
			return err
		}
		supplierID, err := s.resolveOptional(ctx, tx, domain.KindSupplier, strings.TrimSpace(in.SupplierName), domain.ReferenceAttrs{})
		if err != nil {
			return err
		}
		out, err = tx.CreateExpense(ctx, domain.Expense{
			EquipmentID:   in.EquipmentID,
			SupplierID:    supplierID,
			Date:          date,
			ExpenseType:   in.ExpenseType,
			AmountExclTax: amount,
			Description:   strings.TrimSpace(in.Description),
		})
		return err
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.WriteAudit(ctx, actorFromContext(ctx), "expense.create", "expense", &out.ID, out.AmountExclTax.StringFixed(domain.MoneyPlaces))
	return out, nil
}
