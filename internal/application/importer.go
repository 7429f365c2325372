package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	homeSiteCode       = "DEPOT-CENTRAL"
	homeSiteLabel      = "Dépôt Central Non Spécifié"
	unknownExpenseType = "INCONNU"
)

// Spreadsheet columns per dataset.
const (
	colEquipCode     = "EquipID"
	colCategory      = "Categorie"
	colRegistration  = "Immatriculation"
	colMeterUnit     = "UniteCompteur"
	colUsageSource   = "UsageSource"
	colFuelPerHour   = "Conso_h_L"
	colHourlyCost    = "Cout_Usage_1h_lei"
	colPer100kmCost  = "Cout_Usage_100km_lei"
	colSector        = "Sector"
	colDivision      = "Diviziune"
	colService       = "Serviciu"
	colFunction      = "Fuctia"
	colFunctionCode  = "Codul functiei"
	colMatricule     = "Nr. de tabel"
	colFullName      = "Numele, prenumele"
	colBaseSalary    = "Salariu tarifar schema"
	colSupplement    = "Acord sup"
	colSiteCode      = "ChantierID"
	colSiteTitle     = "Intitule"
	colSiteType      = "TypeSite"
	colClient        = "Client"
	colLocation      = "Localisation"
	colStartDate     = "DateDebut"
	colEndDate       = "DateFin"
	colManager       = "ChefChantier"
	colStatus        = "Statut"
	colExpenseDate   = "Data"
	colSupplier      = "Fournisseur_nom"
	colExpenseType   = "Categ_intervention"
	colExpenseDetail = "description_intervention"
	colAmount        = "montant"
)

// rowImporter applies one record inside tx. warn collects problems that do
// not reject the row.
type rowImporter func(ctx context.Context, tx domain.Store, rec domain.ImportRecord, warn func(string)) (domain.RowOutcome, error)

// Import applies records of dataset row by row. Each row runs in its own
// transaction; a failing row is skipped with its reason and never aborts
// the rest. The only error returned is an unknown dataset.
func (s *ERPService) Import(ctx context.Context, dataset domain.Dataset, records []domain.ImportRecord) (domain.ImportReport, error) {
	apply, ok := s.importers()[dataset]
	if !ok {
		return domain.ImportReport{}, domain.Malformed("dataset", fmt.Sprintf("unknown dataset %q", dataset))
	}

	log := logging.FromContext(ctx).WithField("dataset", dataset)
	report := domain.ImportReport{Dataset: dataset, Issues: []domain.RowIssue{}}

	for _, rec := range records {
		report.Rows++
		rowLog := log.WithField("line", rec.Line)

		var warnings []string
		warn := func(msg string) { warnings = append(warnings, msg) }

		var outcome domain.RowOutcome
		err := s.inTx(ctx, func(ctx context.Context, tx domain.Store) error {
			var err error
			outcome, err = apply(ctx, tx, rec, warn)
			return err
		})
		if err != nil {
			outcome = domain.RowSkipped
			report.Issues = append(report.Issues, domain.RowIssue{Line: rec.Line, Reason: err.Error()})
			entry := rowLog.WithError(err)
			if errors.Is(err, domain.ErrMalformedInput) || errors.Is(err, domain.ErrNotFound) {
				entry.Info("import row skipped")
			} else {
				entry.Warn("import row failed")
			}
		} else {
			for _, msg := range warnings {
				report.Warnings = append(report.Warnings, domain.RowIssue{Line: rec.Line, Reason: msg})
				rowLog.Warn(msg)
			}
		}

		report.Count(outcome)
		s.metrics.ImportRow(string(dataset), string(outcome))
	}

	log.WithFields(logrus.Fields{
		"rows":    report.Rows,
		"created": report.Created,
		"updated": report.Updated,
		"skipped": report.Skipped,
	}).Info("import finished")
	s.WriteAudit(ctx, actorFromContext(ctx), "import."+string(dataset), "import", nil,
		fmt.Sprintf("rows=%d created=%d updated=%d skipped=%d", report.Rows, report.Created, report.Updated, report.Skipped))
	return report, nil
}

func (s *ERPService) importers() map[domain.Dataset]rowImporter {
	return map[domain.Dataset]rowImporter{
		domain.DatasetEquipment: s.importEquipmentRow,
		domain.DatasetPersonnel: s.importPersonRow,
		domain.DatasetSites:     s.importSiteRow,
		domain.DatasetExpenses:  s.importExpenseRow,
	}
}

// importEquipmentRow creates unknown codes. Known codes only get their
// usage costs refreshed.
func (s *ERPService) importEquipmentRow(ctx context.Context, tx domain.Store, rec domain.ImportRecord, _ func(string)) (domain.RowOutcome, error) {
	code := rec.Get(colEquipCode)
	if code == "" {
		return domain.RowSkipped, domain.Malformed(colEquipCode, "is required")
	}

	hourly := domain.RoundMoney(decimalOrZeroCell(rec.Get(colHourlyCost)))
	per100km := domain.RoundMoney(decimalOrZeroCell(rec.Get(colPer100kmCost)))

	existing, err := tx.GetEquipmentByCode(ctx, code)
	switch {
	case err == nil:
		existing.HourlyUsageCost = hourly
		existing.Per100kmUsageCost = per100km
		if _, err := tx.UpdateEquipment(ctx, existing); err != nil {
			return domain.RowSkipped, err
		}
		return domain.RowUpdated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RowSkipped, err
	}

	category := rec.Get(colCategory)
	categoryID, err := s.resolveOptional(ctx, tx, domain.KindCategory, category, domain.ReferenceAttrs{Label: category})
	if err != nil {
		return domain.RowSkipped, err
	}
	home, err := s.resolve(ctx, tx, domain.KindSite, homeSiteCode, domain.ReferenceAttrs{
		Label:          homeSiteLabel,
		SiteType:       domain.SiteTypeDepot,
		AnalyticCenter: domain.CenterAdmin,
	})
	if err != nil {
		return domain.RowSkipped, err
	}

	_, err = tx.CreateEquipment(ctx, domain.Equipment{
		Code:              code,
		Registration:      rec.Get(colRegistration),
		CategoryID:        categoryID,
		MeterUnit:         defaultString(rec.Get(colMeterUnit), defaultMeterUnit),
		UsageSource:       defaultString(rec.Get(colUsageSource), defaultUsageSource),
		FuelPerHour:       decimalOrZeroCell(rec.Get(colFuelPerHour)),
		HourlyUsageCost:   hourly,
		Per100kmUsageCost: per100km,
		HomeSiteID:        &home.ID,
		Active:            true,
	})
	if err != nil {
		return domain.RowSkipped, err
	}
	return domain.RowCreated, nil
}

// importPersonRow upserts by matricule. Rows without one get TEMP_<n>
// where n is the data row ordinal.
func (s *ERPService) importPersonRow(ctx context.Context, tx domain.Store, rec domain.ImportRecord, _ func(string)) (domain.RowOutcome, error) {
	name := rec.Get(colFullName)
	if name == "" {
		return domain.RowSkipped, domain.Malformed(colFullName, "is required")
	}
	matricule := rec.Get(colMatricule)
	if matricule == "" {
		matricule = fmt.Sprintf("TEMP_%d", rec.Line-1)
	}

	var functionName, functionCode string
	if fn := rec.Get(colFunction); fn != "" {
		functionName, functionCode = fn, rec.Get(colFunctionCode)
	}
	divisionID, serviceID, functionID, err := s.orgRefs(ctx, tx, rec.Get(colDivision), rec.Get(colService), functionName, functionCode)
	if err != nil {
		return domain.RowSkipped, err
	}

	salary := domain.RoundMoney(decimalOrZeroCell(rec.Get(colBaseSalary)))
	supplement := domain.RoundMoney(decimalOrZeroCell(rec.Get(colSupplement)))
	person := domain.Person{
		Matricule:        matricule,
		FullName:         name,
		Sector:           rec.Get(colSector),
		DivisionID:       divisionID,
		ServiceID:        serviceID,
		FunctionID:       functionID,
		BaseSalary:       salary,
		SalarySupplement: supplement,
		HourlyCostRate:   domain.ResolveHourlyRate(nil, &salary, &supplement),
		Active:           true,
	}

	existing, err := tx.GetPersonByMatricule(ctx, matricule)
	switch {
	case err == nil:
		person.ID = existing.ID
		person.Active = existing.Active
		if _, err := tx.UpdatePerson(ctx, person); err != nil {
			return domain.RowSkipped, err
		}
		return domain.RowUpdated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RowSkipped, err
	}

	if _, err := tx.CreatePerson(ctx, person); err != nil {
		return domain.RowSkipped, err
	}
	return domain.RowCreated, nil
}

// importSiteRow upserts by code. An unknown manager or an unreadable date
// is a warning; the row is still written without it.
func (s *ERPService) importSiteRow(ctx context.Context, tx domain.Store, rec domain.ImportRecord, warn func(string)) (domain.RowOutcome, error) {
	code := rec.Get(colSiteCode)
	title := rec.Get(colSiteTitle)
	if code == "" {
		return domain.RowSkipped, domain.Malformed(colSiteCode, "is required")
	}
	if title == "" {
		return domain.RowSkipped, domain.Malformed(colSiteTitle, "is required")
	}

	siteType := defaultString(upper(rec.Get(colSiteType)), domain.SiteTypeWorksite)
	status := defaultString(upper(rec.Get(colStatus)), domain.SiteStatusOngoing)

	clientID, err := s.resolveOptional(ctx, tx, domain.KindClient, rec.Get(colClient), domain.ReferenceAttrs{})
	if err != nil {
		return domain.RowSkipped, err
	}

	var managerID *uint
	if manager := rec.Get(colManager); manager != "" {
		p, err := tx.FindPersonByNameLike(ctx, manager)
		switch {
		case err == nil:
			managerID = &p.ID
		case errors.Is(err, domain.ErrNotFound):
			warn(fmt.Sprintf("site manager %q not found in personnel", manager))
		default:
			return domain.RowSkipped, err
		}
	}

	readDate := func(column string) *time.Time {
		raw := rec.Get(column)
		if raw == "" {
			return nil
		}
		t, err := parseCellDate(raw)
		if err != nil {
			warn(fmt.Sprintf("%s: cannot read date %q", column, raw))
			return nil
		}
		return &t
	}

	site := domain.Site{
		Code:           code,
		Name:           title,
		SiteType:       siteType,
		AnalyticCenter: domain.AnalyticCenterForSiteType(siteType),
		ClientID:       clientID,
		Location:       rec.Get(colLocation),
		StartDate:      readDate(colStartDate),
		EndDate:        readDate(colEndDate),
		ManagerID:      managerID,
		Status:         status,
		Active:         status != domain.SiteStatusFinished,
	}

	existing, err := tx.GetSiteByCode(ctx, code)
	switch {
	case err == nil:
		site.ID = existing.ID
		if _, err := tx.UpdateSite(ctx, site); err != nil {
			return domain.RowSkipped, err
		}
		return domain.RowUpdated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RowSkipped, err
	}

	if _, err := tx.CreateSite(ctx, site); err != nil {
		return domain.RowSkipped, err
	}
	return domain.RowCreated, nil
}

// importExpenseRow appends one expense for the equipment matching the
// registration.
func (s *ERPService) importExpenseRow(ctx context.Context, tx domain.Store, rec domain.ImportRecord, _ func(string)) (domain.RowOutcome, error) {
	registration := rec.Get(colRegistration)
	rawAmount := rec.Get(colAmount)
	if registration == "" {
		return domain.RowSkipped, domain.Malformed(colRegistration, "is required")
	}
	if rawAmount == "" {
		return domain.RowSkipped, domain.Malformed(colAmount, "is required")
	}

	equipment, err := tx.GetEquipmentByRegistration(ctx, registration)
	if err != nil {
		return domain.RowSkipped, err
	}

	amount, err := parseCellDecimal(rawAmount)
	if err != nil {
		return domain.RowSkipped, domain.Malformed(colAmount, fmt.Sprintf("cannot read amount %q", rawAmount))
	}
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return domain.RowSkipped, domain.Malformed(colAmount, "must be > 0")
	}
	rawDate := rec.Get(colExpenseDate)
	if rawDate == "" {
		return domain.RowSkipped, domain.Malformed(colExpenseDate, "is required")
	}
	date, err := parseCellDate(rawDate)
	if err != nil {
		return domain.RowSkipped, domain.Malformed(colExpenseDate, fmt.Sprintf("cannot read date %q", rawDate))
	}

	supplierID, err := s.resolveOptional(ctx, tx, domain.KindSupplier, rec.Get(colSupplier), domain.ReferenceAttrs{})
	if err != nil {
		return domain.RowSkipped, err
	}

	_, err = tx.CreateExpense(ctx, domain.Expense{
		EquipmentID:   equipment.ID,
		SupplierID:    supplierID,
		Date:          date,
		ExpenseType:   defaultString(rec.Get(colExpenseType), unknownExpenseType),
		AmountExclTax: amount,
		Description:   rec.Get(colExpenseDetail),
	})
	if err != nil {
		return domain.RowSkipped, err
	}
	return domain.RowCreated, nil
}

// parseCellDecimal accepts a decimal comma when the value has no point, and
// ignores spaces used as thousands separators.
func parseCellDecimal(raw string) (decimal.Decimal, error) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	v = strings.ReplaceAll(v, "\u00a0", "")
	if !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	} else {
		v = strings.ReplaceAll(v, ",", "")
	}
	return decimal.NewFromString(v)
}

func decimalOrZeroCell(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	v, err := parseCellDecimal(raw)
	if err != nil {
		return decimal.Zero
	}
	return v
}

var cellDateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"02-01-2006",
}

// parseCellDate reads the textual layouts above or a spreadsheet date
// serial. The time of day is dropped.
func parseCellDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return time.Time{}, errors.Errorf("unrecognised date %q", raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "date serial %q", raw)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
