package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/shopspring/decimal"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return formatUint(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printReferences(items []domain.Reference) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{formatUint(item.ID), item.Key, orDash(item.Code), orDash(item.Label), formatMaybeUint(item.ParentID)})
	}
	printTable([]string{"ID", "KEY", "CODE", "LABEL", "PARENT"}, rows)
}

func printSites(items []domain.Site) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			item.Code,
			item.Name,
			orDash(item.SiteType),
			orDash(item.AnalyticCenter),
			item.Status,
			strconv.FormatBool(item.Active),
		})
	}
	printTable([]string{"ID", "CODE", "NAME", "TYPE", "CENTER", "STATUS", "ACTIVE"}, rows)
}

func printSite(item domain.Site) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"code", item.Code},
		{"name", item.Name},
		{"type", orDash(item.SiteType)},
		{"analytic_center", orDash(item.AnalyticCenter)},
		{"client", orDash(item.ClientName)},
		{"location", orDash(item.Location)},
		{"start_date", formatDate(item.StartDate)},
		{"end_date", formatDate(item.EndDate)},
		{"manager", orDash(item.ManagerName)},
		{"status", item.Status},
		{"active", strconv.FormatBool(item.Active)},
	})
}

func printEquipmentList(items []domain.Equipment) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			item.Code,
			orDash(item.Registration),
			orDash(item.CategoryLabel),
			formatMoney(item.HourlyUsageCost),
			formatMoney(item.Per100kmUsageCost),
			strconv.FormatBool(item.Active),
		})
	}
	printTable([]string{"ID", "CODE", "REGISTRATION", "CATEGORY", "COST_1H", "COST_100KM", "ACTIVE"}, rows)
}

func printEquipment(item domain.Equipment) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"code", item.Code},
		{"registration", orDash(item.Registration)},
		{"category", orDash(item.CategoryLabel)},
		{"meter_unit", item.MeterUnit},
		{"usage_source", item.UsageSource},
		{"fuel_per_hour", formatMoney(item.FuelPerHour)},
		{"hourly_usage_cost", formatMoney(item.HourlyUsageCost)},
		{"per_100km_usage_cost", formatMoney(item.Per100kmUsageCost)},
		{"home_site_id", formatMaybeUint(item.HomeSiteID)},
		{"active", strconv.FormatBool(item.Active)},
	})
}

func printPersons(items []domain.Person) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			item.Matricule,
			item.FullName,
			orDash(item.DivisionName),
			orDash(item.FunctionName),
			formatMoney(item.HourlyCostRate),
			strconv.FormatBool(item.Active),
		})
	}
	printTable([]string{"ID", "MATRICULE", "NAME", "DIVISION", "FUNCTION", "RATE", "ACTIVE"}, rows)
}

func printPerson(item domain.Person) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"matricule", item.Matricule},
		{"full_name", item.FullName},
		{"sector", orDash(item.Sector)},
		{"division", orDash(item.DivisionName)},
		{"service", orDash(item.ServiceName)},
		{"function", orDash(item.FunctionName)},
		{"base_salary", formatMoney(item.BaseSalary)},
		{"salary_supplement", formatMoney(item.SalarySupplement)},
		{"hourly_cost_rate", formatMoney(item.HourlyCostRate)},
		{"active", strconv.FormatBool(item.Active)},
	})
}

func printAssignments(items []domain.Assignment) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			item.Date.Format("2006-01-02"),
			strconv.Itoa(item.HalfDaySlot),
			formatUint(item.EquipmentID),
			formatUint(item.SiteID),
			formatMaybeUint(item.OperatorID),
			formatMoney(item.UsageCost),
			formatMoney(item.OperatorCost),
		})
	}
	printTable([]string{"ID", "DATE", "SLOT", "EQUIPMENT", "SITE", "OPERATOR", "USAGE_COST", "OPERATOR_COST"}, rows)
}

func printExpenses(items []domain.Expense) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			item.Date.Format("2006-01-02"),
			orDash(item.EquipmentCode),
			orDash(item.SupplierName),
			item.ExpenseType,
			formatMoney(item.AmountExclTax),
		})
	}
	printTable([]string{"ID", "DATE", "EQUIPMENT", "SUPPLIER", "TYPE", "AMOUNT"}, rows)
}

func printImportReport(report domain.ImportReport) {
	printKV([][2]string{
		{"dataset", string(report.Dataset)},
		{"rows", strconv.Itoa(report.Rows)},
		{"created", strconv.Itoa(report.Created)},
		{"updated", strconv.Itoa(report.Updated)},
		{"skipped", strconv.Itoa(report.Skipped)},
	})
	for _, issue := range report.Issues {
		fmt.Printf("skipped line %d: %s\n", issue.Line, issue.Reason)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("warning line %d: %s\n", warning.Line, warning.Reason)
	}
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatUint(item.ID),
			formatTime(item.CreatedAt),
			orDash(item.ActorUserEmail),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
		})
	}
	printTable([]string{"ID", "AT", "ACTOR", "ACTION", "TARGET", "TARGET_ID"}, rows)
}
