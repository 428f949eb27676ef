package reporting

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "Summary"
	sheetRevenue  = "Revenue"
	sheetExpenses = "Expenses"
)

// ExportXLSX writes the report of the period as a workbook with a summary,
// revenue and expenses sheet.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer, start, end time.Time, g Granularity) error {
	report, err := s.Build(ctx, start, end, g)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]interface{}{
		{"From", report.Start.Format(periodLayout)},
		{"To", report.End.Format(periodLayout)},
		{"Granularity", string(report.Granularity)},
		{"Sales", report.Summary.Sales.InexactFloat64()},
		{"Subscriptions", report.Summary.Subscriptions.InexactFloat64()},
		{"Revenue", report.Summary.Revenue.InexactFloat64()},
		{"Expenses", report.Summary.Expenses.InexactFloat64()},
		{"Net profit", report.Summary.NetProfit.InexactFloat64()},
		{"Profit margin (%)", report.Summary.ProfitMargin.InexactFloat64()},
		{"Customers", report.Customers.Total},
		{"New customers", report.Customers.New},
		{"Active customers", report.Customers.Active},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetRevenue); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	revenue := [][]interface{}{{"Period", "Sales", "Subscriptions", "Total"}}
	for _, r := range report.Revenue {
		revenue = append(revenue, []interface{}{
			r.Period, r.Sales.InexactFloat64(), r.Subscriptions.InexactFloat64(), r.Total.InexactFloat64(),
		})
	}
	if err := writeRows(f, sheetRevenue, revenue); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetExpenses); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	expenses := [][]interface{}{{"Category", "Total"}}
	for _, e := range report.Expenses {
		expenses = append(expenses, []interface{}{e.Category, e.Total.InexactFloat64()})
	}
	if err := writeRows(f, sheetExpenses, expenses); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
