package controller

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/reporting"
)

const defaultReportDays = 30

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportRange reads ?start=&end=&granularity=. The range defaults to the
// last 30 days ending today.
func (h *Handler) reportRange(c *fiber.Ctx) (time.Time, time.Time, reporting.Granularity, error) {
	g, err := reporting.ParseGranularity(c.Query("granularity", c.Query("period")))
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	start, err := dateQuery(c, "start")
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	end, err := dateQuery(c, "end")
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}

	to := model.DateOnly(h.now())
	if end != nil {
		to = *end
	}
	from := to.AddDate(0, 0, -defaultReportDays)
	if start != nil {
		from = *start
	}
	return from, to, g, nil
}

// Dashboard returns the all-time counters and the revenue table of the
// last 30 days.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	start, end, g, err := h.reportRange(c)
	if err != nil {
		return err
	}
	stats, err := h.Reports.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	revenue, err := h.Reports.RevenueByPeriod(c.UserContext(), start, end, g)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"stats":      stats,
		"net_profit": stats.TotalRevenue.Sub(stats.TotalExpenses),
		"revenue":    revenue,
	})
}

func (h *Handler) Report(c *fiber.Ctx) error {
	start, end, g, err := h.reportRange(c)
	if err != nil {
		return err
	}
	report, err := h.Reports.Build(c.UserContext(), start, end, g)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *Handler) SalesReport(c *fiber.Ctx) error {
	start, end, g, err := h.reportRange(c)
	if err != nil {
		return err
	}
	buckets, err := h.Reports.SalesReport(c.UserContext(), start, end, g)
	if err != nil {
		return err
	}
	return c.JSON(buckets)
}

func (h *Handler) RevenueReport(c *fiber.Ctx) error {
	start, end, g, err := h.reportRange(c)
	if err != nil {
		return err
	}
	revenue, err := h.Reports.RevenueByPeriod(c.UserContext(), start, end, g)
	if err != nil {
		return err
	}
	return c.JSON(revenue)
}

func (h *Handler) ExpensesReport(c *fiber.Ctx) error {
	start, end, _, err := h.reportRange(c)
	if err != nil {
		return err
	}
	totals, err := h.Reports.ExpensesByCategory(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(totals)
}

func (h *Handler) ExpiringAccounts(c *fiber.Ctx) error {
	days := c.QueryInt("days", reporting.ExpiringThresholdDays)
	if days < 0 {
		return model.Invalid("days must not be negative")
	}
	accounts, err := h.Reports.ExpiringAccounts(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(accounts)
}

// ExportReport downloads the report as an Excel workbook.
func (h *Handler) ExportReport(c *fiber.Ctx) error {
	start, end, g, err := h.reportRange(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.Reports.ExportXLSX(c.UserContext(), &buf, start, end, g); err != nil {
		return err
	}

	name := fmt.Sprintf("rapport_%s_%s.xlsx", start.Format(time.DateOnly), end.Format(time.DateOnly))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(buf.Bytes())
}
