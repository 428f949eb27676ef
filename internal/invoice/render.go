package invoice

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"dinidesk_backend/internal/model"
)

const (
	margin     = 20.0
	dateLayout = "02 Jan 2006"
	thanks     = "Merci de votre confiance !"
)

// Issuer is the company printed in the invoice header.
type Issuer struct {
	Name           string
	Address        string
	Email          string
	Phone          string
	CurrencySymbol string
}

// IssuerFrom builds the header from the app settings.
func IssuerFrom(app model.AppSettings) Issuer {
	return Issuer{
		Name:           app.SiteName,
		Address:        app.Address,
		Email:          app.ContactEmail,
		Phone:          app.ContactPhone,
		CurrencySymbol: app.CurrencySymbol,
	}
}

type Renderer struct {
	compress bool
}

type RendererOption func(*Renderer)

// WithoutCompression leaves page streams readable, for inspection in tests.
func WithoutCompression() RendererOption {
	return func(r *Renderer) { r.compress = false }
}

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type line struct {
	label  string
	detail string
	amount string
}

type document struct {
	title    string
	number   string
	date     time.Time
	customer *model.Customer
	section  string
	lines    []line
	totals   []line
}

// RenderSubscription writes the invoice of sub. Customer, plan and profiles
// must be loaded.
func (r *Renderer) RenderSubscription(w io.Writer, issuer Issuer, sub *model.Subscription) error {
	if sub.Customer == nil || sub.Plan == nil {
		return fmt.Errorf("subscription %d: customer and plan must be loaded", sub.ID)
	}
	names := make([]string, len(sub.Profiles))
	for i, p := range sub.Profiles {
		names[i] = p.Name
	}
	platform := ""
	if sub.Plan.Platform != nil {
		platform = sub.Plan.Platform.Name
	}
	doc := document{
		title:    "Facture abonnement",
		number:   sub.InvoiceNumber,
		date:     sub.CreatedAt,
		customer: sub.Customer,
		section:  "Détails de l'abonnement",
		lines: []line{
			{label: "Plan", detail: strings.TrimSpace(platform + " " + sub.Plan.Name), amount: Money(sub.Plan.Price, issuer.CurrencySymbol)},
			{label: "Profils", detail: strings.Join(names, ", ")},
			{label: "Période", detail: sub.StartDate.Format(dateLayout) + " - " + sub.EndDate.Format(dateLayout)},
		},
		totals: []line{{label: "Total", amount: Money(sub.Plan.Price, issuer.CurrencySymbol)}},
	}
	return r.render(w, issuer, doc)
}

// RenderSale writes the invoice of sale. Customer and items with their
// product or service must be loaded.
func (r *Renderer) RenderSale(w io.Writer, issuer Issuer, sale *model.Sale) error {
	if sale.Customer == nil {
		return fmt.Errorf("sale %d: customer must be loaded", sale.ID)
	}
	doc := document{
		title:    "Facture",
		number:   sale.InvoiceNumber,
		date:     sale.Date,
		customer: sale.Customer,
		section:  "Détails de la vente",
	}
	for _, item := range sale.Items {
		doc.lines = append(doc.lines, line{
			label:  itemName(item),
			detail: fmt.Sprintf("%d x %s", item.Quantity, Money(item.UnitPrice, issuer.CurrencySymbol)),
			amount: Money(item.TotalPrice, issuer.CurrencySymbol),
		})
	}
	if sale.ShippingFee.IsPositive() {
		doc.totals = append(doc.totals,
			line{label: "Sous-total", amount: Money(sale.TotalAmount, issuer.CurrencySymbol)},
			line{label: "Livraison", detail: sale.ShippingZone, amount: Money(sale.ShippingFee, issuer.CurrencySymbol)},
		)
	}
	doc.totals = append(doc.totals, line{label: "Total", amount: Money(sale.GrandTotal(), issuer.CurrencySymbol)})
	return r.render(w, issuer, doc)
}

func itemName(item model.SaleItem) string {
	switch {
	case item.Product != nil:
		return item.Product.Name
	case item.Service != nil:
		return item.Service.Name
	}
	return item.Description
}

func (r *Renderer) render(w io.Writer, issuer Issuer, doc document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetTitle(doc.title+" "+doc.number, true)
	pdf.SetCreator(issuer.Name, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 10, tr(thanks), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, tr(strings.ToUpper(issuer.Name)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, s := range []string{issuer.Address, issuer.Email, issuer.Phone} {
		if s != "" {
			pdf.CellFormat(0, 5, tr(s), "", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr(doc.title+" #"+doc.number), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, tr("Date: "+doc.date.Format(dateLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr("Informations client"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, s := range []string{doc.customer.Name, doc.customer.Email, doc.customer.Phone, doc.customer.Address} {
		if s != "" {
			pdf.CellFormat(0, 7, tr(s), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(8)

	pageWidth, _ := pdf.GetPageSize()
	content := pageWidth - 2*margin
	amountWidth := 45.0

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(doc.section), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, l := range doc.lines {
		pdf.CellFormat(content-amountWidth, 7, tr(l.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(amountWidth, 7, tr(l.amount), "", 1, "R", false, 0, "")
		if l.detail != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(content-amountWidth, 5, tr(l.detail), "", "L", false)
			pdf.SetFont("Helvetica", "", 12)
		}
		pdf.Ln(2)
	}
	pdf.Ln(6)

	for i, l := range doc.totals {
		size := 12.0
		if i == len(doc.totals)-1 {
			size = 16
		}
		pdf.SetFont("Helvetica", "B", size)
		label := l.label
		if l.detail != "" {
			label += " (" + l.detail + ")"
		}
		pdf.CellFormat(content-amountWidth, 9, tr(label), "T", 0, "L", false, 0, "")
		pdf.CellFormat(amountWidth, 9, tr(l.amount), "T", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", doc.number, err)
	}
	return nil
}

// Money formats d with space-grouped thousands, two decimals only when
// there is a fractional part, and the currency symbol.
func Money(d decimal.Decimal, symbol string) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	out := sign + b.String()
	if frac != "00" {
		out += "." + frac
	}
	if symbol != "" {
		out += " " + symbol
	}
	return out
}
