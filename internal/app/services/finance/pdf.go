package finance

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/finance"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

type rgb struct{ r, g, b int }

var (
	brandYellow = rgb{247, 206, 15}
	brandOrange = rgb{241, 107, 50}
	textDark    = rgb{20, 20, 20}
	textMuted   = rgb{90, 90, 90}
	headerFill  = rgb{245, 245, 245}
)

// document wraps fpdf with the cp1252 translator core fonts need.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument() *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(13, 17, 13)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) color(c rgb) { d.pdf.SetTextColor(c.r, c.g, c.b) }

func (d *document) banner(title, subtitle string) {
	p := d.pdf
	width, _ := p.GetPageSize()
	left, _, right, _ := p.GetMargins()
	w := width - left - right

	p.SetFillColor(brandYellow.r, brandYellow.g, brandYellow.b)
	p.SetFont("Helvetica", "B", 15)
	d.color(textDark)
	p.CellFormat(w, 10, d.tr(title), "", 1, "L", true, 0, "")
	p.SetFont("Helvetica", "", 10)
	d.color(textMuted)
	p.CellFormat(w, 7, d.tr(subtitle), "", 1, "L", true, 0, "")
	p.SetFillColor(brandOrange.r, brandOrange.g, brandOrange.b)
	p.CellFormat(w, 1, "", "", 1, "L", true, 0, "")
	p.Ln(5)
}

func (d *document) row(label, value string) {
	p := d.pdf
	p.SetFont("Helvetica", "B", 9)
	d.color(textMuted)
	p.CellFormat(55, 7, d.tr(label), "1", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 11)
	d.color(textDark)
	p.CellFormat(0, 7, d.tr(safe(value)), "1", 1, "L", false, 0, "")
}

func (d *document) table(widths []float64, header []string, rows [][]string, rightAligned int) {
	p := d.pdf
	p.SetDrawColor(230, 230, 230)
	p.SetFillColor(headerFill.r, headerFill.g, headerFill.b)
	p.SetFont("Helvetica", "B", 10)
	d.color(textDark)
	for i, h := range header {
		p.CellFormat(widths[i], 8, d.tr(h), "1", 0, "L", true, 0, "")
	}
	p.Ln(-1)
	p.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if i == rightAligned {
				align = "R"
			}
			p.CellFormat(widths[i], 7, d.tr(cell), "1", 0, align, false, 0, "")
		}
		p.Ln(-1)
	}
	p.Ln(4)
}

func (d *document) footer() {
	d.pdf.Ln(6)
	d.pdf.SetFont("Helvetica", "", 8)
	d.color(textMuted)
	d.pdf.CellFormat(0, 5, d.tr("Documento generado automáticamente por DOMU."), "", 1, "L", false, 0, "")
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, apperrors.Internal("could not render pdf", err)
	}
	return buf.Bytes(), nil
}

func renderPeriodDetail(detail PeriodDetail) ([]byte, error) {
	d := newDocument()
	d.banner("DOMU · Detalle de gasto común", "Período "+formatPeriod(detail.Year, detail.Month))
	buildingRows(d, detail.Building)
	d.row("Unidad", detail.UnitLabel)
	d.row("Vencimiento", formatDate(detail.DueDate))
	d.pdf.Ln(5)

	rows := make([][]string, 0, len(detail.Charges))
	for _, c := range detail.Charges {
		rows = append(rows, []string{safe(c.Type), safe(c.Origin), safe(c.Description), formatCurrency(c.Amount)})
	}
	d.table([]float64{30, 38, 78, 38}, []string{"Tipo", "Origen", "Descripción", "Monto"}, rows, 3)

	d.table([]float64{60, 40}, []string{"Resumen", ""}, [][]string{
		{"Total unidad", formatCurrency(detail.UnitTotal)},
		{"Pagado", formatCurrency(detail.UnitPaid)},
		{"Pendiente", formatCurrency(detail.UnitPending)},
	}, 1)

	if len(detail.Revisions) > 0 {
		d.pdf.SetFont("Helvetica", "B", 10)
		d.color(textDark)
		d.pdf.CellFormat(0, 7, d.tr("Historial de correcciones"), "", 1, "L", false, 0, "")
		d.pdf.SetFont("Helvetica", "", 9)
		d.color(textMuted)
		for _, r := range detail.Revisions {
			d.pdf.CellFormat(0, 5, d.tr("• "+safe(r.Action)+" · "+safe(r.Note)), "", 1, "L", false, 0, "")
		}
	}
	d.footer()
	return d.bytes()
}

type receiptData struct {
	Building  building.Building
	Period    finance.Period
	Charge    finance.Charge
	Payment   finance.Payment
	UnitLabel string
}

func renderPaymentReceipt(data receiptData) ([]byte, error) {
	d := newDocument()
	d.banner("DOMU · Comprobante de pago", fmt.Sprintf("Pago N° %d", data.Payment.ID))
	buildingRows(d, data.Building)
	d.row("Unidad", data.UnitLabel)
	d.row("Período", formatPeriod(data.Period.Year, data.Period.Month))
	d.row("Fecha de pago", formatDate(data.Payment.IssuedAt))
	d.row("Medio de pago", data.Payment.PaymentMethod)
	d.row("Referencia", data.Payment.Reference)
	d.pdf.Ln(5)

	d.table([]float64{120, 64}, []string{"Concepto", "Monto"}, [][]string{
		{safe(data.Charge.Description), formatCurrency(data.Payment.Amount)},
	}, 1)
	if text := strings.TrimSpace(data.Payment.ReceiptText); text != "" {
		d.pdf.SetFont("Helvetica", "", 9)
		d.color(textMuted)
		d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
	}
	d.footer()
	return d.bytes()
}

func buildingRows(d *document, b building.Building) {
	d.row("Comunidad", b.Name)
	d.row("Dirección", b.Address)
	d.row("Comuna", b.Commune)
	d.row("Ciudad", b.City)
}

func safe(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

func formatPeriod(year, month int) string {
	return fmt.Sprintf("%02d/%d", month, year)
}

// formatCurrency renders Chilean pesos: no decimals, dot thousands separator.
func formatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	digits := rounded.StringFixed(0)
	var b strings.Builder
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	return sign + "$" + b.String()
}
