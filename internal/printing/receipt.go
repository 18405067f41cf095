// Package printing renders bills and items into printable or shareable
// payloads. Delivering them to a printer or messaging app is the caller's job.
package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"stockflow/backend/internal/domain"
)

const (
	ReceiptWidth = 32

	FormatText   = "text"
	FormatHTML   = "html"
	FormatEscPos = "escpos"
	FormatPDF    = "pdf"
)

// Shop carries the store identity printed on receipts and messages.
type Shop struct {
	Name       string
	Tagline    string
	Address    string
	ShareBrand string
	Location   *time.Location
}

func (s Shop) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Amount formats an absolute amount with two decimals, prefixed by currency.
func Amount(currency string, d decimal.Decimal) string {
	return currency + d.Abs().StringFixed(2)
}

type receiptLine struct {
	Name   string
	Detail string
	Qty    int
	Amount string
}

type receiptView struct {
	ShopName    string
	Tagline     string
	Address     string
	Date        string
	Reference   string
	IsReturn    bool
	Customer    string
	Lines       []receiptLine
	Subtotal    string
	HasDiscount bool
	Discount    string
	Total       string
	Pending     bool
}

func newReceiptView(shop Shop, bill domain.Bill, currency string) receiptView {
	view := receiptView{
		ShopName:    shop.Name,
		Tagline:     shop.Tagline,
		Address:     shop.Address,
		Date:        bill.CreatedAt.In(shop.loc()).Format("02 Jan 2006 15:04"),
		Reference:   bill.Reference(),
		IsReturn:    bill.IsReturn,
		Customer:    strings.TrimSpace(bill.CustomerName),
		Subtotal:    Amount(currency, bill.TotalAmount),
		HasDiscount: bill.DiscountAmount.IsPositive(),
		Discount:    "-" + Amount(currency, bill.DiscountAmount),
		Total:       Amount(currency, bill.FinalAmount),
		Pending:     bill.PaymentStatus == domain.PaymentPending,
	}
	for _, item := range bill.Items {
		qty := item.Quantity
		if qty < 0 {
			qty = -qty
		}
		view.Lines = append(view.Lines, receiptLine{
			Name:   item.ItemName,
			Detail: item.ItemCode,
			Qty:    qty,
			Amount: Amount(currency, item.LineAmount()),
		})
	}
	return view
}

// ReceiptLines lays the receipt out for a fixed-width printer.
func ReceiptLines(shop Shop, bill domain.Bill, width int, currency string) []string {
	if width < 24 {
		width = ReceiptWidth
	}
	v := newReceiptView(shop, bill, currency)
	rule := strings.Repeat("-", width)

	lines := []string{center(strings.ToUpper(v.ShopName), width)}
	if v.Tagline != "" {
		lines = append(lines, center(v.Tagline, width))
	}
	for _, part := range wrap(v.Address, width) {
		lines = append(lines, center(part, width))
	}
	lines = append(lines, rule, "Date: "+v.Date, "Bill #: "+v.Reference)
	if v.IsReturn {
		lines = append(lines, center("*** RETURN ***", width))
	}
	if v.Customer != "" {
		lines = append(lines, "Customer: "+v.Customer)
	}
	lines = append(lines, rule, columns("Item", "Qty      Price", width), rule)
	for _, line := range v.Lines {
		lines = append(lines, truncate(line.Name, width))
		lines = append(lines, columns(" "+line.Detail, fmt.Sprintf("%3d %10s", line.Qty, line.Amount), width))
	}
	lines = append(lines, rule, columns("Subtotal:", v.Subtotal, width))
	if v.HasDiscount {
		lines = append(lines, columns("Discount:", v.Discount, width))
	}
	lines = append(lines, columns("Total:", v.Total, width))
	if v.Pending {
		lines = append(lines, columns("Status:", "UDHAAR", width))
	}
	lines = append(lines, rule, center("Thank You", width), center("Visit Again", width))
	return lines
}

func ReceiptText(shop Shop, bill domain.Bill) string {
	return strings.Join(ReceiptLines(shop, bill, ReceiptWidth, "₹"), "\n") + "\n"
}

// ReceiptEscPos wraps the text receipt in ESC/POS init and cut commands.
func ReceiptEscPos(shop Shop, bill domain.Bill) []byte {
	out := []byte{0x1b, 0x40}
	for _, line := range ReceiptLines(shop, bill, ReceiptWidth, "Rs.") {
		out = append(out, []byte(line)...)
		out = append(out, '\n')
	}
	out = append(out, '\n', '\n')
	return append(out, 0x1d, 0x56, 0x41, 0x10)
}

var receiptHTMLTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Bill {{.Reference}}</title>
  <style>
    body { font-family: 'Roboto Mono', monospace; max-width: 300px; margin: 0 auto; padding: 20px; }
    h1 { font-size: 20px; margin: 0; text-transform: uppercase; letter-spacing: 1px; text-align: center; }
    .center { text-align: center; }
    .muted { font-size: 12px; color: #666; }
    table { width: 100%; border-collapse: collapse; font-size: 12px; margin: 12px 0; }
    td, th { padding: 4px 0; border-bottom: 1px dashed #eee; vertical-align: top; }
    .num { text-align: right; }
  </style>
</head>
<body>
  <h1>{{.ShopName}}</h1>
  {{if .Tagline}}<div class="center">{{.Tagline}}</div>{{end}}
  {{if .Address}}<div class="center muted">{{.Address}}</div>{{end}}
  <p>Date: {{.Date}}<br/>Bill #: {{.Reference}}{{if .Customer}}<br/>Customer: {{.Customer}}{{end}}</p>
  {{if .IsReturn}}<p class="center"><strong>RETURN</strong></p>{{end}}
  <table>
    <thead><tr><th style="text-align:left;">Item</th><th class="num">Qty</th><th class="num">Price</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.Name}}<div class="muted">{{.Detail}}</div></td><td class="num">{{.Qty}}</td><td class="num">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>
  <table>
    <tr><td>Subtotal:</td><td class="num">{{.Subtotal}}</td></tr>
    {{if .HasDiscount}}<tr><td>Discount:</td><td class="num">{{.Discount}}</td></tr>{{end}}
    <tr><td><strong>Total:</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
    {{if .Pending}}<tr><td>Status:</td><td class="num">Udhaar</td></tr>{{end}}
  </table>
  <div class="center"><em>Thank You<br/>Visit Again</em></div>
</body>
</html>
`))

func ReceiptHTML(shop Shop, bill domain.Bill) (string, error) {
	var buf bytes.Buffer
	if err := receiptHTMLTmpl.Execute(&buf, newReceiptView(shop, bill, "₹")); err != nil {
		return "", fmt.Errorf("render receipt html: %w", err)
	}
	return buf.String(), nil
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func columns(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

func wrap(s string, width int) []string {
	words := strings.Fields(s)
	var out []string
	current := ""
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			out = append(out, current)
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
