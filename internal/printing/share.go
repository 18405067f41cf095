package printing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"stockflow/backend/internal/domain"
)

// ShareText is the bill summary sent over WhatsApp. WhatsApp renders *x* as bold.
func ShareText(brand string, bill domain.Bill) string {
	if brand == "" {
		brand = "StockFlow"
	}
	items := make([]string, 0, len(bill.Items))
	for _, item := range bill.Items {
		qty := item.Quantity
		if qty < 0 {
			qty = -qty
		}
		items = append(items, fmt.Sprintf("%s x%d = ₹%s", item.ItemName, qty, plain(item.LineAmount())))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s Bill*\n\n", brand)
	if bill.IsReturn {
		b.WriteString("_Return_\n\n")
	}
	b.WriteString(strings.Join(items, "\n"))
	fmt.Fprintf(&b, "\n\nSubtotal: ₹%s\nDiscount: ₹%s\n*Total: ₹%s*", plain(bill.TotalAmount), plain(bill.DiscountAmount), plain(bill.FinalAmount))
	return b.String()
}

// ReminderText is the gentle payment reminder for a pending udhaar bill.
func ReminderText(shop Shop, bill domain.Bill) string {
	name := strings.TrimSpace(bill.CustomerName)
	if name == "" {
		name = "Customer"
	}
	date := bill.CreatedAt.In(shop.loc()).Format("02 Jan")
	return fmt.Sprintf("Hello %s,\n\nThis is a gentle reminder regarding your pending payment of *₹%s* for purchase made on %s at %s.\n\nPlease pay at your earliest convenience.\n\nThank you!",
		name, plain(bill.FinalAmount), date, shop.Name)
}

// WhatsAppLink builds a wa.me deep link. An empty phone opens the contact picker.
func WhatsAppLink(countryCode, phone, text string) string {
	digits := DigitsOnly(phone)
	if digits != "" && countryCode != "" && !(len(digits) > 10 && strings.HasPrefix(digits, countryCode)) {
		digits = countryCode + digits
	}
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func plain(d decimal.Decimal) string {
	return d.Abs().String()
}
