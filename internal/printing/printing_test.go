package printing

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

var testShop = Shop{
	Name:       "Sakhi Collections",
	Tagline:    "Retail Invoice",
	Address:    "Opposite State Bank of India, Near Ambika Mata Mandir",
	ShareBrand: "StockFlow",
	Location:   time.UTC,
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func saleBill() domain.Bill {
	return domain.Bill{
		ID:             "1a2b3c4d-0000-4000-8000-000000000000",
		TotalAmount:    d("1500"),
		DiscountAmount: d("150"),
		FinalAmount:    d("1350"),
		PaymentStatus:  domain.PaymentPaid,
		PaymentMethod:  domain.PaymentCash,
		CreatedAt:      time.Date(2026, 3, 18, 10, 5, 0, 0, time.UTC),
		Items: []domain.BillItem{
			{ItemCode: "AB12CD", ItemName: "Cotton Kurti", Quantity: 3, PriceAtSale: d("500")},
		},
	}
}

func TestReceiptText(t *testing.T) {
	out := ReceiptText(testShop, saleBill())

	assert.Contains(t, out, "SAKHI COLLECTIONS")
	assert.Contains(t, out, "Retail Invoice")
	assert.Contains(t, out, "Bill #: 1A2B3C4D")
	assert.Contains(t, out, "18 Mar 2026 10:05")
	assert.Contains(t, out, "Cotton Kurti")
	assert.Contains(t, out, "₹1500.00")
	assert.Contains(t, out, "-₹150.00")
	assert.Contains(t, out, "₹1350.00")
	assert.Contains(t, out, "Visit Again")
}

func TestReceiptTextReturnShowsAbsoluteAmounts(t *testing.T) {
	bill := saleBill()
	bill.IsReturn = true
	bill.TotalAmount = d("-1000")
	bill.DiscountAmount = decimal.Zero
	bill.FinalAmount = d("-1000")
	bill.Items[0].Quantity = -2

	out := ReceiptText(testShop, bill)
	assert.Contains(t, out, "RETURN")
	assert.Contains(t, out, "₹1000.00")
	assert.NotContains(t, out, "Discount:")
	assert.NotContains(t, out, "-₹1000")
}

func TestReceiptEscPosFraming(t *testing.T) {
	out := ReceiptEscPos(testShop, saleBill())
	require.True(t, bytes.HasPrefix(out, []byte{0x1b, 0x40}))
	require.True(t, bytes.HasSuffix(out, []byte{0x1d, 0x56, 0x41, 0x10}))
	assert.Contains(t, string(out), "Rs.1350.00")
}

func TestReceiptHTMLEscapesInput(t *testing.T) {
	bill := saleBill()
	bill.Items[0].ItemName = "<script>alert(1)</script>"
	out, err := ReceiptHTML(testShop, bill)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestShareText(t *testing.T) {
	out := ShareText("StockFlow", saleBill())
	want := "*StockFlow Bill*\n\nCotton Kurti x3 = ₹1500\n\nSubtotal: ₹1500\nDiscount: ₹150\n*Total: ₹1350*"
	assert.Equal(t, want, out)
}

func TestReminderAndWhatsAppLink(t *testing.T) {
	bill := saleBill()
	bill.FinalAmount = d("420")
	bill.PaymentStatus = domain.PaymentPending

	msg := ReminderText(testShop, bill)
	assert.True(t, strings.HasPrefix(msg, "Hello Customer,"))
	assert.Contains(t, msg, "*₹420*")
	assert.Contains(t, msg, "18 Mar at Sakhi Collections")

	link := WhatsAppLink("91", "+91 98200-11111", "hi there")
	assert.Equal(t, "https://wa.me/919820011111?text=hi%20there", link)
	assert.Equal(t, "https://wa.me/919820011111?text=x", WhatsAppLink("91", "98200 11111", "x"))
	assert.Equal(t, "https://wa.me/?text=x", WhatsAppLink("91", "", "x"))
}

func TestLabelsPDF(t *testing.T) {
	item := domain.Item{Code: "AB12CD", Name: "Printed Cotton Kurti Long", SellingPrice: d("500"), PiecesPerBox: 6}
	out, err := LabelsPDF(item, 4)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = LabelsPDF(item, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	assert.Equal(t, "Printed Cotton ...", labelName(item.Name))
	assert.Equal(t, "Short", labelName("Short"))
}

func TestReceiptPDF(t *testing.T) {
	out, err := ReceiptPDF(testShop, saleBill())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
