package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

var (
	ist = time.FixedZone("IST", 5*3600+1800)
	now = time.Date(2026, 3, 18, 15, 30, 0, 0, ist) // Wednesday
)

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func bill(daysAgo int, final string, status domain.PaymentStatus, method domain.PaymentMethod) domain.Bill {
	return domain.Bill{
		FinalAmount:   amt(final),
		PaymentStatus: status,
		PaymentMethod: method,
		CreatedAt:     now.AddDate(0, 0, -daysAgo),
	}
}

func TestValuationAndLowStock(t *testing.T) {
	items := []domain.Item{
		{Code: "A", PurchasePrice: amt("10"), SellingPrice: amt("15"), Quantity: 4},
		{Code: "B", PurchasePrice: amt("2.5"), SellingPrice: amt("4"), Quantity: 10},
		{Code: "C", PurchasePrice: amt("100"), SellingPrice: amt("150"), Quantity: 0},
	}
	invested, potential := Valuation(items)
	assert.True(t, invested.Equal(amt("65")))
	assert.True(t, potential.Equal(amt("100")))

	low := LowStock(items)
	require.Len(t, low, 2)
	assert.Equal(t, "C", low[0].Code)
	assert.Equal(t, "A", low[1].Code)
	assert.Equal(t, "4 pcs", low[1].StockDisplay)
}

func TestSummarizeWindows(t *testing.T) {
	bills := []domain.Bill{
		bill(0, "1350", domain.PaymentPaid, domain.PaymentCash),
		bill(0, "420", domain.PaymentPending, ""),
		bill(0, "-200", domain.PaymentPaid, domain.PaymentCash),
		bill(3, "300", domain.PaymentPaid, domain.PaymentOnline),
		bill(40, "999", domain.PaymentPaid, domain.PaymentCash),
	}

	today := Summarize(nil, bills, domain.WindowToday, now, ist)
	assert.Equal(t, 3, today.BillCount)
	assert.True(t, today.TotalSales.Equal(amt("1970")))
	assert.True(t, today.CashCollected.Equal(amt("1550")))
	assert.True(t, today.PendingUdhaar.Equal(amt("420")))

	week := Summarize(nil, bills, domain.WindowWeek, now, ist)
	assert.Equal(t, 4, week.BillCount)
	assert.True(t, week.PaidOnline.Equal(amt("300")))
	assert.True(t, week.PaidByCash.Equal(amt("1550")))

	all := Summarize(nil, bills, domain.WindowAll, now, ist)
	assert.Equal(t, 5, all.BillCount)
	assert.True(t, all.TotalSales.Equal(amt("3269")))
}

func TestDailyTrend(t *testing.T) {
	bills := []domain.Bill{
		bill(0, "100", domain.PaymentPaid, domain.PaymentCash),
		bill(0, "50", domain.PaymentPending, ""),
		bill(0, "-80", domain.PaymentPaid, domain.PaymentCash),
		bill(6, "70", domain.PaymentPaid, domain.PaymentCash),
		bill(7, "500", domain.PaymentPaid, domain.PaymentCash),
	}

	trend := DailyTrend(bills, now, ist)
	require.Len(t, trend, 7)
	assert.Equal(t, "2026-03-12", trend[0].Date)
	assert.Equal(t, "Thu", trend[0].Label)
	assert.True(t, trend[0].Sales.Equal(amt("70")))
	assert.Equal(t, "Wed", trend[6].Label)
	assert.True(t, trend[6].Sales.Equal(amt("150")))
	assert.True(t, trend[3].Sales.IsZero())
}

func TestWindowStart(t *testing.T) {
	start, ok := WindowStart(domain.WindowMonth, now, ist)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, ist), start)

	_, ok = WindowStart(domain.WindowAll, now, ist)
	assert.False(t, ok)

	earliest, ok := EarliestNeeded(domain.WindowToday, now, ist)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, ist), earliest)
}

func TestDayStatsAndOutstanding(t *testing.T) {
	bills := []domain.Bill{
		{FinalAmount: amt("500"), PaymentStatus: domain.PaymentPaid, PaymentMethod: domain.PaymentCash,
			Items: []domain.BillItem{{Quantity: 2}, {Quantity: 1}}},
		{FinalAmount: amt("300"), PaymentStatus: domain.PaymentPaid, PaymentMethod: domain.PaymentOnline,
			Items: []domain.BillItem{{Quantity: 1}}},
		{FinalAmount: amt("420"), PaymentStatus: domain.PaymentPending,
			Items: []domain.BillItem{{Quantity: 4}}},
		{FinalAmount: amt("-100"), PaymentStatus: domain.PaymentPaid, PaymentMethod: domain.PaymentCash,
			Items: []domain.BillItem{{Quantity: -1}}},
	}

	stats := DayStats(bills)
	assert.Equal(t, 4, stats.BillCount)
	assert.Equal(t, 9, stats.ItemsCount)
	assert.True(t, stats.Total.Equal(amt("1320")))
	assert.True(t, stats.Cash.Equal(amt("600")))
	assert.True(t, stats.Online.Equal(amt("300")))
	assert.True(t, stats.Udhaar.Equal(amt("420")))

	total, count := Outstanding(bills)
	assert.Equal(t, 1, count)
	assert.True(t, total.Equal(amt("420")))
}
