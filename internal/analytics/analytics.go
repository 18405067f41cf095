// Package analytics computes read-only rollups over items and bills.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/pack"
)

const TrendDays = 7

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// WindowStart returns the inclusive lower bound of window. ok is false for
// the unbounded "all" window.
func WindowStart(window domain.AnalyticsWindow, now time.Time, loc *time.Location) (start time.Time, ok bool) {
	today := StartOfDay(now, loc)
	switch window {
	case domain.WindowToday:
		return today, true
	case domain.WindowWeek:
		return today.AddDate(0, 0, -(TrendDays - 1)), true
	case domain.WindowMonth:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), true
	default:
		return time.Time{}, false
	}
}

// EarliestNeeded is the lower bound of bills Summarize needs for window,
// covering both the window itself and the daily trend.
func EarliestNeeded(window domain.AnalyticsWindow, now time.Time, loc *time.Location) (time.Time, bool) {
	trendStart := StartOfDay(now, loc).AddDate(0, 0, -(TrendDays - 1))
	start, ok := WindowStart(window, now, loc)
	if !ok {
		return time.Time{}, false
	}
	if trendStart.Before(start) {
		return trendStart, true
	}
	return start, true
}

func Valuation(items []domain.Item) (invested, potential decimal.Decimal) {
	invested, potential = decimal.Zero, decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		invested = invested.Add(item.PurchasePrice.Mul(qty))
		potential = potential.Add(item.SellingPrice.Mul(qty))
	}
	return invested, potential
}

func LowStock(items []domain.Item) []domain.ItemView {
	low := make([]domain.ItemView, 0)
	for _, item := range items {
		if item.Quantity < domain.LowStockThreshold {
			low = append(low, View(item))
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		if low[i].Quantity != low[j].Quantity {
			return low[i].Quantity < low[j].Quantity
		}
		return low[i].Code < low[j].Code
	})
	return low
}

func View(item domain.Item) domain.ItemView {
	return domain.ItemView{
		Item:         item,
		StockDisplay: pack.Display(item.Quantity, item.PiecesPerBox),
		LowStock:     item.Quantity < domain.LowStockThreshold,
	}
}

// Summarize builds the analytics report. bills may include bills outside the
// window; they only count toward the daily trend.
func Summarize(items []domain.Item, bills []domain.Bill, window domain.AnalyticsWindow, now time.Time, loc *time.Location) domain.AnalyticsReport {
	report := domain.AnalyticsReport{
		Window:        window,
		TotalSales:    decimal.Zero,
		CashCollected: decimal.Zero,
		PendingUdhaar: decimal.Zero,
		PaidByCash:    decimal.Zero,
		PaidOnline:    decimal.Zero,
		ItemCount:     len(items),
	}
	report.InvestedValue, report.PotentialValue = Valuation(items)
	report.LowStockItems = LowStock(items)
	report.LowStockCount = len(report.LowStockItems)

	start, bounded := WindowStart(window, now, loc)
	for _, bill := range bills {
		if bounded && bill.CreatedAt.Before(start) {
			continue
		}
		amount := bill.FinalAmount.Abs()
		report.BillCount++
		report.TotalSales = report.TotalSales.Add(amount)
		switch bill.PaymentStatus {
		case domain.PaymentPending:
			report.PendingUdhaar = report.PendingUdhaar.Add(amount)
		case domain.PaymentPaid:
			report.CashCollected = report.CashCollected.Add(amount)
			if bill.PaymentMethod == domain.PaymentOnline {
				report.PaidOnline = report.PaidOnline.Add(amount)
			} else {
				report.PaidByCash = report.PaidByCash.Add(amount)
			}
		}
	}

	report.DailyTrend = DailyTrend(bills, now, loc)
	return report
}

// DailyTrend sums positive final amounts per calendar day for the last seven
// days, oldest first.
func DailyTrend(bills []domain.Bill, now time.Time, loc *time.Location) []domain.TrendPoint {
	today := StartOfDay(now, loc)
	points := make([]domain.TrendPoint, TrendDays)
	for i := 0; i < TrendDays; i++ {
		day := today.AddDate(0, 0, i-(TrendDays-1))
		points[i] = domain.TrendPoint{
			Date:  day.Format("2006-01-02"),
			Label: day.Weekday().String()[:3],
			Sales: decimal.Zero,
		}
	}
	first := today.AddDate(0, 0, -(TrendDays - 1))
	for _, bill := range bills {
		if !bill.FinalAmount.IsPositive() {
			continue
		}
		created := bill.CreatedAt.In(today.Location())
		if created.Before(first) || !created.Before(today.AddDate(0, 0, 1)) {
			continue
		}
		for i := range points {
			dayStart := first.AddDate(0, 0, i)
			if !created.Before(dayStart) && created.Before(dayStart.AddDate(0, 0, 1)) {
				points[i].Sales = points[i].Sales.Add(bill.FinalAmount)
				break
			}
		}
	}
	return points
}

// DayStats splits a day's bills into cash, online and udhaar totals.
func DayStats(bills []domain.Bill) domain.SalesDayStats {
	stats := domain.SalesDayStats{
		Total:  decimal.Zero,
		Cash:   decimal.Zero,
		Online: decimal.Zero,
		Udhaar: decimal.Zero,
	}
	for _, bill := range bills {
		amount := bill.FinalAmount.Abs()
		stats.BillCount++
		stats.Total = stats.Total.Add(amount)
		switch {
		case bill.PaymentStatus == domain.PaymentPending:
			stats.Udhaar = stats.Udhaar.Add(amount)
		case bill.PaymentMethod == domain.PaymentOnline:
			stats.Online = stats.Online.Add(amount)
		default:
			stats.Cash = stats.Cash.Add(amount)
		}
		for _, item := range bill.Items {
			if item.Quantity < 0 {
				stats.ItemsCount -= item.Quantity
			} else {
				stats.ItemsCount += item.Quantity
			}
		}
	}
	return stats
}

// Outstanding sums |final| over pending bills.
func Outstanding(bills []domain.Bill) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, bill := range bills {
		if bill.PaymentStatus != domain.PaymentPending {
			continue
		}
		total = total.Add(bill.FinalAmount.Abs())
		count++
	}
	return total, count
}
