package service

import (
	"context"
	"fmt"
	"strings"

	"stockflow/backend/internal/analytics"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/printing"
)

func (s *Service) GetBill(ctx context.Context, id string) (domain.BillSummary, error) {
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.BillSummary{}, err
	}
	return s.summary(*bill), nil
}

// GetPublicBill serves the shareable invoice link. Only the share id is
// accepted so bill ids cannot be enumerated.
func (s *Service) GetPublicBill(ctx context.Context, shareID string) (domain.Bill, error) {
	bill, err := s.repo.GetBillByShareID(ctx, strings.TrimSpace(shareID))
	if err != nil {
		return domain.Bill{}, err
	}
	bill.CreatedBy = ""
	return *bill, nil
}

// DailySales lists one shop-local day of bills with cash, online and udhaar totals.
func (s *Service) DailySales(ctx context.Context, date string) (domain.SalesDay, error) {
	from := analytics.StartOfDay(s.now(), s.shop.Location)
	if strings.TrimSpace(date) != "" {
		day, err := s.parseDay(date)
		if err != nil {
			return domain.SalesDay{}, err
		}
		from = day
	}
	to := from.AddDate(0, 0, 1)

	bills, err := s.repo.ListBills(ctx, domain.BillFilter{From: &from, To: &to})
	if err != nil {
		return domain.SalesDay{}, err
	}
	return domain.SalesDay{
		Date:  from.Format("2006-01-02"),
		Stats: analytics.DayStats(bills),
		Bills: bills,
	}, nil
}

// ListUdhaar returns pending bills whose customer name or phone contains
// query. The outstanding total always covers every pending bill.
func (s *Service) ListUdhaar(ctx context.Context, query string) (domain.UdhaarList, error) {
	pending, err := s.repo.ListBills(ctx, domain.BillFilter{Status: domain.PaymentPending})
	if err != nil {
		return domain.UdhaarList{}, err
	}
	total, count := analytics.Outstanding(pending)

	q := strings.ToLower(strings.TrimSpace(query))
	matched := make([]domain.Bill, 0, len(pending))
	for _, bill := range pending {
		if q == "" ||
			strings.Contains(strings.ToLower(bill.CustomerName), q) ||
			strings.Contains(strings.ToLower(bill.CustomerPhone), q) {
			matched = append(matched, bill)
		}
	}

	return domain.UdhaarList{Bills: matched, OutstandingTotal: total, PendingCount: count}, nil
}

func (s *Service) SettleUdhaar(ctx context.Context, id string, req domain.SettleRequest) (domain.Bill, error) {
	if err := s.check(req); err != nil {
		return domain.Bill{}, err
	}
	bill, err := s.repo.SettleBill(ctx, strings.TrimSpace(id), req.Method, s.now().UTC())
	if err != nil {
		return domain.Bill{}, err
	}
	s.metrics.Settled(string(req.Method))
	s.logAudit(ctx, "udhaar_settle", "bill", bill.ID, fmt.Sprintf("method=%s,amount=%s", req.Method, bill.FinalAmount.Abs()))
	return *bill, nil
}

func (s *Service) UdhaarReminder(ctx context.Context, id string) (domain.ShareMessage, error) {
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ShareMessage{}, err
	}
	if bill.PaymentStatus != domain.PaymentPending {
		return domain.ShareMessage{}, fmt.Errorf("bill %s: %w", bill.Reference(), domain.ErrNotPending)
	}
	if printing.DigitsOnly(bill.CustomerPhone) == "" {
		return domain.ShareMessage{}, fmt.Errorf("bill %s has no phone: %w", bill.Reference(), domain.ErrMissingCustomerDetails)
	}
	text := printing.ReminderText(s.shop, *bill)
	return domain.ShareMessage{
		Text:        text,
		WhatsAppURL: printing.WhatsAppLink(s.countryCode, bill.CustomerPhone, text),
	}, nil
}

func (s *Service) ShareMessage(ctx context.Context, id string) (domain.ShareMessage, error) {
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ShareMessage{}, err
	}
	text := printing.ShareText(s.shop.ShareBrand, *bill)
	return domain.ShareMessage{
		Text:        text,
		WhatsAppURL: printing.WhatsAppLink(s.countryCode, "", text),
		InvoiceURL:  s.invoiceURL(bill.ShareID),
	}, nil
}

func (s *Service) Receipt(ctx context.Context, id string, format string) (domain.Receipt, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = printing.FormatText
	}
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Receipt{}, err
	}

	out := domain.Receipt{Format: format}
	switch format {
	case printing.FormatText:
		out.ContentType = "text/plain; charset=utf-8"
		out.Body = []byte(printing.ReceiptText(s.shop, *bill))
	case printing.FormatHTML:
		html, err := printing.ReceiptHTML(s.shop, *bill)
		if err != nil {
			return domain.Receipt{}, err
		}
		out.ContentType = "text/html; charset=utf-8"
		out.Body = []byte(html)
	case printing.FormatEscPos:
		out.ContentType = "application/octet-stream"
		out.Body = printing.ReceiptEscPos(s.shop, *bill)
	case printing.FormatPDF:
		pdf, err := printing.ReceiptPDF(s.shop, *bill)
		if err != nil {
			return domain.Receipt{}, err
		}
		out.ContentType = "application/pdf"
		out.Body = pdf
	default:
		return domain.Receipt{}, fmt.Errorf("unknown receipt format %q: %w", format, domain.ErrInvalidInput)
	}
	return out, nil
}

func (s *Service) Analytics(ctx context.Context, window domain.AnalyticsWindow) (domain.AnalyticsReport, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.AnalyticsReport{}, err
	}
	if window == "" {
		window = domain.WindowToday
	}
	if !window.Valid() {
		return domain.AnalyticsReport{}, fmt.Errorf("unknown window %q: %w", window, domain.ErrInvalidInput)
	}

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}

	now := s.now()
	filter := domain.BillFilter{}
	if from, ok := analytics.EarliestNeeded(window, now, s.shop.Location); ok {
		filter.From = &from
	}
	bills, err := s.repo.ListBills(ctx, filter)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}

	return analytics.Summarize(items, bills, window, now, s.shop.Location), nil
}

func (s *Service) summary(bill domain.Bill) domain.BillSummary {
	return domain.BillSummary{
		Bill:      bill,
		Reference: bill.Reference(),
		ShareURL:  s.invoiceURL(bill.ShareID),
	}
}

func (s *Service) invoiceURL(shareID string) string {
	if s.publicBaseURL == "" || shareID == "" {
		return ""
	}
	return s.publicBaseURL + "/api/v1/public/invoices/" + shareID
}
