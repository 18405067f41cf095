package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("STOCKFLOW_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOCKFLOW_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, Migrate(ctx, s.DB(), "up"))
	return s
}

func seedItem(t *testing.T, s *Store, qty int) *domain.Item {
	t.Helper()
	ctx := context.Background()
	code := fmt.Sprintf("IT%d", time.Now().UnixNano()%1_000_000_000)
	item, err := s.CreateItem(ctx, domain.Item{
		Code:          code,
		Name:          "Integration Kurti",
		SellingPrice:  decimal.NewFromInt(500),
		PurchasePrice: decimal.NewFromInt(320),
		PricePerPiece: decimal.NewFromInt(500),
		Quantity:      qty,
		PiecesPerBox:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bill_items WHERE item_id = $1`, item.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bills WHERE id NOT IN (SELECT bill_id FROM bill_items)`)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, item.ID)
	})
	return item
}

func draftFor(item *domain.Item, qty int) domain.BillDraft {
	amount := item.SellingPrice.Mul(decimal.NewFromInt(int64(qty)))
	return domain.BillDraft{
		Bill: domain.Bill{
			TotalAmount:   amount,
			FinalAmount:   amount,
			PaymentStatus: domain.PaymentPaid,
			PaymentMethod: domain.PaymentCash,
			Items: []domain.BillItem{
				{ItemID: item.ID, ItemCode: item.Code, ItemName: item.Name, Quantity: qty, PriceAtSale: item.SellingPrice},
			},
		},
		Deltas: []domain.StockDelta{{ItemID: item.ID, Delta: -qty}},
	}
}

func TestCreateBillAppliesStockAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	item := seedItem(t, s, 10)

	bill, err := s.CreateBill(ctx, draftFor(item, 3))
	require.NoError(t, err)

	got, err := s.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.True(t, got.FinalAmount.Equal(decimal.NewFromInt(1500)))

	after, err := s.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Quantity)

	_, err = s.CreateBill(ctx, draftFor(item, 8))
	require.ErrorIs(t, err, store.ErrStockExceeded)

	after, err = s.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Quantity)
}

func TestConcurrentBillsDoNotOversell(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	item := seedItem(t, s, 3)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateBill(ctx, draftFor(item, 1))
		}()
	}
	wg.Wait()

	after, err := s.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Quantity, 0)
}

func TestSettleBillOnlyOnce(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	item := seedItem(t, s, 5)

	draft := draftFor(item, 1)
	draft.Bill.PaymentStatus = domain.PaymentPending
	draft.Bill.PaymentMethod = ""
	draft.Bill.CustomerName = "Asha"
	draft.Bill.CustomerPhone = "9820011111"
	bill, err := s.CreateBill(ctx, draft)
	require.NoError(t, err)

	settled, err := s.SettleBill(ctx, bill.ID, domain.PaymentOnline, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, settled.PaymentStatus)
	require.NotNil(t, settled.SettledAt)

	_, err = s.SettleBill(ctx, bill.ID, domain.PaymentCash, time.Now())
	assert.ErrorIs(t, err, store.ErrNotPending)
}
