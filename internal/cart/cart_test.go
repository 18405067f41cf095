package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

func testItem() domain.Item {
	return domain.Item{
		ID:           "item-1",
		Code:         "AB12CD",
		Name:         "Cotton Kurti",
		SellingPrice: decimal.NewFromInt(500),
		Quantity:     10,
		PiecesPerBox: 1,
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestAddLineMergesSameItem(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 2))
	require.NoError(t, c.AddLine(testItem(), 3))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, StateBuilding, c.State())
}

func TestAddLineStockExceededLeavesCartUnchanged(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 8))

	err := c.AddLine(testItem(), 3)
	require.ErrorIs(t, err, domain.ErrStockExceeded)
	assert.Equal(t, 8, c.Lines()[0].Quantity)

	r := New(ModeReturn)
	require.NoError(t, r.AddLine(testItem(), 8))
	require.NoError(t, r.AddLine(testItem(), 3))
	assert.Equal(t, 11, r.Lines()[0].Quantity)
}

func TestAddLineRejectsNonPositive(t *testing.T) {
	c := New(ModeSale)
	assert.ErrorIs(t, c.AddLine(testItem(), 0), domain.ErrInvalidQuantity)
	assert.Equal(t, StateEmpty, c.State())
}

func TestUpdateLineQuantity(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 1))

	assert.ErrorIs(t, c.UpdateLineQuantity("item-1", 0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, c.UpdateLineQuantity("item-1", -2), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, c.UpdateLineQuantity("item-1", 11), domain.ErrStockExceeded)
	assert.ErrorIs(t, c.UpdateLineQuantity("missing", 1), domain.ErrNotFound)

	require.NoError(t, c.UpdateLineQuantity("item-1", 10))
	assert.Equal(t, 10, c.Lines()[0].Quantity)

	require.NoError(t, c.SetMode(ModeReturn))
	require.NoError(t, c.UpdateLineQuantity("item-1", 25))
}

func TestParseQuantity(t *testing.T) {
	n, err := ParseQuantity(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ParseQuantity("abc")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = ParseQuantity("0")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestRemoveLineEmptiesCart(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 1))
	require.NoError(t, c.RemoveLine("item-1"))
	require.NoError(t, c.RemoveLine("item-1"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, StateEmpty, c.State())
}

func TestTotalsRateDiscounts(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 3))

	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountPercent, Value: dec("10")}))
	tot := c.Totals()
	assert.True(t, tot.Subtotal.Equal(dec("1500")))
	assert.True(t, tot.Discount.Equal(dec("150")))
	assert.True(t, tot.Final.Equal(dec("1350")))

	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountFlat, Value: dec("2000")}))
	tot = c.Totals()
	assert.True(t, tot.Discount.Equal(dec("1500")))
	assert.True(t, tot.Final.IsZero())

	assert.ErrorIs(t, c.SetDiscount(Discount{Kind: DiscountPercent, Value: dec("101")}), domain.ErrInvalidInput)
	assert.ErrorIs(t, c.SetDiscount(Discount{Kind: DiscountFlat, Value: dec("-1")}), domain.ErrInvalidInput)
}

func TestTotalsTargetClamp(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 3))

	for _, target := range []string{"1500", "1500.01", "9999"} {
		require.NoError(t, c.SetDiscount(Discount{Kind: DiscountTarget, Value: dec(target)}))
		tot := c.Totals()
		assert.True(t, tot.Discount.IsZero(), target)
		assert.True(t, tot.Final.Equal(tot.Subtotal), target)
	}
}

func TestTotalsIdempotent(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 3))
	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountPercent, Value: dec("12.5")}))

	first := c.Totals()
	second := c.Totals()
	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.Discount.Equal(second.Discount))
	assert.True(t, first.Final.Equal(second.Final))
}

func TestPrepareTargetScenario(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 3))
	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountTarget, Value: dec("1350")}))

	draft, err := c.Prepare(domain.PaymentCash)
	require.NoError(t, err)
	assert.True(t, draft.Bill.TotalAmount.Equal(dec("1500")))
	assert.True(t, draft.Bill.DiscountAmount.Equal(dec("150")))
	assert.True(t, draft.Bill.FinalAmount.Equal(dec("1350")))
	assert.Equal(t, domain.PaymentPaid, draft.Bill.PaymentStatus)
	assert.Equal(t, domain.PaymentCash, draft.Bill.PaymentMethod)
	require.Len(t, draft.Deltas, 1)
	assert.Equal(t, -3, draft.Deltas[0].Delta)
	assert.Equal(t, 3, draft.Bill.Items[0].Quantity)
}

func TestPrepareReturnScenario(t *testing.T) {
	c := New(ModeReturn)
	require.NoError(t, c.AddLine(testItem(), 2))
	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountFlat, Value: dec("100")}))

	tot := c.Totals()
	assert.True(t, tot.Subtotal.Equal(dec("1000")))
	assert.True(t, tot.Discount.IsZero())
	assert.True(t, tot.Final.Equal(dec("1000")))

	draft, err := c.Prepare("")
	require.NoError(t, err)
	assert.True(t, draft.Bill.TotalAmount.Equal(dec("-1000")))
	assert.True(t, draft.Bill.FinalAmount.Equal(dec("-1000")))
	assert.True(t, draft.Bill.DiscountAmount.IsZero())
	assert.True(t, draft.Bill.IsReturn)
	assert.Equal(t, -2, draft.Bill.Items[0].Quantity)
	assert.Equal(t, 2, draft.Deltas[0].Delta)
}

func TestPreparePreconditions(t *testing.T) {
	c := New(ModeSale)
	_, err := c.Prepare(domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	require.NoError(t, c.AddLine(testItem(), 1))
	require.NoError(t, c.SetCustomer(Customer{Name: "Asha", Credit: true}))
	_, err = c.Prepare(domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrMissingCustomerDetails)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.SetCustomer(Customer{Name: "Asha", Phone: "98200 11111", Credit: true}))
	draft, err := c.Prepare(domain.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, draft.Bill.PaymentStatus)
	assert.Empty(t, draft.Bill.PaymentMethod)
}

func TestPrepareRechecksStockAfterModeSwitch(t *testing.T) {
	c := New(ModeReturn)
	require.NoError(t, c.AddLine(testItem(), 12))
	require.NoError(t, c.SetMode(ModeSale))

	_, err := c.Prepare(domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrStockExceeded)
}

func TestSubmitLifecycle(t *testing.T) {
	c := New(ModeSale)
	require.NoError(t, c.AddLine(testItem(), 1))
	require.NoError(t, c.SetDiscount(Discount{Kind: DiscountFlat, Value: dec("50")}))
	require.NoError(t, c.BeginSubmit())

	assert.ErrorIs(t, c.AddLine(testItem(), 1), domain.ErrCheckoutInProgress)
	assert.ErrorIs(t, c.BeginSubmit(), domain.ErrCheckoutInProgress)

	c.Fail()
	assert.Equal(t, StateBuilding, c.State())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.BeginSubmit())
	c.Complete()
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, DiscountNone, c.Discount().Kind)
	assert.Equal(t, Customer{}, c.Customer())
}
