// Package cart holds the in-progress sale for one checkout session and
// derives its monetary totals.
package cart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stockflow/backend/internal/domain"
)

type Mode string

const (
	ModeSale   Mode = "sale"
	ModeReturn Mode = "return"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSale, "":
		return ModeSale, nil
	case ModeReturn:
		return ModeReturn, nil
	}
	return "", fmt.Errorf("unknown cart mode %q: %w", raw, domain.ErrInvalidInput)
}

type State string

const (
	StateEmpty      State = "empty"
	StateBuilding   State = "building"
	StateSubmitting State = "submitting"
)

type DiscountKind string

const (
	DiscountNone    DiscountKind = "none"
	DiscountFlat    DiscountKind = "flat"
	DiscountPercent DiscountKind = "percent"
	DiscountTarget  DiscountKind = "target"
)

// Discount is either rate based (flat amount or percent of subtotal) or a
// target final amount typed by the operator.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

type Line struct {
	Item     domain.Item
	Quantity int
}

func (l Line) Amount() decimal.Decimal {
	return l.Item.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

type Customer struct {
	Name   string
	Phone  string
	Credit bool
}

// Cart is not safe for concurrent use; callers serialize access per session.
type Cart struct {
	mode     Mode
	state    State
	lines    []Line
	discount Discount
	customer Customer
}

var hundred = decimal.NewFromInt(100)

func New(mode Mode) *Cart {
	if mode != ModeReturn {
		mode = ModeSale
	}
	return &Cart{mode: mode, state: StateEmpty, discount: Discount{Kind: DiscountNone}}
}

func (c *Cart) Mode() Mode { return c.mode }
func (c *Cart) State() State { return c.state }
func (c *Cart) Discount() Discount { return c.discount }
func (c *Cart) Customer() Customer { return c.customer }
func (c *Cart) IsReturn() bool { return c.mode == ModeReturn }
func (c *Cart) Len() int { return len(c.lines) }
func (c *Cart) Lines() []Line { return append([]Line(nil), c.lines...) }
func (c *Cart) submitting() bool { return c.state == StateSubmitting }
func (c *Cart) lineIndex(id string) int { return indexOf(c.lines, id) }

// AddLine appends quantity pieces of item, merging with an existing line for
// the same item. In sale mode the merged quantity may not exceed stock.
func (c *Cart) AddLine(item domain.Item, quantity int) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", domain.ErrInvalidQuantity)
	}

	idx := c.lineIndex(item.ID)
	total := quantity
	if idx >= 0 {
		total += c.lines[idx].Quantity
	}
	if c.mode == ModeSale && total > item.Quantity {
		return stockExceeded(item)
	}

	if idx >= 0 {
		c.lines[idx].Item = item
		c.lines[idx].Quantity = total
	} else {
		c.lines = append(c.lines, Line{Item: item, Quantity: quantity})
	}
	c.state = StateBuilding
	return nil
}

// RefreshItem replaces the catalog snapshot held by the line for item.ID.
func (c *Cart) RefreshItem(item domain.Item) bool {
	idx := c.lineIndex(item.ID)
	if idx < 0 {
		return false
	}
	c.lines[idx].Item = item
	return true
}

func (c *Cart) UpdateLineQuantity(itemID string, quantity int) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, remove the line instead: %w", domain.ErrInvalidQuantity)
	}
	idx := c.lineIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("cart line %s: %w", itemID, domain.ErrNotFound)
	}
	if c.mode == ModeSale && quantity > c.lines[idx].Item.Quantity {
		return stockExceeded(c.lines[idx].Item)
	}
	c.lines[idx].Quantity = quantity
	return nil
}

// RemoveLine drops the line for itemID if present.
func (c *Cart) RemoveLine(itemID string) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	if idx := c.lineIndex(itemID); idx >= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	}
	if len(c.lines) == 0 {
		c.state = StateEmpty
	}
	return nil
}

func (c *Cart) SetMode(mode Mode) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	if mode != ModeSale && mode != ModeReturn {
		return fmt.Errorf("unknown cart mode %q: %w", mode, domain.ErrInvalidInput)
	}
	c.mode = mode
	return nil
}

func (c *Cart) SetDiscount(d Discount) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	switch d.Kind {
	case DiscountNone:
		d.Value = decimal.Zero
	case DiscountFlat, DiscountTarget:
	case DiscountPercent:
		if d.Value.GreaterThan(hundred) {
			return fmt.Errorf("percent discount above 100: %w", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown discount kind %q: %w", d.Kind, domain.ErrInvalidInput)
	}
	if d.Value.IsNegative() {
		return fmt.Errorf("discount value must not be negative: %w", domain.ErrInvalidInput)
	}
	c.discount = d
	return nil
}

func (c *Cart) SetCustomer(cust Customer) error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	cust.Name = strings.TrimSpace(cust.Name)
	cust.Phone = strings.TrimSpace(cust.Phone)
	c.customer = cust
	return nil
}

// Totals derives subtotal, discount and final amount without mutating the cart.
// Discount always lands in [0, subtotal] and is zero in return mode.
func (c *Cart) Totals() Totals {
	subtotal := decimal.Zero
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.Amount())
	}

	discount := decimal.Zero
	if c.mode == ModeSale {
		switch c.discount.Kind {
		case DiscountFlat:
			discount = c.discount.Value
		case DiscountPercent:
			discount = subtotal.Mul(c.discount.Value).Div(hundred).Round(2)
		case DiscountTarget:
			discount = subtotal.Sub(c.discount.Value)
		}
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return Totals{Subtotal: subtotal, Discount: discount, Final: subtotal.Sub(discount)}
}

// Prepare validates the cart for checkout and builds the signed bill plus the
// stock deltas to apply. The cart itself is not modified.
func (c *Cart) Prepare(method domain.PaymentMethod) (domain.BillDraft, error) {
	if len(c.lines) == 0 {
		return domain.BillDraft{}, domain.ErrEmptyCart
	}
	credit := c.customer.Credit && c.mode == ModeSale
	if credit && (c.customer.Name == "" || c.customer.Phone == "") {
		return domain.BillDraft{}, domain.ErrMissingCustomerDetails
	}
	if c.mode == ModeSale {
		for _, line := range c.lines {
			if line.Quantity > line.Item.Quantity {
				return domain.BillDraft{}, stockExceeded(line.Item)
			}
		}
	}

	sign := 1
	if c.mode == ModeReturn {
		sign = -1
	}
	signDec := decimal.NewFromInt(int64(sign))
	totals := c.Totals()

	bill := domain.Bill{
		TotalAmount:    totals.Subtotal.Mul(signDec),
		DiscountAmount: totals.Discount,
		FinalAmount:    totals.Final.Mul(signDec),
		CustomerName:   c.customer.Name,
		CustomerPhone:  c.customer.Phone,
		PaymentStatus:  domain.PaymentPaid,
		IsReturn:       c.mode == ModeReturn,
		Items:          make([]domain.BillItem, 0, len(c.lines)),
	}
	if credit {
		bill.PaymentStatus = domain.PaymentPending
	} else {
		if method == "" {
			method = domain.PaymentCash
		}
		if !method.Valid() {
			return domain.BillDraft{}, fmt.Errorf("unknown payment method %q: %w", method, domain.ErrInvalidInput)
		}
		bill.PaymentMethod = method
	}

	deltas := make([]domain.StockDelta, 0, len(c.lines))
	for _, line := range c.lines {
		bill.Items = append(bill.Items, domain.BillItem{
			ItemID:      line.Item.ID,
			ItemCode:    line.Item.Code,
			ItemName:    line.Item.Name,
			Quantity:    sign * line.Quantity,
			PriceAtSale: line.Item.SellingPrice,
		})
		deltas = append(deltas, domain.StockDelta{ItemID: line.Item.ID, Delta: -sign * line.Quantity})
	}

	return domain.BillDraft{Bill: bill, Deltas: deltas}, nil
}

// BeginSubmit moves the cart into Submitting; mutations fail until Complete or Fail.
func (c *Cart) BeginSubmit() error {
	if c.submitting() {
		return domain.ErrCheckoutInProgress
	}
	if len(c.lines) == 0 {
		return domain.ErrEmptyCart
	}
	c.state = StateSubmitting
	return nil
}

// Complete clears lines, discount and customer after a persisted checkout.
func (c *Cart) Complete() {
	c.lines = nil
	c.discount = Discount{Kind: DiscountNone}
	c.customer = Customer{}
	c.state = StateEmpty
}

// Fail returns a submitting cart to Building with its lines intact.
func (c *Cart) Fail() {
	if len(c.lines) == 0 {
		c.state = StateEmpty
		return
	}
	c.state = StateBuilding
}

// ParseQuantity parses an operator-typed quantity.
func ParseQuantity(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number: %w", raw, domain.ErrInvalidQuantity)
	}
	if n <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", domain.ErrInvalidQuantity)
	}
	return n, nil
}

func indexOf(lines []Line, itemID string) int {
	for i, line := range lines {
		if line.Item.ID == itemID {
			return i
		}
	}
	return -1
}

func stockExceeded(item domain.Item) error {
	return fmt.Errorf("%w: only %d available for %s", domain.ErrStockExceeded, item.Quantity, item.Code)
}
