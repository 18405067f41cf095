package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stockflow/backend/internal/cart"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/pack"
	"stockflow/backend/internal/xid"
)

// cartSession guards one cart. Lock order is cartsMu then mu; nothing
// acquires cartsMu while holding mu. discarded is set under both locks when
// the session leaves the map, so holders of a stale pointer see it gone.
type cartSession struct {
	mu        sync.Mutex
	id        string
	cart      *cart.Cart
	updatedAt time.Time
	discarded bool
}

func (s *Service) OpenCart(ctx context.Context, req domain.OpenCartRequest) (domain.CartView, error) {
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	mode, err := cart.ParseMode(req.Mode)
	if err != nil {
		return domain.CartView{}, err
	}

	sess := &cartSession{
		id:        xid.New(),
		cart:      cart.New(mode),
		updatedAt: s.now(),
	}

	s.cartsMu.Lock()
	s.evictIdleLocked(s.now())
	s.carts[sess.id] = sess
	s.cartsMu.Unlock()

	return cartView(sess.id, sess.cart), nil
}

func (s *Service) GetCart(_ context.Context, id string) (domain.CartView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.discarded {
		return domain.CartView{}, cartNotFound(id)
	}
	return cartView(sess.id, sess.cart), nil
}

func (s *Service) DiscardCart(_ context.Context, id string) error {
	s.cartsMu.Lock()
	defer s.cartsMu.Unlock()

	sess, ok := s.carts[id]
	if !ok {
		return cartNotFound(id)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.cart.State() == cart.StateSubmitting {
		return domain.ErrCheckoutInProgress
	}
	sess.discarded = true
	delete(s.carts, id)
	return nil
}

// AddToCart adds quantity units of the chosen pack option. A pack unit is
// piecesPerBox pieces; quantity defaults to one unit.
func (s *Service) AddToCart(ctx context.Context, id string, req domain.AddCartLineRequest) (domain.CartView, error) {
	req.ItemCode = normalizeCode(req.ItemCode)
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	units := 1
	if raw := strings.TrimSpace(req.Quantity.String()); raw != "" {
		n, err := cart.ParseQuantity(raw)
		if err != nil {
			return domain.CartView{}, err
		}
		units = n
	}

	item, err := s.lookupItem(ctx, req.ItemCode)
	if err != nil {
		return domain.CartView{}, err
	}
	perUnit, err := pack.Resolve(req.Choice, item.PiecesPerBox)
	if err != nil {
		return domain.CartView{}, err
	}

	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.AddLine(*item, perUnit*units)
	})
}

func (s *Service) UpdateCartLine(_ context.Context, id string, itemID string, req domain.UpdateCartLineRequest) (domain.CartView, error) {
	qty, err := cart.ParseQuantity(req.Quantity.String())
	if err != nil {
		return domain.CartView{}, err
	}
	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.UpdateLineQuantity(itemID, qty)
	})
}

func (s *Service) RemoveCartLine(_ context.Context, id string, itemID string) (domain.CartView, error) {
	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.RemoveLine(itemID)
	})
}

func (s *Service) SetCartDiscount(_ context.Context, id string, req domain.CartDiscountRequest) (domain.CartView, error) {
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.SetDiscount(cart.Discount{Kind: cart.DiscountKind(req.Kind), Value: req.Value})
	})
}

func (s *Service) SetCartMode(_ context.Context, id string, req domain.CartModeRequest) (domain.CartView, error) {
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	mode, err := cart.ParseMode(req.Mode)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.SetMode(mode)
	})
}

func (s *Service) SetCartCustomer(_ context.Context, id string, req domain.CartCustomerRequest) (domain.CartView, error) {
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	return s.mutateCart(id, func(c *cart.Cart) error {
		return c.SetCustomer(cart.Customer{Name: req.Name, Phone: req.Phone, Credit: req.Credit})
	})
}

// Checkout completes the sale held in cart id. The cart is validated under
// its lock, then the bill and stock deltas are persisted in one repository
// transaction. On success the cart is cleared; on failure it stays intact.
func (s *Service) Checkout(ctx context.Context, id string, req domain.CheckoutRequest) (domain.BillSummary, error) {
	if err := s.check(req); err != nil {
		return domain.BillSummary{}, err
	}
	sess, err := s.session(id)
	if err != nil {
		return domain.BillSummary{}, err
	}

	draft, err := s.prepareCheckout(ctx, sess, req)
	if err != nil {
		s.checkoutFailed(ctx, id, err)
		return domain.BillSummary{}, err
	}

	bill, err := s.repo.CreateBill(ctx, draft)

	sess.mu.Lock()
	if err != nil {
		sess.cart.Fail()
	} else {
		sess.cart.Complete()
	}
	sess.updatedAt = s.now()
	sess.mu.Unlock()

	if err != nil {
		s.checkoutFailed(ctx, id, err)
		return domain.BillSummary{}, err
	}

	codes := make([]string, 0, len(bill.Items))
	for _, line := range bill.Items {
		codes = append(codes, line.ItemCode)
	}
	s.invalidate(ctx, codes...)
	s.metrics.BillCreated(bill.IsReturn, string(bill.PaymentStatus))
	s.logAudit(ctx, "bill_create", "bill", bill.ID,
		fmt.Sprintf("final=%s,status=%s,method=%s,return=%t,lines=%d", bill.FinalAmount, bill.PaymentStatus, bill.PaymentMethod, bill.IsReturn, len(bill.Items)))

	return s.summary(*bill), nil
}

// prepareCheckout applies checkout overrides, refreshes line snapshots from
// the store, builds the draft and moves the cart into Submitting.
func (s *Service) prepareCheckout(ctx context.Context, sess *cartSession, req domain.CheckoutRequest) (domain.BillDraft, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	c := sess.cart

	if sess.discarded {
		return domain.BillDraft{}, cartNotFound(sess.id)
	}
	if c.State() == cart.StateSubmitting {
		return domain.BillDraft{}, domain.ErrCheckoutInProgress
	}
	if req.CustomerName != nil || req.CustomerPhone != nil || req.Credit != nil {
		cust := c.Customer()
		if req.CustomerName != nil {
			cust.Name = *req.CustomerName
		}
		if req.CustomerPhone != nil {
			cust.Phone = *req.CustomerPhone
		}
		if req.Credit != nil {
			cust.Credit = *req.Credit
		}
		if err := c.SetCustomer(cust); err != nil {
			return domain.BillDraft{}, err
		}
	}

	for _, line := range c.Lines() {
		fresh, err := s.repo.GetItemByID(ctx, line.Item.ID)
		if err != nil {
			return domain.BillDraft{}, fmt.Errorf("item %s: %w", line.Item.Code, err)
		}
		c.RefreshItem(*fresh)
	}

	draft, err := c.Prepare(req.PaymentMethod)
	if err != nil {
		return domain.BillDraft{}, err
	}
	if err := c.BeginSubmit(); err != nil {
		return domain.BillDraft{}, err
	}

	draft.Bill.ID = xid.New()
	draft.Bill.ShareID = xid.New()
	draft.Bill.CreatedAt = s.now().UTC()
	draft.Bill.CreatedBy = actorName(ctx)
	sess.updatedAt = s.now()
	return draft, nil
}

func (s *Service) checkoutFailed(ctx context.Context, cartID string, err error) {
	code := domain.ErrorCode(err)
	s.metrics.CheckoutFailed(code)
	ctx = s.log.WithFields(ctx, map[string]any{"cart_id": cartID, "code": code})
	if code == "BACKEND_UNAVAILABLE" {
		s.log.Error(ctx, "checkout failed", err)
		return
	}
	s.log.Info(ctx, "checkout rejected: "+err.Error())
}

func (s *Service) mutateCart(id string, fn func(c *cart.Cart) error) (domain.CartView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.discarded {
		return domain.CartView{}, cartNotFound(id)
	}
	if err := fn(sess.cart); err != nil {
		return domain.CartView{}, err
	}
	sess.updatedAt = s.now()
	return cartView(sess.id, sess.cart), nil
}

func (s *Service) session(id string) (*cartSession, error) {
	s.cartsMu.Lock()
	defer s.cartsMu.Unlock()

	s.evictIdleLocked(s.now())
	sess, ok := s.carts[id]
	if !ok {
		return nil, cartNotFound(id)
	}
	return sess, nil
}

func cartNotFound(id string) error {
	return fmt.Errorf("cart %s: %w", id, domain.ErrNotFound)
}

// evictIdleLocked drops carts untouched for longer than cartIdle. Sessions
// that are mid-checkout or locked by another request are skipped.
func (s *Service) evictIdleLocked(now time.Time) {
	for id, sess := range s.carts {
		if !sess.mu.TryLock() {
			continue
		}
		idle := now.Sub(sess.updatedAt) > s.cartIdle && sess.cart.State() != cart.StateSubmitting
		if idle {
			sess.discarded = true
			delete(s.carts, id)
		}
		sess.mu.Unlock()
	}
}

func cartView(id string, c *cart.Cart) domain.CartView {
	totals := c.Totals()
	discount := c.Discount()
	customer := c.Customer()

	lines := make([]domain.CartLineView, 0, c.Len())
	for _, line := range c.Lines() {
		view := domain.CartLineView{
			ItemID:       line.Item.ID,
			ItemCode:     line.Item.Code,
			ItemName:     line.Item.Name,
			Quantity:     line.Quantity,
			PiecesPerBox: pack.Normalize(line.Item.PiecesPerBox),
			UnitPrice:    line.Item.SellingPrice,
			LineAmount:   line.Amount(),
		}
		if pack.IsPack(line.Item.PiecesPerBox) {
			view.PackSummary = pack.Display(line.Quantity, line.Item.PiecesPerBox)
		}
		lines = append(lines, view)
	}

	return domain.CartView{
		ID:            id,
		Mode:          string(c.Mode()),
		State:         string(c.State()),
		Lines:         lines,
		DiscountKind:  string(discount.Kind),
		DiscountValue: discount.Value,
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		Credit:        customer.Credit,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Final:         totals.Final,
	}
}
