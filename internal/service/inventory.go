package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stockflow/backend/internal/analytics"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/pack"
	"stockflow/backend/internal/printing"
	"stockflow/backend/internal/xid"
)

const (
	defaultSize    = "M"
	codeAttempts   = 5
	maxSearchLimit = 200
)

func (s *Service) ListItems(ctx context.Context) ([]domain.ItemView, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return views(items), nil
}

// SearchItems matches code, name, brand and supplier code case-insensitively.
func (s *Service) SearchItems(ctx context.Context, query string, limit int) ([]domain.ItemView, error) {
	if limit < 1 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	items, err := s.repo.SearchItems(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return views(items), nil
}

func (s *Service) GetItem(ctx context.Context, code string) (domain.ItemView, error) {
	item, err := s.lookupItem(ctx, code)
	if err != nil {
		return domain.ItemView{}, err
	}
	return analytics.View(*item), nil
}

func (s *Service) PackOptions(ctx context.Context, code string) ([]domain.PackOption, error) {
	item, err := s.lookupItem(ctx, code)
	if err != nil {
		return nil, err
	}
	return pack.Options(item.PiecesPerBox), nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.ItemView, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ItemView{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Make = strings.TrimSpace(req.Make)
	req.Brand = strings.TrimSpace(req.Brand)
	req.SupplierCode = strings.TrimSpace(req.SupplierCode)
	req.Size = strings.TrimSpace(req.Size)
	if req.Size == "" {
		req.Size = defaultSize
	}
	if err := s.check(req); err != nil {
		return domain.ItemView{}, err
	}
	if !req.SellingPrice.IsPositive() || !req.PurchasePrice.IsPositive() {
		return domain.ItemView{}, fmt.Errorf("prices must be positive: %w", domain.ErrInvalidInput)
	}

	ppb := 1
	quantity := req.Quantity
	pricePerPiece := req.SellingPrice
	if req.IsPack {
		ppb = pack.Normalize(req.PiecesPerBox)
		quantity = pack.TotalPieces(req.NumberOfBoxes, ppb, req.Quantity)
		if ppb > 1 {
			if !req.PricePerPiece.IsPositive() {
				return domain.ItemView{}, fmt.Errorf("price per piece is required for multi-piece packs: %w", domain.ErrInvalidInput)
			}
			pricePerPiece = req.PricePerPiece
		}
	}
	if quantity < 1 {
		return domain.ItemView{}, fmt.Errorf("quantity must be greater than 0: %w", domain.ErrInvalidQuantity)
	}

	item := domain.Item{
		ID:            xid.New(),
		Name:          req.Name,
		Make:          req.Make,
		Brand:         req.Brand,
		Size:          req.Size,
		SupplierCode:  req.SupplierCode,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		PricePerPiece: pricePerPiece,
		Quantity:      quantity,
		PiecesPerBox:  ppb,
		CreatedAt:     s.now().UTC(),
	}

	var created *domain.Item
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		item.Code = xid.ItemCode()
		created, err = s.repo.CreateItem(ctx, item)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}
	if err != nil {
		return domain.ItemView{}, err
	}

	s.logAudit(ctx, "item_create", "item", created.Code,
		fmt.Sprintf("name=%s,price=%s,qty=%d,ppb=%d", created.Name, created.SellingPrice, created.Quantity, created.PiecesPerBox))
	return analytics.View(*created), nil
}

func (s *Service) UpdateItem(ctx context.Context, code string, req domain.ItemUpdateRequest) (domain.ItemView, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ItemView{}, err
	}
	if err := s.check(req); err != nil {
		return domain.ItemView{}, err
	}

	code, err := itemCode(code)
	if err != nil {
		return domain.ItemView{}, err
	}
	existing, err := s.repo.GetItemByCode(ctx, code)
	if err != nil {
		return domain.ItemView{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ItemView{}, fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.SellingPrice != nil {
		if !req.SellingPrice.IsPositive() {
			return domain.ItemView{}, fmt.Errorf("selling price must be positive: %w", domain.ErrInvalidInput)
		}
		if updated.PricePerPiece.Equal(updated.SellingPrice) || !pack.IsPack(updated.PiecesPerBox) {
			updated.PricePerPiece = *req.SellingPrice
		}
		updated.SellingPrice = *req.SellingPrice
	}
	if req.PurchasePrice != nil {
		if !req.PurchasePrice.IsPositive() {
			return domain.ItemView{}, fmt.Errorf("purchase price must be positive: %w", domain.ErrInvalidInput)
		}
		updated.PurchasePrice = *req.PurchasePrice
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return domain.ItemView{}, fmt.Errorf("quantity must not be negative: %w", domain.ErrInvalidQuantity)
	}

	saved, err := s.repo.UpdateItem(ctx, updated, req.Quantity)
	if err != nil {
		return domain.ItemView{}, err
	}
	s.invalidate(ctx, saved.Code)

	s.logAudit(ctx, "item_update", "item", saved.Code,
		fmt.Sprintf("name=%s,price=%s,qty=%d->%d", saved.Name, saved.SellingPrice, existing.Quantity, saved.Quantity))
	return analytics.View(*saved), nil
}

func (s *Service) DeleteItem(ctx context.Context, code string) error {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	code, err := itemCode(code)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	s.logAudit(ctx, "item_delete", "item", code, "")
	return nil
}

// Labels renders a label sheet for code. count 0 means one label per
// sellable unit (packs for pack items, pieces otherwise).
func (s *Service) Labels(ctx context.Context, code string, count int) (domain.LabelSheet, error) {
	if count < 0 {
		return domain.LabelSheet{}, fmt.Errorf("label count must not be negative: %w", domain.ErrInvalidQuantity)
	}
	item, err := s.lookupItem(ctx, code)
	if err != nil {
		return domain.LabelSheet{}, err
	}
	if count == 0 {
		count = pack.LabelCount(item.Quantity, item.PiecesPerBox)
	}
	if count > s.maxLabels {
		count = s.maxLabels
	}

	pdf, err := printing.LabelsPDF(*item, count)
	if err != nil {
		return domain.LabelSheet{}, err
	}
	return domain.LabelSheet{
		ItemCode: item.Code,
		Count:    count,
		FileName: fmt.Sprintf("labels-%s.pdf", item.Code),
		PDF:      pdf,
	}, nil
}

// InventoryCSV exports every item with its derived stock display.
func (s *Service) InventoryCSV(ctx context.Context) ([]byte, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"item_code", "item_name", "make", "brand", "size", "supplier_code",
		"purchase_price", "selling_price", "price_per_piece", "quantity", "pieces_per_box", "stock", "low_stock",
	})
	for _, item := range items {
		view := analytics.View(item)
		_ = w.Write([]string{
			item.Code, item.Name, item.Make, item.Brand, item.Size, item.SupplierCode,
			money(item.PurchasePrice), money(item.SellingPrice), money(item.PricePerPiece),
			strconv.Itoa(item.Quantity), strconv.Itoa(pack.Normalize(item.PiecesPerBox)),
			view.StockDisplay, strconv.FormatBool(view.LowStock),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookupItem resolves an item by code through the cache.
func (s *Service) lookupItem(ctx context.Context, code string) (*domain.Item, error) {
	code, err := itemCode(code)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.cache.Get(ctx, code); err != nil {
		s.log.Warn(s.log.WithField(ctx, "item_code", code), "item cache read failed", err)
	} else if ok {
		s.log.Debug(s.log.WithField(ctx, "item_code", code), "item cache hit")
		return cached, nil
	}

	item, err := s.repo.GetItemByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("item %s: %w", code, domain.ErrNotFound)
		}
		return nil, err
	}
	if err := s.cache.Set(ctx, item, s.cacheTTL); err != nil {
		s.log.Warn(s.log.WithField(ctx, "item_code", code), "item cache write failed", err)
	}
	return item, nil
}

func (s *Service) invalidate(ctx context.Context, codes ...string) {
	if err := s.cache.Invalidate(ctx, codes...); err != nil {
		s.log.Warn(s.log.WithField(ctx, "item_codes", codes), "item cache invalidation failed", err)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// itemCode normalizes code and rejects anything that cannot be an item code.
func itemCode(code string) (string, error) {
	code = normalizeCode(code)
	if code == "" {
		return "", fmt.Errorf("item code is required: %w", domain.ErrInvalidInput)
	}
	if !xid.ValidCode(code) {
		return "", fmt.Errorf("item code %q is malformed: %w", code, domain.ErrInvalidInput)
	}
	return code, nil
}

func views(items []domain.Item) []domain.ItemView {
	out := make([]domain.ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, analytics.View(item))
	}
	return out
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
