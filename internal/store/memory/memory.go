package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	items           map[string]domain.Item
	itemIDByCode    map[string]string
	bills           map[string]domain.Bill
	billIDByShareID map[string]string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		items:           make(map[string]domain.Item),
		itemIDByCode:    make(map[string]string),
		bills:           make(map[string]domain.Bill),
		billIDByShareID: make(map[string]string),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// UsesDefaultCredentials reports whether seeded users fall back to the
// built-in dev passwords.
func UsesDefaultCredentials() bool {
	return os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == ""
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD when set.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", envOr("SEED_ADMIN_PASSWORD", "admin123"), domain.RoleAdmin},
		{"cashier", envOr("SEED_CASHIER_PASSWORD", "cashier123"), domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	s.usersByUsername = seedUsers(now)

	seed := []domain.Item{
		{Code: "AB12CD", Name: "Cotton Kurti", Make: "Handloom", Brand: "Sakhi", Size: "M", SupplierCode: "SUP01",
			PurchasePrice: decimal.NewFromInt(320), SellingPrice: decimal.NewFromInt(500), Quantity: 10, PiecesPerBox: 1},
		{Code: "SR77KT", Name: "Banarasi Saree", Make: "Silk", Brand: "Varanasi Weaves", Size: "Free", SupplierCode: "SUP02",
			PurchasePrice: decimal.NewFromInt(1800), SellingPrice: decimal.NewFromInt(2600), Quantity: 4, PiecesPerBox: 1},
		{Code: "HK12PK", Name: "Handkerchief", Make: "Cotton", Brand: "Daily", Size: "S", SupplierCode: "SUP03",
			PurchasePrice: decimal.NewFromInt(15), SellingPrice: decimal.NewFromInt(25), Quantity: 30, PiecesPerBox: 12},
		{Code: "LG09BL", Name: "Leggings", Make: "Lycra", Brand: "Comfort", Size: "L", SupplierCode: "SUP01",
			PurchasePrice: decimal.NewFromInt(180), SellingPrice: decimal.NewFromInt(299), Quantity: 25, PiecesPerBox: 1},
	}
	for i, item := range seed {
		item.ID = xid.New()
		item.PricePerPiece = item.SellingPrice
		item.CreatedAt = now.Add(time.Duration(i) * time.Second)
		item.UpdatedAt = item.CreatedAt
		s.items[item.ID] = item
		s.itemIDByCode[item.Code] = item.ID
	}
	return s
}

func (s *Store) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return items, nil
}

func (s *Store) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	all, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]domain.Item, 0, 8)
	for _, item := range all {
		if q != "" && !matchesItem(item, q) {
			continue
		}
		matches = append(matches, item)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func matchesItem(item domain.Item, q string) bool {
	for _, field := range []string{item.Code, item.Name, item.Brand, item.SupplierCode} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (s *Store) GetItemByCode(_ context.Context, code string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.itemIDByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	item := s.items[id]
	return &item, nil
}

func (s *Store) GetItemByID(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if item.Code == "" || item.Name == "" || item.Quantity < 0 || item.PiecesPerBox < 1 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.itemIDByCode[item.Code]; exists {
		return nil, store.ErrConflict
	}
	if item.ID == "" {
		item.ID = xid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = item
	s.itemIDByCode[item.Code] = item.ID
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item, quantity *int) (*domain.Item, error) {
	if item.Name == "" || (quantity != nil && *quantity < 0) {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Name = item.Name
	current.SellingPrice = item.SellingPrice
	current.PurchasePrice = item.PurchasePrice
	current.PricePerPiece = item.PricePerPiece
	if quantity != nil {
		current.Quantity = *quantity
	}
	current.UpdatedAt = time.Now().UTC()
	s.items[current.ID] = current
	return &current, nil
}

func (s *Store) DeleteItem(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.itemIDByCode[code]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	delete(s.itemIDByCode, code)
	return nil
}

func (s *Store) CreateBill(_ context.Context, draft domain.BillDraft) (*domain.Bill, error) {
	if len(draft.Bill.Items) == 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]int, len(draft.Deltas))
	for _, delta := range draft.Deltas {
		item, ok := s.items[delta.ItemID]
		if !ok {
			return nil, fmt.Errorf("item %s: %w", delta.ItemID, store.ErrNotFound)
		}
		qty, seen := next[item.ID]
		if !seen {
			qty = item.Quantity
		}
		qty += delta.Delta
		if qty < 0 {
			return nil, fmt.Errorf("%w: only %d available for %s", store.ErrStockExceeded, item.Quantity, item.Code)
		}
		next[item.ID] = qty
	}

	bill := cloneBill(draft.Bill)
	if bill.ID == "" {
		bill.ID = xid.New()
	}
	if bill.ShareID == "" {
		bill.ShareID = xid.New()
	}
	if _, exists := s.bills[bill.ID]; exists {
		return nil, store.ErrConflict
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	for id, qty := range next {
		item := s.items[id]
		item.Quantity = qty
		item.UpdatedAt = now
		s.items[id] = item
	}
	s.bills[bill.ID] = bill
	s.billIDByShareID[bill.ShareID] = bill.ID

	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) GetBillByShareID(ctx context.Context, shareID string) (*domain.Bill, error) {
	s.mu.RLock()
	id, ok := s.billIDByShareID[shareID]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetBill(ctx, id)
}

func (s *Store) ListBills(_ context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if filter.From != nil && bill.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !bill.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.Status != "" && bill.PaymentStatus != filter.Status {
			continue
		}
		bills = append(bills, cloneBill(bill))
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(bills) > filter.Limit {
		bills = bills[:filter.Limit]
	}
	return bills, nil
}

func (s *Store) SettleBill(_ context.Context, id string, method domain.PaymentMethod, at time.Time) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if bill.PaymentStatus != domain.PaymentPending {
		return nil, store.ErrNotPending
	}
	settledAt := at.UTC()
	bill.PaymentStatus = domain.PaymentPaid
	bill.PaymentMethod = method
	bill.SettledAt = &settledAt
	s.bills[id] = bill

	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.Action == "" {
		return store.ErrInvalid
	}
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.auditLogs = append(s.auditLogs, entry)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneBill(src domain.Bill) domain.Bill {
	dst := src
	dst.Items = append([]domain.BillItem(nil), src.Items...)
	if src.SettledAt != nil {
		at := *src.SettledAt
		dst.SettledAt = &at
	}
	return dst
}
