package store

import (
	"context"
	"time"

	"stockflow/backend/internal/domain"
)

var (
	ErrNotFound           = domain.ErrNotFound
	ErrStockExceeded      = domain.ErrStockExceeded
	ErrInvalid            = domain.ErrInvalidInput
	ErrConflict           = domain.ErrConflict
	ErrNotPending         = domain.ErrNotPending
	ErrBackendUnavailable = domain.ErrBackendUnavailable
)

type Repository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error)
	GetItemByCode(ctx context.Context, code string) (*domain.Item, error)
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	// UpdateItem writes the item's editable fields. A nil quantity leaves the
	// stored stock untouched so concurrent bills are never overwritten.
	UpdateItem(ctx context.Context, item domain.Item, quantity *int) (*domain.Item, error)
	DeleteItem(ctx context.Context, code string) error

	// CreateBill persists the bill, its items and every stock delta as one
	// unit. A delta that would drive stock below zero fails the whole bill
	// with ErrStockExceeded.
	CreateBill(ctx context.Context, draft domain.BillDraft) (*domain.Bill, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	GetBillByShareID(ctx context.Context, shareID string) (*domain.Bill, error)
	ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error)
	// SettleBill flips a pending bill to paid. ErrNotPending if already paid.
	SettleBill(ctx context.Context, id string, method domain.PaymentMethod, at time.Time) (*domain.Bill, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
