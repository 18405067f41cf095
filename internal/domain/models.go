package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// LowStockThreshold is the quantity below which an item counts as low stock.
const LowStockThreshold = 5

type Item struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Make          string          `json:"make"`
	Brand         string          `json:"brand"`
	Size          string          `json:"size"`
	SupplierCode  string          `json:"supplier_code"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	PricePerPiece decimal.Decimal `json:"price_per_piece"`
	Quantity      int             `json:"quantity"`
	PiecesPerBox  int             `json:"pieces_per_box"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ItemView is an Item decorated with derived stock fields for display.
type ItemView struct {
	Item
	StockDisplay string `json:"stock_display"`
	LowStock     bool   `json:"low_stock"`
}

type ItemCreateRequest struct {
	Name          string          `json:"name" validate:"required,max=120"`
	Make          string          `json:"make" validate:"required,max=80"`
	Brand         string          `json:"brand" validate:"required,max=80"`
	Size          string          `json:"size" validate:"max=16"`
	SupplierCode  string          `json:"supplier_code" validate:"required,max=40"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	IsPack        bool            `json:"is_pack"`
	PiecesPerBox  int             `json:"pieces_per_box" validate:"gte=0"`
	NumberOfBoxes int             `json:"number_of_boxes" validate:"gte=0"`
	PricePerPiece decimal.Decimal `json:"price_per_piece"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
}

type ItemUpdateRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	SellingPrice  *decimal.Decimal `json:"selling_price,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	Quantity      *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

type PackOption struct {
	Choice string `json:"choice"`
	Pieces int    `json:"pieces"`
	Label  string `json:"label"`
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type Bill struct {
	ID             string          `json:"id"`
	ShareID        string          `json:"share_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMethod  PaymentMethod   `json:"payment_method,omitempty"`
	IsReturn       bool            `json:"is_return"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	Items          []BillItem      `json:"items"`
}

// Reference is the short human-facing bill number printed on receipts.
func (b Bill) Reference() string {
	ref := b.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return strings.ToUpper(ref)
}

type BillItem struct {
	ItemID      string          `json:"item_id,omitempty"`
	ItemCode    string          `json:"item_code"`
	ItemName    string          `json:"item_name"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
}

// LineAmount is the signed amount for the line (negative for returns).
func (b BillItem) LineAmount() decimal.Decimal {
	return b.PriceAtSale.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

// StockDelta is applied to an item's quantity when a bill is persisted.
type StockDelta struct {
	ItemID string
	Delta  int
}

// BillDraft is everything the repository needs to persist a checkout atomically.
type BillDraft struct {
	Bill   Bill
	Deltas []StockDelta
}

type BillSummary struct {
	Bill      Bill   `json:"bill"`
	Reference string `json:"reference"`
	ShareURL  string `json:"share_url,omitempty"`
}

type BillFilter struct {
	From   *time.Time
	To     *time.Time
	Status PaymentStatus
	Limit  int
}

type CartLineView struct {
	ItemID       string          `json:"item_id"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	Quantity     int             `json:"quantity"`
	PiecesPerBox int             `json:"pieces_per_box"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineAmount   decimal.Decimal `json:"line_amount"`
	PackSummary  string          `json:"pack_summary,omitempty"`
}

type CartView struct {
	ID            string          `json:"id"`
	Mode          string          `json:"mode"`
	State         string          `json:"state"`
	Lines         []CartLineView  `json:"lines"`
	DiscountKind  string          `json:"discount_kind"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Credit        bool            `json:"credit"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Final         decimal.Decimal `json:"final"`
}

type OpenCartRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=sale return"`
}

type AddCartLineRequest struct {
	ItemCode string      `json:"item_code" validate:"required"`
	Choice   string      `json:"choice,omitempty" validate:"omitempty,oneof=pack piece"`
	Quantity QuantityInput `json:"quantity,omitempty"`
}

type UpdateCartLineRequest struct {
	Quantity QuantityInput `json:"quantity"`
}

// QuantityInput holds a quantity exactly as typed, either a JSON number or a
// string, so non-numeric input reaches quantity parsing instead of failing
// request decoding.
type QuantityInput string

func (q *QuantityInput) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*q = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = QuantityInput(s)
	default:
		*q = QuantityInput(raw)
	}
	return nil
}

func (q QuantityInput) String() string { return string(q) }

type CartDiscountRequest struct {
	Kind  string          `json:"kind" validate:"required,oneof=none flat percent target"`
	Value decimal.Decimal `json:"value"`
}

type CartModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=sale return"`
}

type CartCustomerRequest struct {
	Name   string `json:"name" validate:"max=120"`
	Phone  string `json:"phone" validate:"max=20"`
	Credit bool   `json:"credit"`
}

type CheckoutRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method,omitempty" validate:"omitempty,oneof=cash online"`
	CustomerName  *string       `json:"customer_name,omitempty"`
	CustomerPhone *string       `json:"customer_phone,omitempty"`
	Credit        *bool         `json:"credit,omitempty"`
}

type SettleRequest struct {
	Method PaymentMethod `json:"method" validate:"required,oneof=cash online"`
}

type UdhaarList struct {
	Bills            []Bill          `json:"bills"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	PendingCount     int             `json:"pending_count"`
}

type ShareMessage struct {
	Text        string `json:"text"`
	WhatsAppURL string `json:"whatsapp_url"`
	InvoiceURL  string `json:"invoice_url,omitempty"`
}

type Receipt struct {
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}

type LabelSheet struct {
	ItemCode string `json:"item_code"`
	Count    int    `json:"count"`
	FileName string `json:"file_name"`
	PDF      []byte `json:"-"`
}

type SalesDayStats struct {
	Total      decimal.Decimal `json:"total"`
	Cash       decimal.Decimal `json:"cash"`
	Online     decimal.Decimal `json:"online"`
	Udhaar     decimal.Decimal `json:"udhaar"`
	BillCount  int             `json:"bill_count"`
	ItemsCount int             `json:"items_count"`
}

type SalesDay struct {
	Date  string        `json:"date"`
	Stats SalesDayStats `json:"stats"`
	Bills []Bill        `json:"bills"`
}

type AnalyticsWindow string

const (
	WindowToday AnalyticsWindow = "today"
	WindowWeek  AnalyticsWindow = "week"
	WindowMonth AnalyticsWindow = "month"
	WindowAll   AnalyticsWindow = "all"
)

func (w AnalyticsWindow) Valid() bool {
	switch w {
	case WindowToday, WindowWeek, WindowMonth, WindowAll:
		return true
	}
	return false
}

type TrendPoint struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Sales decimal.Decimal `json:"sales"`
}

type AnalyticsReport struct {
	Window         AnalyticsWindow `json:"window"`
	InvestedValue  decimal.Decimal `json:"invested_value"`
	PotentialValue decimal.Decimal `json:"potential_value"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	CashCollected  decimal.Decimal `json:"cash_collected"`
	PendingUdhaar  decimal.Decimal `json:"pending_udhaar"`
	PaidByCash     decimal.Decimal `json:"paid_by_cash"`
	PaidOnline     decimal.Decimal `json:"paid_online"`
	BillCount      int             `json:"bill_count"`
	ItemCount      int             `json:"item_count"`
	LowStockCount  int             `json:"low_stock_count"`
	LowStockItems  []ItemView      `json:"low_stock_items"`
	DailyTrend     []TrendPoint    `json:"daily_trend"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
