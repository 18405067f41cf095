package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate runs goose against the embedded migrations. command is any goose
// command such as "up", "down" or "status".
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

const itemColumns = `id, code, name, make, brand, size, supplier_code,
	purchase_price, selling_price, price_per_piece, quantity, pieces_per_box, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Make, &item.Brand, &item.Size, &item.SupplierCode,
		&item.PurchasePrice, &item.SellingPrice, &item.PricePerPiece, &item.Quantity, &item.PiecesPerBox,
		&item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return items, nil
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, code`)
}

func (s *Store) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	query = strings.TrimSpace(query)
	if limit < 1 {
		limit = 50
	}
	if query == "" {
		return s.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, code LIMIT $1`, limit)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE code ILIKE $1 OR name ILIKE $1 OR brand ILIKE $1 OR supplier_code ILIKE $1
		ORDER BY created_at DESC, code
		LIMIT $2
	`, pattern, limit)
}

func (s *Store) GetItemByCode(ctx context.Context, code string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &item, nil
}

func (s *Store) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if item.Code == "" || item.Name == "" || item.Quantity < 0 || item.PiecesPerBox < 1 {
		return nil, store.ErrInvalid
	}
	if item.ID == "" {
		item.ID = xid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, item.ID, item.Code, item.Name, item.Make, item.Brand, item.Size, item.SupplierCode,
		item.PurchasePrice, item.SellingPrice, item.PricePerPiece, item.Quantity, item.PiecesPerBox,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, unavailable(err)
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item, quantity *int) (*domain.Item, error) {
	if item.Name == "" || (quantity != nil && *quantity < 0) {
		return nil, store.ErrInvalid
	}
	updated, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE items
		SET name = $2, selling_price = $3, purchase_price = $4, price_per_piece = $5,
			quantity = COALESCE($6::integer, quantity), updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.SellingPrice, item.PurchasePrice, item.PricePerPiece, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE code = $1`, code)
	if err != nil {
		return unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateBill locks every touched item row, applies the stock deltas and
// writes the bill with its items inside one serializable transaction.
func (s *Store) CreateBill(ctx context.Context, draft domain.BillDraft) (*domain.Bill, error) {
	if len(draft.Bill.Items) == 0 {
		return nil, store.ErrInvalid
	}

	bill := draft.Bill
	if bill.ID == "" {
		bill.ID = xid.New()
	}
	if bill.ShareID == "" {
		bill.ShareID = xid.New()
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := make([]string, 0, len(draft.Deltas))
	netDelta := make(map[string]int, len(draft.Deltas))
	for _, delta := range draft.Deltas {
		if _, seen := netDelta[delta.ItemID]; !seen {
			ids = append(ids, delta.ItemID)
		}
		netDelta[delta.ItemID] += delta.Delta
	}

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, code, quantity
		FROM items
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, unavailable(err)
	}
	type stockState struct {
		code string
		qty  int
	}
	stock := make(map[string]stockState, len(ids))
	for stockRows.Next() {
		var id string
		var st stockState
		if err := stockRows.Scan(&id, &st.code, &st.qty); err != nil {
			_ = stockRows.Close()
			return nil, unavailable(err)
		}
		stock[id] = st
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, unavailable(err)
	}
	_ = stockRows.Close()

	for _, id := range ids {
		st, ok := stock[id]
		if !ok {
			return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
		}
		if st.qty+netDelta[id] < 0 {
			return nil, fmt.Errorf("%w: only %d available for %s", store.ErrStockExceeded, st.qty, st.code)
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE items SET quantity = quantity + $1, updated_at = now() WHERE id = $2
		`, netDelta[id], id); err != nil {
			return nil, unavailable(err)
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO bills (
			id, share_id, total_amount, discount_amount, final_amount,
			customer_name, customer_phone, payment_status, payment_method,
			is_return, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, bill.ID, bill.ShareID, bill.TotalAmount, bill.DiscountAmount, bill.FinalAmount,
		nullIfEmpty(bill.CustomerName), nullIfEmpty(bill.CustomerPhone), string(bill.PaymentStatus),
		nullIfEmpty(string(bill.PaymentMethod)), bill.IsReturn, nullIfEmpty(bill.CreatedBy), bill.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, unavailable(err)
	}

	for i, line := range bill.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_id, line_no, item_id, item_code, item_name, quantity, price_at_sale)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, bill.ID, i+1, nullIfEmpty(line.ItemID), line.ItemCode, line.ItemName, line.Quantity, line.PriceAtSale)
		if err != nil {
			return nil, unavailable(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, unavailable(err)
	}
	return &bill, nil
}

const billColumns = `id, share_id, total_amount, discount_amount, final_amount,
	customer_name, customer_phone, payment_status, payment_method, is_return, created_by, created_at, settled_at`

func scanBill(row rowScanner) (domain.Bill, error) {
	var (
		bill                        domain.Bill
		customerName, customerPhone sql.NullString
		status, method, createdBy   sql.NullString
		settledAt                   sql.NullTime
	)
	err := row.Scan(&bill.ID, &bill.ShareID, &bill.TotalAmount, &bill.DiscountAmount, &bill.FinalAmount,
		&customerName, &customerPhone, &status, &method, &bill.IsReturn, &createdBy, &bill.CreatedAt, &settledAt)
	if err != nil {
		return bill, err
	}
	bill.CustomerName = customerName.String
	bill.CustomerPhone = customerPhone.String
	bill.PaymentStatus = domain.PaymentStatus(status.String)
	bill.PaymentMethod = domain.PaymentMethod(method.String)
	bill.CreatedBy = createdBy.String
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		bill.SettledAt = &at
	}
	bill.CreatedAt = bill.CreatedAt.UTC()
	return bill, nil
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	return s.getBill(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id)
}

func (s *Store) GetBillByShareID(ctx context.Context, shareID string) (*domain.Bill, error) {
	return s.getBill(ctx, `SELECT `+billColumns+` FROM bills WHERE share_id = $1`, shareID)
}

func (s *Store) getBill(ctx context.Context, query string, arg string) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, unavailable(err)
	}
	bills := []domain.Bill{bill}
	if err := s.attachItems(ctx, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}

	query := `SELECT ` + billColumns + ` FROM bills`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	if err := s.attachItems(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (s *Store) attachItems(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]string, len(bills))
	index := make(map[string]int, len(bills))
	for i, bill := range bills {
		ids[i] = bill.ID
		index[bill.ID] = i
		bills[i].Items = make([]domain.BillItem, 0, 4)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_id, item_id, item_code, item_name, quantity, price_at_sale
		FROM bill_items
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, line_no
	`, ids)
	if err != nil {
		return unavailable(err)
	}
	defer rows.Close()

	for rows.Next() {
		var billID string
		var itemID sql.NullString
		var line domain.BillItem
		if err := rows.Scan(&billID, &itemID, &line.ItemCode, &line.ItemName, &line.Quantity, &line.PriceAtSale); err != nil {
			return unavailable(err)
		}
		line.ItemID = itemID.String
		i := index[billID]
		bills[i].Items = append(bills[i].Items, line)
	}
	if err := rows.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) SettleBill(ctx context.Context, id string, method domain.PaymentMethod, at time.Time) (*domain.Bill, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bills
		SET payment_status = $2, payment_method = $3, settled_at = $4
		WHERE id = $1 AND payment_status = $5
	`, id, string(domain.PaymentPaid), string(method), at.UTC(), string(domain.PaymentPending))
	if err != nil {
		return nil, unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable(err)
	}
	if affected == 0 {
		if _, err := s.GetBill(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrNotPending
	}
	return s.GetBill(ctx, id)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.Action == "" {
		return store.ErrInvalid
	}
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID,
		nullIfEmpty(entry.Detail), entry.CreatedAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var detail sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &detail, &entry.CreatedAt); err != nil {
			return nil, unavailable(err)
		}
		entry.Detail = detail.String
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, user.Username, user.Password, user.Role, user.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return unavailable(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, unavailable(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// unavailable tags driver failures so callers can map them to one error kind.
// Cancellation is passed through untouched.
func unavailable(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}
