package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"vansales/backend/internal/billing"
	"vansales/backend/internal/docnum"
	"vansales/backend/internal/domain"
	"vansales/backend/internal/store"
	"vansales/backend/internal/xid"
)

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

// dbtx lets the row helpers run against either the pool or an open
// transaction.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, category, unit_price, tax_percent, active
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Code, &item.Name, &item.Category, &item.UnitPrice, &item.TaxPercent, &item.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get item", err)
	}
	return &item, nil
}

func (s *Store) SearchItems(ctx context.Context, term string, limit int) ([]domain.Item, error) {
	if limit < 1 {
		limit = 50
	}
	pattern := "%" + strings.TrimSpace(term) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, category, unit_price, tax_percent, active
		FROM items
		WHERE active = true AND (name ILIKE $1 OR code ILIKE $1)
		ORDER BY name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, store.WrapStorage("search items", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, limit)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Code, &item.Name, &item.Category, &item.UnitPrice, &item.TaxPercent, &item.Active); err != nil {
			return nil, store.WrapStorage("search items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("search items", err)
	}
	return items, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, active
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address, &customer.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get customer", err)
	}
	return &customer, nil
}

func (s *Store) SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	pattern := "%" + strings.TrimSpace(term) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, active
		FROM customers
		WHERE active = true AND (name ILIKE $1 OR phone LIKE $1)
		ORDER BY name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, store.WrapStorage("search customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address, &customer.Active); err != nil {
			return nil, store.WrapStorage("search customers", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("search customers", err)
	}
	return customers, nil
}

func (s *Store) GetVanByID(ctx context.Context, id string) (*domain.Van, error) {
	var van domain.Van
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, plate_number, salesman, active
		FROM vans
		WHERE id = $1
	`, id).Scan(&van.ID, &van.Name, &van.PlateNumber, &van.Salesman, &van.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get van", err)
	}
	return &van, nil
}

// computeLines validates the raw line inputs and recomputes every derived
// field. Stored totals always come from this path, never from the caller.
func computeLines(items []domain.LineItem) ([]domain.LineItem, []billing.LineResult, error) {
	if len(items) == 0 {
		return nil, nil, store.ErrInvalidDocument
	}

	seen := make(map[string]struct{}, len(items))
	computed := make([]domain.LineItem, 0, len(items))
	results := make([]billing.LineResult, 0, len(items))
	for _, item := range items {
		if item.ItemID == "" || !item.Quantity.IsPositive() || item.UnitPrice.IsNegative() {
			return nil, nil, store.ErrInvalidDocument
		}
		if _, dup := seen[item.ItemID]; dup {
			return nil, nil, store.ErrDuplicateItem
		}
		seen[item.ItemID] = struct{}{}

		r := billing.ComputeLine(item.Quantity, item.UnitPrice, item.DiscountPercent, item.TaxPercent)
		billing.ApplyLine(&item, r)
		computed = append(computed, item)
		results = append(results, r)
	}
	return computed, results, nil
}

// nextNumberTx draws the next document number for the prefix and day inside
// the caller's transaction, so the counter bump commits or rolls back with
// the document itself.
func nextNumberTx(ctx context.Context, tx dbtx, prefix string, date time.Time) (string, error) {
	dayKey := docnum.DayKey(date)

	var counter int64
	err := tx.QueryRowContext(ctx, `
		UPDATE document_counters
		SET counter = counter + 1
		WHERE prefix = $1 AND day_key = $2
		RETURNING counter
	`, prefix, dayKey).Scan(&counter)
	if err == nil {
		return docnum.Format(prefix, date, counter), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	seed, err := maxPersistedSeq(ctx, tx, prefix, dayKey)
	if err != nil {
		return "", err
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_counters (prefix, day_key, counter)
		VALUES ($1, $2, $3)
		ON CONFLICT (prefix, day_key)
		DO UPDATE SET counter = document_counters.counter + 1
		RETURNING counter
	`, prefix, dayKey, seed+1).Scan(&counter)
	if err != nil {
		return "", err
	}
	return docnum.Format(prefix, date, counter), nil
}

// maxPersistedSeq recovers the highest sequence already stored for a prefix
// and day, so a fresh counter row cannot hand out numbers that collide with
// existing documents. Numbers are zero-padded, so MAX on the text column
// orders correctly.
func maxPersistedSeq(ctx context.Context, q dbtx, prefix string, dayKey string) (int64, error) {
	var table, column string
	switch prefix {
	case docnum.PrefixInvoice:
		table, column = "invoices", "invoice_number"
	case docnum.PrefixReturn:
		table, column = "sales_returns", "return_number"
	case docnum.PrefixReceipt:
		table, column = "receipts", "receipt_number"
	default:
		return 0, nil
	}

	var number sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT MAX(`+column+`) FROM `+table+` WHERE `+column+` LIKE $1`,
		prefix+"-"+dayKey+"-%").Scan(&number)
	if err != nil {
		return 0, err
	}
	if !number.Valid {
		return 0, nil
	}
	return docnum.ParseSeq(number.String), nil
}

// resolveItemNames fills blank display names from the catalog inside the
// caller's transaction, so replaced line rows keep the names the original
// rows carried.
func resolveItemNames(ctx context.Context, q dbtx, items []domain.LineItem) error {
	for i := range items {
		if items[i].ItemName != "" {
			continue
		}
		var name string
		err := q.QueryRowContext(ctx, `SELECT name FROM items WHERE id = $1`, items[i].ItemID).Scan(&name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
		items[i].ItemName = name
	}
	return nil
}

func insertInvoiceItems(ctx context.Context, tx dbtx, invoiceID string, items []domain.LineItem) error {
	for pos, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, item_id, item_name, quantity, unit_price,
				discount_percent, tax_percent, subtotal, discount_amount, tax_amount, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, invoiceID, pos, item.ItemID, item.ItemName, item.Quantity, item.UnitPrice,
			item.DiscountPercent, item.TaxPercent, item.Subtotal, item.DiscountAmount, item.TaxAmount, item.LineTotal)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateItem
			}
			return err
		}
	}
	return nil
}

func loadInvoiceItems(ctx context.Context, q dbtx, invoiceID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, item_name, quantity, unit_price, discount_percent, tax_percent,
			subtotal, discount_amount, tax_amount, line_total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ItemID, &item.ItemName, &item.Quantity, &item.UnitPrice,
			&item.DiscountPercent, &item.TaxPercent, &item.Subtotal, &item.DiscountAmount,
			&item.TaxAmount, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const invoiceColumns = `id, invoice_number, van_id, customer_id, walk_in_customer_name, invoice_date,
	payment_mode, payment_status, subtotal, discount_amount, tax_amount, total_amount,
	paid_amount, balance_amount, created_at, updated_at`

func scanInvoice(row interface{ Scan(...any) error }) (domain.Invoice, error) {
	var inv domain.Invoice
	var customerID, walkIn sql.NullString
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.VanID, &customerID, &walkIn, &inv.InvoiceDate,
		&inv.PaymentMode, &inv.PaymentStatus, &inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount,
		&inv.TotalAmount, &inv.PaidAmount, &inv.BalanceAmount, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return inv, err
	}
	inv.CustomerID = customerID.String
	inv.WalkInCustomerName = walkIn.String
	inv.InvoiceDate = inv.InvoiceDate.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	items, results, err := computeLines(inv.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.WrapStorage("begin create invoice", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber, err = nextNumberTx(ctx, tx, docnum.PrefixInvoice, inv.InvoiceDate)
		if err != nil {
			return nil, store.WrapStorage("allocate invoice number", err)
		}
	}

	if err := resolveItemNames(ctx, tx, items); err != nil {
		return nil, store.WrapStorage("resolve item names", err)
	}
	totals := billing.Aggregate(results, inv.PaidAmount)
	inv.Items = items
	applyInvoiceTotals(&inv, totals)
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, inv.ID, inv.InvoiceNumber, inv.VanID, nullIfEmpty(inv.CustomerID), nullIfEmpty(inv.WalkInCustomerName),
		inv.InvoiceDate, inv.PaymentMode, inv.PaymentStatus, inv.Subtotal, inv.DiscountAmount,
		inv.TaxAmount, inv.TotalAmount, inv.PaidAmount, inv.BalanceAmount, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return nil, store.WrapStorage("insert invoice", err)
	}

	if err := insertInvoiceItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return nil, store.WrapStorage("insert invoice items", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("commit create invoice", err)
	}

	created := inv
	return &created, nil
}

func (s *Store) GetInvoiceByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.getInvoice(ctx, "id", id)
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.getInvoice(ctx, "invoice_number", number)
}

func (s *Store) getInvoice(ctx context.Context, column string, value string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE `+column+` = $1
	`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get invoice", err)
	}

	inv.Items, err = loadInvoiceItems(ctx, s.db, inv.ID)
	if err != nil {
		return nil, store.WrapStorage("load invoice items", err)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.VanID != "" {
		where = append(where, "van_id = "+arg(filter.VanID))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.PaymentStatus != "" {
		where = append(where, "payment_status = "+arg(filter.PaymentStatus))
	}
	if !filter.From.IsZero() {
		where = append(where, "invoice_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "invoice_date < "+arg(filter.To))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+arg(limit), args...)
	if err != nil {
		return nil, store.WrapStorage("list invoices", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, store.WrapStorage("list invoices", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("list invoices", err)
	}

	for i := range invoices {
		invoices[i].Items, err = loadInvoiceItems(ctx, s.db, invoices[i].ID)
		if err != nil {
			return nil, store.WrapStorage("load invoice items", err)
		}
	}
	return invoices, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, id string, patch domain.InvoiceUpdateRequest) (*domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.WrapStorage("begin update invoice", err)
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := scanInvoice(tx.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("lock invoice", err)
	}

	if patch.CustomerID != nil {
		inv.CustomerID = *patch.CustomerID
	}
	if patch.WalkInCustomerName != nil {
		inv.WalkInCustomerName = *patch.WalkInCustomerName
	}
	if patch.PaymentMode != nil {
		inv.PaymentMode = *patch.PaymentMode
	}
	if patch.PaidAmount != nil {
		inv.PaidAmount = *patch.PaidAmount
	}

	items, results, err := computeLines(lineInputsToItems(patch.Items))
	if err != nil {
		return nil, err
	}
	if err := resolveItemNames(ctx, tx, items); err != nil {
		return nil, store.WrapStorage("resolve item names", err)
	}
	totals := billing.Aggregate(results, inv.PaidAmount)
	inv.Items = items
	applyInvoiceTotals(&inv, totals)
	inv.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return nil, store.WrapStorage("replace invoice items", err)
	}
	if err := insertInvoiceItems(ctx, tx, id, inv.Items); err != nil {
		return nil, store.WrapStorage("replace invoice items", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE invoices
		SET customer_id = $2, walk_in_customer_name = $3, payment_mode = $4, payment_status = $5,
			subtotal = $6, discount_amount = $7, tax_amount = $8, total_amount = $9,
			paid_amount = $10, balance_amount = $11, updated_at = $12
		WHERE id = $1
	`, id, nullIfEmpty(inv.CustomerID), nullIfEmpty(inv.WalkInCustomerName), inv.PaymentMode,
		inv.PaymentStatus, inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.TotalAmount,
		inv.PaidAmount, inv.BalanceAmount, inv.UpdatedAt)
	if err != nil {
		return nil, store.WrapStorage("update invoice", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("commit update invoice", err)
	}

	updated := inv
	return &updated, nil
}

func applyInvoiceTotals(inv *domain.Invoice, totals billing.Totals) {
	inv.Subtotal = totals.Subtotal
	inv.DiscountAmount = totals.Discount
	inv.TaxAmount = totals.Tax
	inv.TotalAmount = totals.Total
	inv.PaidAmount = totals.Paid
	inv.BalanceAmount = totals.Balance
	inv.PaymentStatus = billing.ClassifyPayment(totals.Total, totals.Balance)
}

const returnColumns = `id, return_number, van_id, customer_id, walk_in_customer_name, invoice_id,
	return_type, reason, return_date, subtotal, discount_amount, tax_amount, total_amount,
	created_at, updated_at`

func scanReturn(row interface{ Scan(...any) error }) (domain.SalesReturn, error) {
	var ret domain.SalesReturn
	var customerID, walkIn, invoiceID sql.NullString
	err := row.Scan(&ret.ID, &ret.ReturnNumber, &ret.VanID, &customerID, &walkIn, &invoiceID,
		&ret.ReturnType, &ret.Reason, &ret.ReturnDate, &ret.Subtotal, &ret.DiscountAmount,
		&ret.TaxAmount, &ret.TotalAmount, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return ret, err
	}
	ret.CustomerID = customerID.String
	ret.WalkInCustomerName = walkIn.String
	ret.InvoiceID = invoiceID.String
	ret.ReturnDate = ret.ReturnDate.UTC()
	ret.CreatedAt = ret.CreatedAt.UTC()
	ret.UpdatedAt = ret.UpdatedAt.UTC()
	return ret, nil
}

func insertReturnItems(ctx context.Context, tx dbtx, returnID string, items []domain.LineItem) error {
	for pos, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO return_items (return_id, position, item_id, item_name, quantity, unit_price,
				discount_percent, tax_percent, subtotal, discount_amount, tax_amount, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, returnID, pos, item.ItemID, item.ItemName, item.Quantity, item.UnitPrice,
			item.DiscountPercent, item.TaxPercent, item.Subtotal, item.DiscountAmount, item.TaxAmount, item.LineTotal)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateItem
			}
			return err
		}
	}
	return nil
}

func loadReturnItems(ctx context.Context, q dbtx, returnID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, item_name, quantity, unit_price, discount_percent, tax_percent,
			subtotal, discount_amount, tax_amount, line_total
		FROM return_items
		WHERE return_id = $1
		ORDER BY position
	`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ItemID, &item.ItemName, &item.Quantity, &item.UnitPrice,
			&item.DiscountPercent, &item.TaxPercent, &item.Subtotal, &item.DiscountAmount,
			&item.TaxAmount, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.SalesReturn) (*domain.SalesReturn, error) {
	items, results, err := computeLines(ret.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.WrapStorage("begin create return", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if ret.ID == "" {
		ret.ID = xid.New("sret")
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = now
	}
	if ret.ReturnNumber == "" {
		ret.ReturnNumber, err = nextNumberTx(ctx, tx, docnum.PrefixReturn, ret.ReturnDate)
		if err != nil {
			return nil, store.WrapStorage("allocate return number", err)
		}
	}

	if err := resolveItemNames(ctx, tx, items); err != nil {
		return nil, store.WrapStorage("resolve item names", err)
	}
	totals := billing.Aggregate(results, decimal.Zero)
	ret.Items = items
	ret.Subtotal = totals.Subtotal
	ret.DiscountAmount = totals.Discount
	ret.TaxAmount = totals.Tax
	ret.TotalAmount = totals.Total
	ret.CreatedAt = now
	ret.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales_returns (`+returnColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, ret.ID, ret.ReturnNumber, ret.VanID, nullIfEmpty(ret.CustomerID), nullIfEmpty(ret.WalkInCustomerName),
		nullIfEmpty(ret.InvoiceID), ret.ReturnType, ret.Reason, ret.ReturnDate, ret.Subtotal,
		ret.DiscountAmount, ret.TaxAmount, ret.TotalAmount, ret.CreatedAt, ret.UpdatedAt)
	if err != nil {
		return nil, store.WrapStorage("insert return", err)
	}

	if err := insertReturnItems(ctx, tx, ret.ID, ret.Items); err != nil {
		return nil, store.WrapStorage("insert return items", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("commit create return", err)
	}

	created := ret
	return &created, nil
}

func (s *Store) GetReturnByID(ctx context.Context, id string) (*domain.SalesReturn, error) {
	ret, err := scanReturn(s.db.QueryRowContext(ctx, `
		SELECT `+returnColumns+`
		FROM sales_returns
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get return", err)
	}

	ret.Items, err = loadReturnItems(ctx, s.db, ret.ID)
	if err != nil {
		return nil, store.WrapStorage("load return items", err)
	}
	return &ret, nil
}

func (s *Store) ListReturns(ctx context.Context, filter domain.ReturnListFilter) ([]domain.SalesReturn, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.VanID != "" {
		where = append(where, "van_id = "+arg(filter.VanID))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.InvoiceID != "" {
		where = append(where, "invoice_id = "+arg(filter.InvoiceID))
	}
	if filter.ReturnType != "" {
		where = append(where, "return_type = "+arg(filter.ReturnType))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+returnColumns+`
		FROM sales_returns
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+arg(limit), args...)
	if err != nil {
		return nil, store.WrapStorage("list returns", err)
	}
	defer rows.Close()

	returns := make([]domain.SalesReturn, 0, limit)
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, store.WrapStorage("list returns", err)
		}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("list returns", err)
	}

	for i := range returns {
		returns[i].Items, err = loadReturnItems(ctx, s.db, returns[i].ID)
		if err != nil {
			return nil, store.WrapStorage("load return items", err)
		}
	}
	return returns, nil
}

func (s *Store) UpdateReturn(ctx context.Context, id string, patch domain.ReturnUpdateRequest) (*domain.SalesReturn, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.WrapStorage("begin update return", err)
	}
	defer func() { _ = tx.Rollback() }()

	ret, err := scanReturn(tx.QueryRowContext(ctx, `
		SELECT `+returnColumns+`
		FROM sales_returns
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("lock return", err)
	}

	if patch.ReturnType != nil {
		ret.ReturnType = *patch.ReturnType
	}
	if patch.Reason != nil {
		ret.Reason = *patch.Reason
	}

	items, results, err := computeLines(lineInputsToItems(patch.Items))
	if err != nil {
		return nil, err
	}
	if err := resolveItemNames(ctx, tx, items); err != nil {
		return nil, store.WrapStorage("resolve item names", err)
	}
	totals := billing.Aggregate(results, decimal.Zero)
	ret.Items = items
	ret.Subtotal = totals.Subtotal
	ret.DiscountAmount = totals.Discount
	ret.TaxAmount = totals.Tax
	ret.TotalAmount = totals.Total
	ret.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = $1`, id); err != nil {
		return nil, store.WrapStorage("replace return items", err)
	}
	if err := insertReturnItems(ctx, tx, id, ret.Items); err != nil {
		return nil, store.WrapStorage("replace return items", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales_returns
		SET return_type = $2, reason = $3, subtotal = $4, discount_amount = $5,
			tax_amount = $6, total_amount = $7, updated_at = $8
		WHERE id = $1
	`, id, ret.ReturnType, ret.Reason, ret.Subtotal, ret.DiscountAmount, ret.TaxAmount, ret.TotalAmount, ret.UpdatedAt)
	if err != nil {
		return nil, store.WrapStorage("update return", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("commit update return", err)
	}

	updated := ret
	return &updated, nil
}

func (s *Store) CreateReceipt(ctx context.Context, rcpt domain.Receipt) (*domain.Receipt, error) {
	if rcpt.CustomerID == "" || !rcpt.Amount.IsPositive() {
		return nil, store.ErrInvalidDocument
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.WrapStorage("begin create receipt", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if rcpt.ID == "" {
		rcpt.ID = xid.New("rcpt")
	}
	if rcpt.ReceiptDate.IsZero() {
		rcpt.ReceiptDate = now
	}
	if rcpt.ReceiptNumber == "" {
		rcpt.ReceiptNumber, err = nextNumberTx(ctx, tx, docnum.PrefixReceipt, rcpt.ReceiptDate)
		if err != nil {
			return nil, store.WrapStorage("allocate receipt number", err)
		}
	}
	rcpt.Amount = billing.Round3(rcpt.Amount)
	rcpt.CreatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (id, receipt_number, van_id, customer_id, invoice_id, amount,
			payment_mode, receipt_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rcpt.ID, rcpt.ReceiptNumber, rcpt.VanID, rcpt.CustomerID, nullIfEmpty(rcpt.InvoiceID),
		rcpt.Amount, rcpt.PaymentMode, rcpt.ReceiptDate, rcpt.Notes, rcpt.CreatedAt)
	if err != nil {
		return nil, store.WrapStorage("insert receipt", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("commit create receipt", err)
	}

	created := rcpt
	return &created, nil
}

func (s *Store) GetReceiptByID(ctx context.Context, id string) (*domain.Receipt, error) {
	var rcpt domain.Receipt
	var invoiceID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_number, van_id, customer_id, invoice_id, amount, payment_mode, receipt_date, notes, created_at
		FROM receipts
		WHERE id = $1
	`, id).Scan(&rcpt.ID, &rcpt.ReceiptNumber, &rcpt.VanID, &rcpt.CustomerID, &invoiceID,
		&rcpt.Amount, &rcpt.PaymentMode, &rcpt.ReceiptDate, &rcpt.Notes, &rcpt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get receipt", err)
	}
	rcpt.InvoiceID = invoiceID.String
	rcpt.ReceiptDate = rcpt.ReceiptDate.UTC()
	rcpt.CreatedAt = rcpt.CreatedAt.UTC()
	return &rcpt, nil
}

func (s *Store) ListReceipts(ctx context.Context, filter domain.ReceiptListFilter) ([]domain.Receipt, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.VanID != "" {
		where = append(where, "van_id = "+arg(filter.VanID))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.InvoiceID != "" {
		where = append(where, "invoice_id = "+arg(filter.InvoiceID))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_number, van_id, customer_id, invoice_id, amount, payment_mode, receipt_date, notes, created_at
		FROM receipts
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+arg(limit), args...)
	if err != nil {
		return nil, store.WrapStorage("list receipts", err)
	}
	defer rows.Close()

	receipts := make([]domain.Receipt, 0, limit)
	for rows.Next() {
		var rcpt domain.Receipt
		var invoiceID sql.NullString
		if err := rows.Scan(&rcpt.ID, &rcpt.ReceiptNumber, &rcpt.VanID, &rcpt.CustomerID, &invoiceID,
			&rcpt.Amount, &rcpt.PaymentMode, &rcpt.ReceiptDate, &rcpt.Notes, &rcpt.CreatedAt); err != nil {
			return nil, store.WrapStorage("list receipts", err)
		}
		rcpt.InvoiceID = invoiceID.String
		rcpt.ReceiptDate = rcpt.ReceiptDate.UTC()
		rcpt.CreatedAt = rcpt.CreatedAt.UTC()
		receipts = append(receipts, rcpt)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("list receipts", err)
	}
	return receipts, nil
}

func (s *Store) NextDocumentNumber(ctx context.Context, prefix string, date time.Time) (string, error) {
	if prefix == "" {
		return "", store.ErrInvalidDocument
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", store.WrapStorage("begin allocate number", err)
	}
	defer func() { _ = tx.Rollback() }()

	number, err := nextNumberTx(ctx, tx, prefix, date)
	if err != nil {
		return "", store.WrapStorage("allocate number", err)
	}
	if err := tx.Commit(); err != nil {
		return "", store.WrapStorage("commit allocate number", err)
	}
	return number, nil
}

func (s *Store) DailySalesReport(ctx context.Context, vanID string, day time.Time) (domain.DailySalesReport, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	report := domain.DailySalesReport{
		VanID: vanID,
		Date:  from.Format("2006-01-02"),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(subtotal), 0),
			COALESCE(SUM(discount_amount), 0),
			COALESCE(SUM(tax_amount), 0),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(paid_amount), 0)
		FROM invoices
		WHERE van_id = $1 AND invoice_date >= $2 AND invoice_date < $3
	`, vanID, from, to).Scan(&report.Invoices, &report.GrossSales, &report.DiscountTotal,
		&report.TaxTotal, &report.NetSales, &report.CollectedOnSale)
	if err != nil {
		return report, store.WrapStorage("daily report invoices", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM receipts
		WHERE van_id = $1 AND receipt_date >= $2 AND receipt_date < $3
	`, vanID, from, to).Scan(&report.Receipts, &report.ReceiptTotal)
	if err != nil {
		return report, store.WrapStorage("daily report receipts", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM sales_returns
		WHERE van_id = $1 AND return_date >= $2 AND return_date < $3
	`, vanID, from, to).Scan(&report.ReturnTotal)
	if err != nil {
		return report, store.WrapStorage("daily report returns", err)
	}

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, van_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.VanID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return store.WrapStorage("insert audit log", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, vanID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	where := []string{"created_at >= $1 AND created_at < $2"}
	args := []any{from, to}
	if vanID != "" {
		args = append(args, vanID)
		where = append(where, "van_id = "+placeholder(len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, van_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+placeholder(len(args)), args...)
	if err != nil {
		return nil, store.WrapStorage("list audit logs", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.VanID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, store.WrapStorage("list audit logs", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("list audit logs", err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidDocument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidDocument
		}
		return store.WrapStorage("insert user", err)
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1 AND active = true
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapStorage("get user", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, store.WrapStorage("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, store.WrapStorage("list users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapStorage("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidDocument
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return store.WrapStorage("update user password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.WrapStorage("update user password", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func lineInputsToItems(inputs []domain.LineItemInput) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, domain.LineItem{
			ItemID:          in.ItemID,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      in.TaxPercent,
		})
	}
	return items
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

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
