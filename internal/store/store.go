package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vansales/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrDuplicateItem   = errors.New("duplicate item in document")
)

// StorageError wraps a failure from the underlying storage collaborator
// (network, disk, constraint). Repositories guarantee that no partial
// multi-row state is observable once one of these surfaces.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage tags err as a StorageError unless it is already one of the
// repository sentinels (those pass through untouched).
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidDocument) || errors.Is(err, ErrDuplicateItem) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Repository persists sales documents. Create and Update treat a document
// header and its line items as one logical unit: implementations recompute
// line totals, document totals, and payment status from the raw line inputs
// before writing, and either all rows land or none do.
type Repository interface {
	// Catalog (read-only to the core).
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
	SearchItems(ctx context.Context, term string, limit int) ([]domain.Item, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error)
	GetVanByID(ctx context.Context, id string) (*domain.Van, error)

	// Invoices.
	CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error)
	GetInvoiceByID(ctx context.Context, id string) (*domain.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error)
	// UpdateInvoice shallow-merges the patched header onto the stored one and
	// replaces the item set wholesale, recomputing all derived fields.
	UpdateInvoice(ctx context.Context, id string, patch domain.InvoiceUpdateRequest) (*domain.Invoice, error)

	// Sales returns.
	CreateReturn(ctx context.Context, ret domain.SalesReturn) (*domain.SalesReturn, error)
	GetReturnByID(ctx context.Context, id string) (*domain.SalesReturn, error)
	ListReturns(ctx context.Context, filter domain.ReturnListFilter) ([]domain.SalesReturn, error)
	UpdateReturn(ctx context.Context, id string, patch domain.ReturnUpdateRequest) (*domain.SalesReturn, error)

	// Receipts. A receipt never touches invoice rows; reconciliation against
	// an invoice's paid amount is a caller concern.
	CreateReceipt(ctx context.Context, rcpt domain.Receipt) (*domain.Receipt, error)
	GetReceiptByID(ctx context.Context, id string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, filter domain.ReceiptListFilter) ([]domain.Receipt, error)

	// NextDocumentNumber draws the next number for the prefix and day,
	// monotonic per prefix per day. Create paths draw numbers inside their
	// own write transaction; this is exposed for callers that need a number
	// ahead of persistence.
	NextDocumentNumber(ctx context.Context, prefix string, date time.Time) (string, error)

	DailySalesReport(ctx context.Context, vanID string, day time.Time) (domain.DailySalesReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, vanID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
