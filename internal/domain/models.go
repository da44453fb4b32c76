package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
	Active     bool            `json:"active"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

type Van struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlateNumber string `json:"plate_number"`
	Salesman    string `json:"salesman"`
	Active      bool   `json:"active"`
}

// LineItem is one catalog-item entry owned by exactly one document.
// The derived money fields are persisted redundantly for reporting and are
// always recomputed by the store at write time, never trusted from callers.
type LineItem struct {
	ItemID          string          `json:"item_id"`
	ItemName        string          `json:"item_name,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

type Invoice struct {
	ID                 string          `json:"id"`
	InvoiceNumber      string          `json:"invoice_number"`
	VanID              string          `json:"van_id"`
	CustomerID         string          `json:"customer_id,omitempty"`
	WalkInCustomerName string          `json:"walk_in_customer_name,omitempty"`
	InvoiceDate        time.Time       `json:"invoice_date"`
	PaymentMode        string          `json:"payment_mode"`
	PaymentStatus      string          `json:"payment_status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	BalanceAmount      decimal.Decimal `json:"balance_amount"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []LineItem      `json:"items"`
}

type SalesReturn struct {
	ID                 string          `json:"id"`
	ReturnNumber       string          `json:"return_number"`
	VanID              string          `json:"van_id"`
	CustomerID         string          `json:"customer_id,omitempty"`
	WalkInCustomerName string          `json:"walk_in_customer_name,omitempty"`
	InvoiceID          string          `json:"invoice_id,omitempty"`
	ReturnType         string          `json:"return_type"`
	Reason             string          `json:"reason"`
	ReturnDate         time.Time       `json:"return_date"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []LineItem      `json:"items"`
}

type Receipt struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	VanID         string          `json:"van_id"`
	CustomerID    string          `json:"customer_id"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMode   string          `json:"payment_mode"`
	ReceiptDate   time.Time       `json:"receipt_date"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LineItemInput is what callers supply per line. Totals are computed
// server-side and never trusted from the request.
type LineItemInput struct {
	ItemID          string          `json:"item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
}

type InvoiceCreateRequest struct {
	VanID              string          `json:"van_id"`
	CustomerID         string          `json:"customer_id,omitempty"`
	WalkInCustomerName string          `json:"walk_in_customer_name,omitempty"`
	InvoiceDate        string          `json:"invoice_date,omitempty"`
	PaymentMode        string          `json:"payment_mode"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	Items              []LineItemInput `json:"items"`
}

// InvoiceUpdateRequest replaces the item set wholesale and shallow-merges the
// header fields. InvoiceDate and InvoiceNumber are immutable and therefore
// absent here.
type InvoiceUpdateRequest struct {
	CustomerID         *string          `json:"customer_id,omitempty"`
	WalkInCustomerName *string          `json:"walk_in_customer_name,omitempty"`
	PaymentMode        *string          `json:"payment_mode,omitempty"`
	PaidAmount         *decimal.Decimal `json:"paid_amount,omitempty"`
	Items              []LineItemInput  `json:"items"`
}

type ReturnCreateRequest struct {
	VanID              string          `json:"van_id"`
	CustomerID         string          `json:"customer_id,omitempty"`
	WalkInCustomerName string          `json:"walk_in_customer_name,omitempty"`
	InvoiceID          string          `json:"invoice_id,omitempty"`
	ReturnType         string          `json:"return_type"`
	Reason             string          `json:"reason"`
	ReturnDate         string          `json:"return_date,omitempty"`
	Items              []LineItemInput `json:"items"`
}

type ReturnUpdateRequest struct {
	ReturnType *string         `json:"return_type,omitempty"`
	Reason     *string         `json:"reason,omitempty"`
	Items      []LineItemInput `json:"items"`
}

type ReceiptCreateRequest struct {
	VanID       string          `json:"van_id"`
	CustomerID  string          `json:"customer_id"`
	InvoiceID   string          `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
	ReceiptDate string          `json:"receipt_date,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type InvoiceListFilter struct {
	VanID         string
	CustomerID    string
	PaymentStatus string
	From          time.Time
	To            time.Time
	Limit         int
}

type ReturnListFilter struct {
	VanID      string
	CustomerID string
	InvoiceID  string
	ReturnType string
	Limit      int
}

type ReceiptListFilter struct {
	VanID      string
	CustomerID string
	InvoiceID  string
	Limit      int
}

// PrintDocument is the payload handed to the presentation collaborator
// (print/PDF/share). It carries only stored, already-validated numbers;
// consumers must never recompute a line total or a balance.
type PrintDocument struct {
	DocumentType   string          `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	DocumentDate   string          `json:"document_date"`
	VanID          string          `json:"van_id"`
	PartyName      string          `json:"party_name"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	PaymentStatus  string          `json:"payment_status,omitempty"`
}

type DailySalesReport struct {
	VanID           string          `json:"van_id"`
	Date            string          `json:"date"`
	Invoices        int64           `json:"invoices"`
	GrossSales      decimal.Decimal `json:"gross_sales"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	TaxTotal        decimal.Decimal `json:"tax_total"`
	NetSales        decimal.Decimal `json:"net_sales"`
	CollectedOnSale decimal.Decimal `json:"collected_on_sale"`
	Receipts        int64           `json:"receipts"`
	ReceiptTotal    decimal.Decimal `json:"receipt_total"`
	ReturnTotal     decimal.Decimal `json:"return_total"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	VanID         string    `json:"van_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
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

type SalesmanCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentModeCash   = "cash"
	PaymentModeCredit = "credit"
	PaymentModeCard   = "card"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusUnpaid  = "unpaid"
)

const (
	ReturnTypeGood   = "good"
	ReturnTypeDamage = "damage"
)
