package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vansales/backend/internal/cache"
	"vansales/backend/internal/docnum"
	"vansales/backend/internal/domain"
	"vansales/backend/internal/store"
	"vansales/backend/internal/xid"
)

var (
	ErrMissingVan      = errors.New("van is required")
	ErrMissingParty    = errors.New("exactly one of customer or walk-in name is required")
	ErrEmptyDocument   = errors.New("document needs at least one line item")
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrMissingReason   = errors.New("return reason is required")
	ErrManagerRequired = errors.New("manager role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	catalogCache cache.CatalogCache
	defaultVanID string
	cacheTTL     time.Duration

	// docMu serializes read-modify-write updates per document id. The store
	// is atomic per call; this keeps two concurrent patches on the same
	// document from interleaving their header merges.
	mu    sync.Mutex
	docMu map[string]*sync.Mutex
}

func New(repo store.Repository, catalogCache cache.CatalogCache, defaultVanID string, cacheTTL time.Duration) *Service {
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Service{
		repo:         repo,
		catalogCache: catalogCache,
		defaultVanID: defaultVanID,
		cacheTTL:     cacheTTL,
		docMu:        make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockDocument(id string) func() {
	s.mu.Lock()
	l, ok := s.docMu[id]
	if !ok {
		l = &sync.Mutex{}
		s.docMu[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// resolveVan applies the default van and verifies the van exists.
func (s *Service) resolveVan(ctx context.Context, vanID string) (string, error) {
	vanID = strings.TrimSpace(vanID)
	if vanID == "" {
		vanID = s.defaultVanID
	}
	if vanID == "" {
		return "", ErrMissingVan
	}
	if _, err := s.repo.GetVanByID(ctx, vanID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrMissingVan
		}
		return "", err
	}
	return vanID, nil
}

func validateParty(customerID string, walkInName string) error {
	hasCustomer := strings.TrimSpace(customerID) != ""
	hasWalkIn := strings.TrimSpace(walkInName) != ""
	if hasCustomer == hasWalkIn {
		return ErrMissingParty
	}
	return nil
}

func validPaymentMode(mode string) bool {
	switch mode {
	case domain.PaymentModeCash, domain.PaymentModeCredit, domain.PaymentModeCard:
		return true
	}
	return false
}

// buildLines validates raw line inputs and resolves item names from the
// catalog. Totals stay zero here; the repository computes them at write time.
func (s *Service) buildLines(ctx context.Context, inputs []domain.LineItemInput) ([]domain.LineItem, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyDocument
	}

	seen := make(map[string]struct{}, len(inputs))
	lines := make([]domain.LineItem, 0, len(inputs))
	for _, in := range inputs {
		itemID := strings.TrimSpace(in.ItemID)
		if itemID == "" || !in.Quantity.IsPositive() || in.UnitPrice.IsNegative() {
			return nil, ErrInvalidLineItem
		}
		if _, dup := seen[itemID]; dup {
			return nil, store.ErrDuplicateItem
		}
		seen[itemID] = struct{}{}

		item, err := s.repo.GetItemByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidLineItem
			}
			return nil, err
		}

		lines = append(lines, domain.LineItem{
			ItemID:          itemID,
			ItemName:        item.Name,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      in.TaxPercent,
		})
	}
	return lines, nil
}

func parseDocumentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, store.ErrInvalidDocument
	}
	return parsed.UTC(), nil
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (domain.Invoice, error) {
	vanID, err := s.resolveVan(ctx, req.VanID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := validateParty(req.CustomerID, req.WalkInCustomerName); err != nil {
		return domain.Invoice{}, err
	}
	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(req.CustomerID)); err != nil {
			return domain.Invoice{}, err
		}
	}
	if req.PaymentMode == "" {
		req.PaymentMode = domain.PaymentModeCash
	}
	if !validPaymentMode(req.PaymentMode) {
		return domain.Invoice{}, store.ErrInvalidDocument
	}
	if req.PaidAmount.IsNegative() {
		return domain.Invoice{}, store.ErrInvalidDocument
	}

	lines, err := s.buildLines(ctx, req.Items)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoiceDate, err := parseDocumentDate(req.InvoiceDate)
	if err != nil {
		return domain.Invoice{}, err
	}

	created, err := s.repo.CreateInvoice(ctx, domain.Invoice{
		VanID:              vanID,
		CustomerID:         strings.TrimSpace(req.CustomerID),
		WalkInCustomerName: strings.TrimSpace(req.WalkInCustomerName),
		InvoiceDate:        invoiceDate,
		PaymentMode:        req.PaymentMode,
		PaidAmount:         req.PaidAmount,
		Items:              lines,
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logAudit(ctx, vanID, "invoice_create", "invoice", created.ID,
		fmt.Sprintf("number=%s,total=%s,status=%s", created.InvoiceNumber, created.TotalAmount, created.PaymentStatus))
	return *created, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Invoice{}, err
	}
	return *inv, nil
}

func (s *Service) GetInvoiceByNumber(ctx context.Context, number string) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoiceByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return domain.Invoice{}, err
	}
	return *inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) UpdateInvoice(ctx context.Context, id string, patch domain.InvoiceUpdateRequest) (domain.Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Invoice{}, store.ErrNotFound
	}

	unlock := s.lockDocument(id)
	defer unlock()

	existing, err := s.repo.GetInvoiceByID(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}

	customerID := existing.CustomerID
	walkIn := existing.WalkInCustomerName
	if patch.CustomerID != nil {
		customerID = *patch.CustomerID
	}
	if patch.WalkInCustomerName != nil {
		walkIn = *patch.WalkInCustomerName
	}
	if err := validateParty(customerID, walkIn); err != nil {
		return domain.Invoice{}, err
	}
	if patch.PaymentMode != nil && !validPaymentMode(*patch.PaymentMode) {
		return domain.Invoice{}, store.ErrInvalidDocument
	}
	if patch.PaidAmount != nil && patch.PaidAmount.IsNegative() {
		return domain.Invoice{}, store.ErrInvalidDocument
	}

	lines, err := s.buildLines(ctx, patch.Items)
	if err != nil {
		return domain.Invoice{}, err
	}
	patch.Items = lineItemsToInputs(lines)

	updated, err := s.repo.UpdateInvoice(ctx, id, patch)
	if err != nil {
		return domain.Invoice{}, err
	}
	// The repository works from raw inputs; carry resolved names onto the
	// result for callers that render it straight back.
	for i := range updated.Items {
		if updated.Items[i].ItemName == "" && i < len(lines) {
			updated.Items[i].ItemName = lines[i].ItemName
		}
	}

	s.logAudit(ctx, updated.VanID, "invoice_update", "invoice", updated.ID,
		fmt.Sprintf("number=%s,total=%s,status=%s", updated.InvoiceNumber, updated.TotalAmount, updated.PaymentStatus))
	return *updated, nil
}

func (s *Service) CreateReturn(ctx context.Context, req domain.ReturnCreateRequest) (domain.SalesReturn, error) {
	vanID, err := s.resolveVan(ctx, req.VanID)
	if err != nil {
		return domain.SalesReturn{}, err
	}
	if err := validateParty(req.CustomerID, req.WalkInCustomerName); err != nil {
		return domain.SalesReturn{}, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.SalesReturn{}, ErrMissingReason
	}
	if req.ReturnType != domain.ReturnTypeGood && req.ReturnType != domain.ReturnTypeDamage {
		return domain.SalesReturn{}, store.ErrInvalidDocument
	}
	if req.InvoiceID != "" {
		if _, err := s.repo.GetInvoiceByID(ctx, strings.TrimSpace(req.InvoiceID)); err != nil {
			return domain.SalesReturn{}, err
		}
	}

	lines, err := s.buildLines(ctx, req.Items)
	if err != nil {
		return domain.SalesReturn{}, err
	}
	returnDate, err := parseDocumentDate(req.ReturnDate)
	if err != nil {
		return domain.SalesReturn{}, err
	}

	created, err := s.repo.CreateReturn(ctx, domain.SalesReturn{
		VanID:              vanID,
		CustomerID:         strings.TrimSpace(req.CustomerID),
		WalkInCustomerName: strings.TrimSpace(req.WalkInCustomerName),
		InvoiceID:          strings.TrimSpace(req.InvoiceID),
		ReturnType:         req.ReturnType,
		Reason:             strings.TrimSpace(req.Reason),
		ReturnDate:         returnDate,
		Items:              lines,
	})
	if err != nil {
		return domain.SalesReturn{}, err
	}

	s.logAudit(ctx, vanID, "return_create", "sales_return", created.ID,
		fmt.Sprintf("number=%s,type=%s,total=%s", created.ReturnNumber, created.ReturnType, created.TotalAmount))
	return *created, nil
}

func (s *Service) GetReturn(ctx context.Context, id string) (domain.SalesReturn, error) {
	ret, err := s.repo.GetReturnByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SalesReturn{}, err
	}
	return *ret, nil
}

func (s *Service) ListReturns(ctx context.Context, filter domain.ReturnListFilter) ([]domain.SalesReturn, error) {
	return s.repo.ListReturns(ctx, filter)
}

func (s *Service) UpdateReturn(ctx context.Context, id string, patch domain.ReturnUpdateRequest) (domain.SalesReturn, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SalesReturn{}, store.ErrNotFound
	}

	unlock := s.lockDocument(id)
	defer unlock()

	if _, err := s.repo.GetReturnByID(ctx, id); err != nil {
		return domain.SalesReturn{}, err
	}
	if patch.ReturnType != nil && *patch.ReturnType != domain.ReturnTypeGood && *patch.ReturnType != domain.ReturnTypeDamage {
		return domain.SalesReturn{}, store.ErrInvalidDocument
	}
	if patch.Reason != nil && strings.TrimSpace(*patch.Reason) == "" {
		return domain.SalesReturn{}, ErrMissingReason
	}

	lines, err := s.buildLines(ctx, patch.Items)
	if err != nil {
		return domain.SalesReturn{}, err
	}
	patch.Items = lineItemsToInputs(lines)

	updated, err := s.repo.UpdateReturn(ctx, id, patch)
	if err != nil {
		return domain.SalesReturn{}, err
	}
	for i := range updated.Items {
		if updated.Items[i].ItemName == "" && i < len(lines) {
			updated.Items[i].ItemName = lines[i].ItemName
		}
	}

	s.logAudit(ctx, updated.VanID, "return_update", "sales_return", updated.ID,
		fmt.Sprintf("number=%s,total=%s", updated.ReturnNumber, updated.TotalAmount))
	return *updated, nil
}

// CreateReceipt records a standalone collection against a customer account.
// It never mutates the referenced invoice; reconciliation is a reporting
// concern.
func (s *Service) CreateReceipt(ctx context.Context, req domain.ReceiptCreateRequest) (domain.Receipt, error) {
	vanID, err := s.resolveVan(ctx, req.VanID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return domain.Receipt{}, ErrMissingParty
	}
	if _, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(req.CustomerID)); err != nil {
		return domain.Receipt{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Receipt{}, store.ErrInvalidDocument
	}
	if req.PaymentMode == "" {
		req.PaymentMode = domain.PaymentModeCash
	}
	if !validPaymentMode(req.PaymentMode) {
		return domain.Receipt{}, store.ErrInvalidDocument
	}
	if req.InvoiceID != "" {
		if _, err := s.repo.GetInvoiceByID(ctx, strings.TrimSpace(req.InvoiceID)); err != nil {
			return domain.Receipt{}, err
		}
	}
	receiptDate, err := parseDocumentDate(req.ReceiptDate)
	if err != nil {
		return domain.Receipt{}, err
	}

	created, err := s.repo.CreateReceipt(ctx, domain.Receipt{
		VanID:       vanID,
		CustomerID:  strings.TrimSpace(req.CustomerID),
		InvoiceID:   strings.TrimSpace(req.InvoiceID),
		Amount:      req.Amount,
		PaymentMode: req.PaymentMode,
		ReceiptDate: receiptDate,
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	s.logAudit(ctx, vanID, "receipt_create", "receipt", created.ID,
		fmt.Sprintf("number=%s,amount=%s", created.ReceiptNumber, created.Amount))
	return *created, nil
}

func (s *Service) GetReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	rcpt, err := s.repo.GetReceiptByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Receipt{}, err
	}
	return *rcpt, nil
}

func (s *Service) ListReceipts(ctx context.Context, filter domain.ReceiptListFilter) ([]domain.Receipt, error) {
	return s.repo.ListReceipts(ctx, filter)
}

func (s *Service) SearchItems(ctx context.Context, term string, limit int) ([]domain.Item, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	key := fmt.Sprintf("%s:%d", strings.ToLower(strings.TrimSpace(term)), limit)

	if cached, hit, err := s.catalogCache.GetItems(ctx, key); err == nil && hit {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: item cache read failed: %v", err)
	}

	items, err := s.repo.SearchItems(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if err := s.catalogCache.SetItems(ctx, key, items, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: item cache write failed: %v", err)
	}
	return items, nil
}

func (s *Service) SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	key := fmt.Sprintf("%s:%d", strings.ToLower(strings.TrimSpace(term)), limit)

	if cached, hit, err := s.catalogCache.GetCustomers(ctx, key); err == nil && hit {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: customer cache read failed: %v", err)
	}

	customers, err := s.repo.SearchCustomers(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if err := s.catalogCache.SetCustomers(ctx, key, customers, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: customer cache write failed: %v", err)
	}
	return customers, nil
}

func (s *Service) DailyReport(ctx context.Context, vanID string, date string) (domain.DailySalesReport, error) {
	vanID, err := s.resolveVan(ctx, vanID)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.DailySalesReport{}, store.ErrInvalidDocument
		}
		day = parsed.UTC()
	}

	return s.repo.DailySalesReport(ctx, vanID, day)
}

func (s *Service) ListAuditLogs(ctx context.Context, vanID string, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidDocument
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, vanID, from, to, limit)
}

// BuildInvoiceDocument assembles the print payload for an invoice. Every
// figure comes straight from storage; nothing is recomputed here.
func (s *Service) BuildInvoiceDocument(ctx context.Context, id string) (domain.PrintDocument, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.PrintDocument{}, err
	}

	partyName := inv.WalkInCustomerName
	if inv.CustomerID != "" {
		if customer, err := s.repo.GetCustomerByID(ctx, inv.CustomerID); err == nil {
			partyName = customer.Name
		}
	}

	return domain.PrintDocument{
		DocumentType:   "invoice",
		DocumentNumber: inv.InvoiceNumber,
		DocumentDate:   inv.InvoiceDate.Format("2006-01-02"),
		VanID:          inv.VanID,
		PartyName:      partyName,
		Items:          inv.Items,
		Subtotal:       inv.Subtotal,
		DiscountAmount: inv.DiscountAmount,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		PaidAmount:     inv.PaidAmount,
		BalanceAmount:  inv.BalanceAmount,
		PaymentStatus:  inv.PaymentStatus,
	}, nil
}

func (s *Service) BuildReturnDocument(ctx context.Context, id string) (domain.PrintDocument, error) {
	ret, err := s.repo.GetReturnByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.PrintDocument{}, err
	}

	partyName := ret.WalkInCustomerName
	if ret.CustomerID != "" {
		if customer, err := s.repo.GetCustomerByID(ctx, ret.CustomerID); err == nil {
			partyName = customer.Name
		}
	}

	return domain.PrintDocument{
		DocumentType:   "sales_return",
		DocumentNumber: ret.ReturnNumber,
		DocumentDate:   ret.ReturnDate.Format("2006-01-02"),
		VanID:          ret.VanID,
		PartyName:      partyName,
		Items:          ret.Items,
		Subtotal:       ret.Subtotal,
		DiscountAmount: ret.DiscountAmount,
		TaxAmount:      ret.TaxAmount,
		TotalAmount:    ret.TotalAmount,
	}, nil
}

// NextDocumentNumber exposes number allocation for devices that print a
// provisional slip before the document is persisted.
func (s *Service) NextDocumentNumber(ctx context.Context, docType string) (string, error) {
	var prefix string
	switch docType {
	case "invoice":
		prefix = docnum.PrefixInvoice
	case "sales_return":
		prefix = docnum.PrefixReturn
	case "receipt":
		prefix = docnum.PrefixReceipt
	default:
		return "", store.ErrInvalidDocument
	}
	return s.repo.NextDocumentNumber(ctx, prefix, time.Now().UTC())
}

func (s *Service) CreateSalesman(ctx context.Context, req domain.SalesmanCreateRequest) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "manager" {
		return ErrManagerRequired
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 8 {
		return store.ErrInvalidDocument
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      "salesman",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	s.logAudit(ctx, "", "salesman_create", "user", username, "")
	return nil
}

func (s *Service) logAudit(ctx context.Context, vanID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		VanID:         vanID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}

func lineItemsToInputs(lines []domain.LineItem) []domain.LineItemInput {
	inputs := make([]domain.LineItemInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, domain.LineItemInput{
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			TaxPercent:      line.TaxPercent,
		})
	}
	return inputs
}
