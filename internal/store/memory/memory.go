package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"vansales/backend/internal/billing"
	"vansales/backend/internal/docnum"
	"vansales/backend/internal/domain"
	"vansales/backend/internal/store"
	"vansales/backend/internal/xid"
)

// Store is the embedded fallback repository. All state lives behind one
// RWMutex; document writes are staged first and committed to the maps only
// once every row has been built, so a failure mid-write leaves nothing
// behind.
type Store struct {
	mu              sync.RWMutex
	items           map[string]domain.Item
	customers       map[string]domain.Customer
	vans            map[string]domain.Van
	invoicesByID    map[string]domain.Invoice
	invoiceIDByNum  map[string]string
	returnsByID     map[string]domain.SalesReturn
	receiptsByID    map[string]domain.Receipt
	counters        map[string]int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount

	// itemInsertHook simulates a row-level storage failure on the n-th line
	// item write of a document. Test use only.
	itemInsertHook func(index int) error
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_MANAGER_PASSWORD and SEED_SALESMAN_PASSWORD;
// hardcoded dev defaults are used with a warning when unset. Production
// deployments use PostgreSQL (DATABASE_URL) and never hit this path.
func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	salesmanPwd := envOr("SEED_SALESMAN_PASSWORD", "salesman123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_SALESMAN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MANAGER_PASSWORD and SEED_SALESMAN_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"manager", managerPwd, "manager"},
		{"salesman", salesmanPwd, "salesman"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
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

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewSeeded() *Store {
	items := []domain.Item{
		{ID: "item-rice-5kg", Code: "RICE-5KG", Name: "Basmati Rice 5kg", Category: "grocery", UnitPrice: price("12.500"), TaxPercent: price("5"), Active: true},
		{ID: "item-oil-1l", Code: "OIL-1L", Name: "Sunflower Oil 1L", Category: "grocery", UnitPrice: price("3.250"), TaxPercent: price("5"), Active: true},
		{ID: "item-water-12", Code: "WATER-12", Name: "Mineral Water 12x500ml", Category: "beverage", UnitPrice: price("2.400"), TaxPercent: price("0"), Active: true},
		{ID: "item-juice-1l", Code: "JUICE-1L", Name: "Orange Juice 1L", Category: "beverage", UnitPrice: price("1.950"), TaxPercent: price("5"), Active: true},
		{ID: "item-biscuit", Code: "BISC-24", Name: "Tea Biscuits 24pk", Category: "snack", UnitPrice: price("6.750"), TaxPercent: price("5"), Active: true},
		{ID: "item-soap-6", Code: "SOAP-6", Name: "Bar Soap 6pk", Category: "household", UnitPrice: price("4.200"), TaxPercent: price("5"), Active: true},
		{ID: "item-tissue", Code: "TISSUE-10", Name: "Facial Tissue 10pk", Category: "household", UnitPrice: price("8.100"), TaxPercent: price("5"), Active: true},
		{ID: "item-milk-2l", Code: "MILK-2L", Name: "Fresh Milk 2L", Category: "dairy", UnitPrice: price("2.850"), TaxPercent: price("0"), Active: true},
	}

	customers := []domain.Customer{
		{ID: "cust-alnoor", Name: "Al Noor Grocery", Phone: "+968 9123 0001", Address: "Souq Street 4, Muttrah", Active: true},
		{ID: "cust-greenhill", Name: "Green Hill Minimart", Phone: "+968 9123 0002", Address: "Hill Road 12, Ruwi", Active: true},
		{ID: "cust-sadiq", Name: "Sadiq Trading", Phone: "+968 9123 0003", Address: "Industrial Area 2", Active: true},
		{ID: "cust-coastal", Name: "Coastal Supermarket", Phone: "+968 9123 0004", Address: "Corniche 8, Qurum", Active: true},
	}

	vans := []domain.Van{
		{ID: "van-01", Name: "Van 01 - Muscat", PlateNumber: "MCT-4471", Salesman: "salesman", Active: true},
		{ID: "van-02", Name: "Van 02 - Batinah", PlateNumber: "BAT-1190", Salesman: "salesman", Active: true},
	}

	s := &Store{
		items:           make(map[string]domain.Item, len(items)),
		customers:       make(map[string]domain.Customer, len(customers)),
		vans:            make(map[string]domain.Van, len(vans)),
		invoicesByID:    make(map[string]domain.Invoice),
		invoiceIDByNum:  make(map[string]string),
		returnsByID:     make(map[string]domain.SalesReturn),
		receiptsByID:    make(map[string]domain.Receipt),
		counters:        make(map[string]int64),
		usersByUsername: seedUsers(),
	}
	for _, it := range items {
		s.items[it.ID] = it
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	for _, v := range vans {
		s.vans[v.ID] = v
	}
	return s
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

func (s *Store) SearchItems(_ context.Context, term string, limit int) ([]domain.Item, error) {
	if limit < 1 {
		limit = 50
	}
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Item, 0, limit)
	for _, item := range s.items {
		if !item.Active {
			continue
		}
		if term == "" || strings.Contains(strings.ToLower(item.Name), term) || strings.Contains(strings.ToLower(item.Code), term) {
			matches = append(matches, item)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) SearchCustomers(_ context.Context, term string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Customer, 0, limit)
	for _, customer := range s.customers {
		if !customer.Active {
			continue
		}
		if term == "" || strings.Contains(strings.ToLower(customer.Name), term) || strings.Contains(customer.Phone, term) {
			matches = append(matches, customer)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) GetVanByID(_ context.Context, id string) (*domain.Van, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	van, ok := s.vans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &van, nil
}

// computeLines recomputes every derived line field from the raw inputs and
// returns the billing results alongside. Caller holds the write lock.
func (s *Store) computeLines(items []domain.LineItem) ([]domain.LineItem, []billing.LineResult, error) {
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

		if catalog, ok := s.items[item.ItemID]; ok && item.ItemName == "" {
			item.ItemName = catalog.Name
		}

		r := billing.ComputeLine(item.Quantity, item.UnitPrice, item.DiscountPercent, item.TaxPercent)
		billing.ApplyLine(&item, r)
		computed = append(computed, item)
		results = append(results, r)
	}
	return computed, results, nil
}

// insertLines walks the staged line rows, firing the failure hook the way a
// real row insert would fail. Nothing is committed by this walk.
func (s *Store) insertLines(lines []domain.LineItem) error {
	for i := range lines {
		if s.itemInsertHook != nil {
			if err := s.itemInsertHook(i); err != nil {
				return store.WrapStorage("insert line item", err)
			}
		}
	}
	return nil
}

func (s *Store) nextNumberLocked(prefix string, date time.Time) string {
	dayKey := docnum.DayKey(date)
	key := prefix + ":" + dayKey
	if _, ok := s.counters[key]; !ok {
		s.counters[key] = s.maxSeqLocked(prefix, dayKey)
	}
	s.counters[key]++
	return docnum.Format(prefix, date, s.counters[key])
}

// maxSeqLocked recovers the highest sequence already stored for a prefix and
// day, so a missing counter entry cannot hand out numbers that collide with
// existing documents.
func (s *Store) maxSeqLocked(prefix string, dayKey string) int64 {
	stem := prefix + "-" + dayKey + "-"
	var max int64
	bump := func(number string) {
		if strings.HasPrefix(number, stem) {
			if seq := docnum.ParseSeq(number); seq > max {
				max = seq
			}
		}
	}
	switch prefix {
	case docnum.PrefixInvoice:
		for _, inv := range s.invoicesByID {
			bump(inv.InvoiceNumber)
		}
	case docnum.PrefixReturn:
		for _, ret := range s.returnsByID {
			bump(ret.ReturnNumber)
		}
	case docnum.PrefixReceipt:
		for _, rcpt := range s.receiptsByID {
			bump(rcpt.ReceiptNumber)
		}
	}
	return max
}

func (s *Store) CreateInvoice(_ context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, results, err := s.computeLines(inv.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.Aggregate(results, inv.PaidAmount)
	now := time.Now().UTC()
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = s.nextNumberLocked(docnum.PrefixInvoice, inv.InvoiceDate)
	}
	inv.Items = items
	inv.Subtotal = totals.Subtotal
	inv.DiscountAmount = totals.Discount
	inv.TaxAmount = totals.Tax
	inv.TotalAmount = totals.Total
	inv.PaidAmount = totals.Paid
	inv.BalanceAmount = totals.Balance
	inv.PaymentStatus = billing.ClassifyPayment(totals.Total, totals.Balance)
	inv.CreatedAt = now
	inv.UpdatedAt = now

	if err := s.insertLines(inv.Items); err != nil {
		return nil, err
	}

	s.invoicesByID[inv.ID] = cloneInvoice(inv)
	s.invoiceIDByNum[inv.InvoiceNumber] = inv.ID
	created := cloneInvoice(inv)
	return &created, nil
}

func (s *Store) GetInvoiceByID(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneInvoice(inv)
	return &found, nil
}

func (s *Store) GetInvoiceByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.invoiceIDByNum[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	inv := cloneInvoice(s.invoicesByID[id])
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Invoice, 0, limit)
	for _, inv := range s.invoicesByID {
		if filter.VanID != "" && inv.VanID != filter.VanID {
			continue
		}
		if filter.CustomerID != "" && inv.CustomerID != filter.CustomerID {
			continue
		}
		if filter.PaymentStatus != "" && inv.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if !filter.From.IsZero() && inv.InvoiceDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !inv.InvoiceDate.Before(filter.To) {
			continue
		}
		matches = append(matches, cloneInvoice(inv))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) UpdateInvoice(_ context.Context, id string, patch domain.InvoiceUpdateRequest) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	updated := cloneInvoice(stored)
	if patch.CustomerID != nil {
		updated.CustomerID = *patch.CustomerID
	}
	if patch.WalkInCustomerName != nil {
		updated.WalkInCustomerName = *patch.WalkInCustomerName
	}
	if patch.PaymentMode != nil {
		updated.PaymentMode = *patch.PaymentMode
	}
	if patch.PaidAmount != nil {
		updated.PaidAmount = *patch.PaidAmount
	}

	updated.Items = lineInputsToItems(patch.Items)
	items, results, err := s.computeLines(updated.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.Aggregate(results, updated.PaidAmount)
	updated.Items = items
	updated.Subtotal = totals.Subtotal
	updated.DiscountAmount = totals.Discount
	updated.TaxAmount = totals.Tax
	updated.TotalAmount = totals.Total
	updated.PaidAmount = totals.Paid
	updated.BalanceAmount = totals.Balance
	updated.PaymentStatus = billing.ClassifyPayment(totals.Total, totals.Balance)
	updated.UpdatedAt = time.Now().UTC()

	if err := s.insertLines(updated.Items); err != nil {
		return nil, err
	}

	s.invoicesByID[id] = cloneInvoice(updated)
	return &updated, nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.SalesReturn) (*domain.SalesReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, results, err := s.computeLines(ret.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.Aggregate(results, decimal.Zero)
	now := time.Now().UTC()
	if ret.ID == "" {
		ret.ID = xid.New("sret")
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = now
	}
	if ret.ReturnNumber == "" {
		ret.ReturnNumber = s.nextNumberLocked(docnum.PrefixReturn, ret.ReturnDate)
	}
	ret.Items = items
	ret.Subtotal = totals.Subtotal
	ret.DiscountAmount = totals.Discount
	ret.TaxAmount = totals.Tax
	ret.TotalAmount = totals.Total
	ret.CreatedAt = now
	ret.UpdatedAt = now

	if err := s.insertLines(ret.Items); err != nil {
		return nil, err
	}

	s.returnsByID[ret.ID] = cloneReturn(ret)
	created := cloneReturn(ret)
	return &created, nil
}

func (s *Store) GetReturnByID(_ context.Context, id string) (*domain.SalesReturn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret, ok := s.returnsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneReturn(ret)
	return &found, nil
}

func (s *Store) ListReturns(_ context.Context, filter domain.ReturnListFilter) ([]domain.SalesReturn, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.SalesReturn, 0, limit)
	for _, ret := range s.returnsByID {
		if filter.VanID != "" && ret.VanID != filter.VanID {
			continue
		}
		if filter.CustomerID != "" && ret.CustomerID != filter.CustomerID {
			continue
		}
		if filter.InvoiceID != "" && ret.InvoiceID != filter.InvoiceID {
			continue
		}
		if filter.ReturnType != "" && ret.ReturnType != filter.ReturnType {
			continue
		}
		matches = append(matches, cloneReturn(ret))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) UpdateReturn(_ context.Context, id string, patch domain.ReturnUpdateRequest) (*domain.SalesReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.returnsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	updated := cloneReturn(stored)
	if patch.ReturnType != nil {
		updated.ReturnType = *patch.ReturnType
	}
	if patch.Reason != nil {
		updated.Reason = *patch.Reason
	}

	updated.Items = lineInputsToItems(patch.Items)
	items, results, err := s.computeLines(updated.Items)
	if err != nil {
		return nil, err
	}

	totals := billing.Aggregate(results, decimal.Zero)
	updated.Items = items
	updated.Subtotal = totals.Subtotal
	updated.DiscountAmount = totals.Discount
	updated.TaxAmount = totals.Tax
	updated.TotalAmount = totals.Total
	updated.UpdatedAt = time.Now().UTC()

	if err := s.insertLines(updated.Items); err != nil {
		return nil, err
	}

	s.returnsByID[id] = cloneReturn(updated)
	return &updated, nil
}

func (s *Store) CreateReceipt(_ context.Context, rcpt domain.Receipt) (*domain.Receipt, error) {
	if rcpt.CustomerID == "" || !rcpt.Amount.IsPositive() {
		return nil, store.ErrInvalidDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rcpt.ID == "" {
		rcpt.ID = xid.New("rcpt")
	}
	if rcpt.ReceiptDate.IsZero() {
		rcpt.ReceiptDate = now
	}
	if rcpt.ReceiptNumber == "" {
		rcpt.ReceiptNumber = s.nextNumberLocked(docnum.PrefixReceipt, rcpt.ReceiptDate)
	}
	rcpt.Amount = billing.Round3(rcpt.Amount)
	rcpt.CreatedAt = now

	s.receiptsByID[rcpt.ID] = rcpt
	created := rcpt
	return &created, nil
}

func (s *Store) GetReceiptByID(_ context.Context, id string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rcpt, ok := s.receiptsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rcpt, nil
}

func (s *Store) ListReceipts(_ context.Context, filter domain.ReceiptListFilter) ([]domain.Receipt, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Receipt, 0, limit)
	for _, rcpt := range s.receiptsByID {
		if filter.VanID != "" && rcpt.VanID != filter.VanID {
			continue
		}
		if filter.CustomerID != "" && rcpt.CustomerID != filter.CustomerID {
			continue
		}
		if filter.InvoiceID != "" && rcpt.InvoiceID != filter.InvoiceID {
			continue
		}
		matches = append(matches, rcpt)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) NextDocumentNumber(_ context.Context, prefix string, date time.Time) (string, error) {
	if prefix == "" {
		return "", store.ErrInvalidDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextNumberLocked(prefix, date), nil
}

func (s *Store) DailySalesReport(_ context.Context, vanID string, day time.Time) (domain.DailySalesReport, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	report := domain.DailySalesReport{
		VanID: vanID,
		Date:  from.Format("2006-01-02"),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoicesByID {
		if inv.VanID != vanID || inv.InvoiceDate.Before(from) || !inv.InvoiceDate.Before(to) {
			continue
		}
		report.Invoices++
		report.GrossSales = report.GrossSales.Add(inv.Subtotal)
		report.DiscountTotal = report.DiscountTotal.Add(inv.DiscountAmount)
		report.TaxTotal = report.TaxTotal.Add(inv.TaxAmount)
		report.NetSales = report.NetSales.Add(inv.TotalAmount)
		report.CollectedOnSale = report.CollectedOnSale.Add(inv.PaidAmount)
	}
	for _, rcpt := range s.receiptsByID {
		if rcpt.VanID != vanID || rcpt.ReceiptDate.Before(from) || !rcpt.ReceiptDate.Before(to) {
			continue
		}
		report.Receipts++
		report.ReceiptTotal = report.ReceiptTotal.Add(rcpt.Amount)
	}
	for _, ret := range s.returnsByID {
		if ret.VanID != vanID || ret.ReturnDate.Before(from) || !ret.ReturnDate.Before(to) {
			continue
		}
		report.ReturnTotal = report.ReturnTotal.Add(ret.TotalAmount)
	}

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, vanID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if vanID != "" && entry.VanID != vanID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidDocument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("user %s already exists", user.Username)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok || !user.Active {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
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

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Items = append([]domain.LineItem(nil), inv.Items...)
	return out
}

func cloneReturn(ret domain.SalesReturn) domain.SalesReturn {
	out := ret
	out.Items = append([]domain.LineItem(nil), ret.Items...)
	return out
}
