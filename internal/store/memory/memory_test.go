package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vansales/backend/internal/docnum"
	"vansales/backend/internal/domain"
	"vansales/backend/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func twoLineInvoice(t *testing.T, paid string) domain.Invoice {
	t.Helper()
	return domain.Invoice{
		VanID:       "van-01",
		CustomerID:  "cust-alnoor",
		InvoiceDate: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		PaymentMode: domain.PaymentModeCash,
		PaidAmount:  dec(t, paid),
		Items: []domain.LineItem{
			{ItemID: "item-rice-5kg", Quantity: dec(t, "2"), UnitPrice: dec(t, "100"), DiscountPercent: dec(t, "10"), TaxPercent: dec(t, "5")},
			{ItemID: "item-oil-1l", Quantity: dec(t, "3"), UnitPrice: dec(t, "10.005"), DiscountPercent: dec(t, "10"), TaxPercent: dec(t, "5")},
		},
	}
}

func TestCreateInvoiceComputesTotalsAndNumber(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateInvoice(ctx, twoLineInvoice(t, "50"))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if !strings.HasPrefix(created.InvoiceNumber, "INV-260901-") {
		t.Fatalf("unexpected invoice number %q", created.InvoiceNumber)
	}
	if got, want := created.TotalAmount.String(), "217.364"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if got, want := created.BalanceAmount.String(), "167.364"; got != want {
		t.Fatalf("balance = %s, want %s", got, want)
	}
	if created.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("status = %s, want partial", created.PaymentStatus)
	}
	if got, want := created.Items[0].LineTotal.String(), "189"; got != want {
		t.Fatalf("line 0 total = %s, want %s", got, want)
	}
}

func TestCreateInvoiceRejectsBadLines(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	inv := twoLineInvoice(t, "0")
	inv.Items = nil
	if _, err := s.CreateInvoice(ctx, inv); !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("empty items: got %v, want ErrInvalidDocument", err)
	}

	inv = twoLineInvoice(t, "0")
	inv.Items[1].ItemID = inv.Items[0].ItemID
	if _, err := s.CreateInvoice(ctx, inv); !errors.Is(err, store.ErrDuplicateItem) {
		t.Fatalf("duplicate item: got %v, want ErrDuplicateItem", err)
	}

	inv = twoLineInvoice(t, "0")
	inv.Items[0].Quantity = dec(t, "0")
	if _, err := s.CreateInvoice(ctx, inv); !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("zero quantity: got %v, want ErrInvalidDocument", err)
	}
}

func TestCreateInvoiceAtomicOnLineFailure(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	boom := fmt.Errorf("disk full")
	s.itemInsertHook = func(index int) error {
		if index == 1 {
			return boom
		}
		return nil
	}

	_, err := s.CreateInvoice(ctx, twoLineInvoice(t, "0"))
	var se *store.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want StorageError", err)
	}

	s.itemInsertHook = nil
	invoices, err := s.ListInvoices(ctx, domain.InvoiceListFilter{})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 0 {
		t.Fatalf("found %d invoices after failed create, want 0", len(invoices))
	}
}

func TestUpdateInvoiceAtomicOnLineFailure(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateInvoice(ctx, twoLineInvoice(t, "50"))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	boom := fmt.Errorf("connection reset")
	s.itemInsertHook = func(index int) error { return boom }

	_, err = s.UpdateInvoice(ctx, created.ID, domain.InvoiceUpdateRequest{
		Items: []domain.LineItemInput{
			{ItemID: "item-water-12", Quantity: dec(t, "1"), UnitPrice: dec(t, "5")},
		},
	})
	var se *store.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want StorageError", err)
	}

	s.itemInsertHook = nil
	after, err := s.GetInvoiceByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetInvoiceByID: %v", err)
	}
	if len(after.Items) != 2 || !after.TotalAmount.Equal(created.TotalAmount) {
		t.Fatalf("invoice mutated by failed update: items=%d total=%s", len(after.Items), after.TotalAmount)
	}
}

func TestUpdateInvoiceReplacesItemsAndRecomputes(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateInvoice(ctx, twoLineInvoice(t, "50"))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	paid := dec(t, "5.25")
	updated, err := s.UpdateInvoice(ctx, created.ID, domain.InvoiceUpdateRequest{
		PaidAmount: &paid,
		Items: []domain.LineItemInput{
			{ItemID: "item-water-12", Quantity: dec(t, "1"), UnitPrice: dec(t, "5"), TaxPercent: dec(t, "5")},
		},
	})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].ItemID != "item-water-12" {
		t.Fatalf("items not replaced: %+v", updated.Items)
	}
	if got, want := updated.TotalAmount.String(), "5.25"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", updated.PaymentStatus)
	}
	if updated.InvoiceNumber != created.InvoiceNumber {
		t.Fatalf("invoice number changed on update: %s -> %s", created.InvoiceNumber, updated.InvoiceNumber)
	}
	if !updated.InvoiceDate.Equal(created.InvoiceDate) {
		t.Fatalf("invoice date changed on update")
	}
}

func TestNextDocumentNumberMonotonicPerPrefixPerDay(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	seen := make(map[string]bool)
	var last string
	for i := 0; i < 200; i++ {
		num, err := s.NextDocumentNumber(ctx, "INV", day)
		if err != nil {
			t.Fatalf("NextDocumentNumber: %v", err)
		}
		if seen[num] {
			t.Fatalf("duplicate number %s", num)
		}
		seen[num] = true
		if last != "" && num <= last {
			t.Fatalf("numbers not increasing: %s after %s", num, last)
		}
		last = num
	}

	// A different prefix and a different day each start fresh.
	if num, _ := s.NextDocumentNumber(ctx, "SR", day); num != "SR-260901-000001" {
		t.Fatalf("fresh prefix: got %s", num)
	}
	nextDay := day.Add(24 * time.Hour)
	if num, _ := s.NextDocumentNumber(ctx, "INV", nextDay); num != "INV-260902-000001" {
		t.Fatalf("fresh day: got %s", num)
	}
}

func TestCreateReturnAndReceipt(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	ret, err := s.CreateReturn(ctx, domain.SalesReturn{
		VanID:      "van-01",
		CustomerID: "cust-alnoor",
		ReturnType: domain.ReturnTypeDamage,
		Reason:     "crushed cartons",
		ReturnDate: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		Items: []domain.LineItem{
			{ItemID: "item-biscuit", Quantity: dec(t, "4"), UnitPrice: dec(t, "6.75"), TaxPercent: dec(t, "5")},
		},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if !strings.HasPrefix(ret.ReturnNumber, "SR-260901-") {
		t.Fatalf("unexpected return number %q", ret.ReturnNumber)
	}
	if got, want := ret.TotalAmount.String(), "28.35"; got != want {
		t.Fatalf("return total = %s, want %s", got, want)
	}

	rcpt, err := s.CreateReceipt(ctx, domain.Receipt{
		VanID:       "van-01",
		CustomerID:  "cust-alnoor",
		Amount:      dec(t, "20.0005"),
		PaymentMode: domain.PaymentModeCash,
		ReceiptDate: time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if !strings.HasPrefix(rcpt.ReceiptNumber, "RCP-260901-") {
		t.Fatalf("unexpected receipt number %q", rcpt.ReceiptNumber)
	}
	if got, want := rcpt.Amount.String(), "20.001"; got != want {
		t.Fatalf("receipt amount = %s, want %s", got, want)
	}

	if _, err := s.CreateReceipt(ctx, domain.Receipt{CustomerID: "cust-alnoor", Amount: dec(t, "0")}); !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("zero-amount receipt: got %v, want ErrInvalidDocument", err)
	}
}

func TestDailySalesReport(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.CreateInvoice(ctx, twoLineInvoice(t, "50")); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	otherDay := twoLineInvoice(t, "0")
	otherDay.InvoiceDate = day.Add(48 * time.Hour)
	if _, err := s.CreateInvoice(ctx, otherDay); err != nil {
		t.Fatalf("CreateInvoice other day: %v", err)
	}
	if _, err := s.CreateReceipt(ctx, domain.Receipt{
		VanID: "van-01", CustomerID: "cust-alnoor",
		Amount: dec(t, "30"), PaymentMode: domain.PaymentModeCash,
		ReceiptDate: day.Add(9 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}

	report, err := s.DailySalesReport(ctx, "van-01", day)
	if err != nil {
		t.Fatalf("DailySalesReport: %v", err)
	}
	if report.Invoices != 1 {
		t.Fatalf("invoices = %d, want 1", report.Invoices)
	}
	if got, want := report.NetSales.String(), "217.364"; got != want {
		t.Fatalf("net sales = %s, want %s", got, want)
	}
	if report.Receipts != 1 || report.ReceiptTotal.String() != "30" {
		t.Fatalf("receipts = %d / %s, want 1 / 30", report.Receipts, report.ReceiptTotal)
	}
}

func TestSearchAndUsers(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	items, err := s.SearchItems(ctx, "rice", 10)
	if err != nil || len(items) != 1 || items[0].Code != "RICE-5KG" {
		t.Fatalf("SearchItems rice: %v %+v", err, items)
	}
	customers, err := s.SearchCustomers(ctx, "noor", 10)
	if err != nil || len(customers) != 1 {
		t.Fatalf("SearchCustomers noor: %v %+v", err, customers)
	}

	user, err := s.GetUserByUsername(ctx, "salesman")
	if err != nil || user.Role != "salesman" {
		t.Fatalf("GetUserByUsername: %v %+v", err, user)
	}
	if _, err := s.GetUserByUsername(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestCreateInvoiceDefaultsDateBeforeNumbering(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	inv := twoLineInvoice(t, "0")
	inv.InvoiceDate = time.Time{}
	created, err := s.CreateInvoice(ctx, inv)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if created.InvoiceDate.IsZero() {
		t.Fatalf("invoice date not defaulted")
	}
	wantStem := docnum.PrefixInvoice + "-" + docnum.DayKey(created.InvoiceDate) + "-"
	if !strings.HasPrefix(created.InvoiceNumber, wantStem) {
		t.Fatalf("invoice number %s does not carry day key %s", created.InvoiceNumber, wantStem)
	}
}

func TestNextNumberSeedsCounterFromStoredNumbers(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateInvoice(ctx, twoLineInvoice(t, "0"))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// A lost counter entry must be recovered from the stored numbers, not
	// restart at 1 and collide.
	delete(s.counters, docnum.PrefixInvoice+":"+docnum.DayKey(created.InvoiceDate))

	number, err := s.NextDocumentNumber(ctx, docnum.PrefixInvoice, created.InvoiceDate)
	if err != nil {
		t.Fatalf("NextDocumentNumber: %v", err)
	}
	if number == created.InvoiceNumber {
		t.Fatalf("reissued existing number %s", number)
	}
	if got, want := docnum.ParseSeq(number), docnum.ParseSeq(created.InvoiceNumber)+1; got != want {
		t.Fatalf("seq = %d, want %d", got, want)
	}
}
