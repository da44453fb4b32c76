package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vansales/backend/internal/domain"
	"vansales/backend/internal/store"
)

func TestInvoiceUpdateReplacesItemsAtomically(t *testing.T) {
	databaseURL := os.Getenv("VANSALES_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VANSALES_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	vanID := fmt.Sprintf("van-it-%d", stamp)
	itemA := fmt.Sprintf("item-it-a-%d", stamp)
	itemB := fmt.Sprintf("item-it-b-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id IN (SELECT id FROM invoices WHERE van_id = $1)`, vanID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE van_id = $1`, vanID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE id IN ($1, $2)`, itemA, itemB)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM vans WHERE id = $1`, vanID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO vans (id, name, plate_number, salesman, active)
		VALUES ($1, 'Van IT', 'IT-0001', 'salesman', true)
	`, vanID); err != nil {
		t.Fatalf("insert van: %v", err)
	}
	for _, itemID := range []string{itemA, itemB} {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO items (id, code, name, category, unit_price, tax_percent, active)
			VALUES ($1, $1, 'Item IT', 'grocery', 10.000, 5, true)
		`, itemID); err != nil {
			t.Fatalf("insert item: %v", err)
		}
	}

	created, err := s.CreateInvoice(ctx, domain.Invoice{
		VanID:              vanID,
		WalkInCustomerName: "Walk-in IT",
		InvoiceDate:        time.Now().UTC(),
		PaymentMode:        domain.PaymentModeCash,
		PaidAmount:         decimal.RequireFromString("10"),
		Items: []domain.LineItem{
			{ItemID: itemA, Quantity: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("10"), TaxPercent: decimal.RequireFromString("5")},
			{ItemID: itemB, Quantity: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("10")},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if got, want := created.TotalAmount.String(), "31"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}

	// A patch with a bad line must leave the stored document untouched.
	_, err = s.UpdateInvoice(ctx, created.ID, domain.InvoiceUpdateRequest{
		Items: []domain.LineItemInput{
			{ItemID: itemA, Quantity: decimal.RequireFromString("0"), UnitPrice: decimal.RequireFromString("10")},
		},
	})
	if !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("bad patch: got %v, want ErrInvalidDocument", err)
	}
	var itemCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoice_items WHERE invoice_id = $1`, created.ID).Scan(&itemCount); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 2 {
		t.Fatalf("items after failed update = %d, want 2", itemCount)
	}

	updated, err := s.UpdateInvoice(ctx, created.ID, domain.InvoiceUpdateRequest{
		Items: []domain.LineItemInput{
			{ItemID: itemB, Quantity: decimal.RequireFromString("3"), UnitPrice: decimal.RequireFromString("10")},
		},
	})
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].ItemID != itemB {
		t.Fatalf("items not replaced: %+v", updated.Items)
	}
	if got, want := updated.TotalAmount.String(), "30"; got != want {
		t.Fatalf("updated total = %s, want %s", got, want)
	}
	if updated.InvoiceNumber != created.InvoiceNumber {
		t.Fatalf("invoice number changed on update")
	}

	// Replaced rows must keep their catalog display names.
	var storedName string
	if err := s.db.QueryRowContext(ctx, `SELECT item_name FROM invoice_items WHERE invoice_id = $1`, created.ID).Scan(&storedName); err != nil {
		t.Fatalf("read item name: %v", err)
	}
	if storedName != "Item IT" {
		t.Fatalf("stored item name after update = %q, want %q", storedName, "Item IT")
	}
	fetched, err := s.GetInvoiceByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].ItemName != "Item IT" {
		t.Fatalf("fetched items lost their names: %+v", fetched.Items)
	}
}
