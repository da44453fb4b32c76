package billing

import (
	"testing"

	"github.com/shopspring/decimal"

	"vansales/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeLineFiveStepSequence(t *testing.T) {
	// qty=2, price=100, discount=10%, tax=5%
	r := ComputeLine(dec("2"), dec("100"), dec("10"), dec("5"))

	if !r.Subtotal.Equal(dec("200")) {
		t.Fatalf("subtotal: got %s, want 200.000", r.Subtotal)
	}
	if !r.DiscountAmount.Equal(dec("20")) {
		t.Fatalf("discount: got %s, want 20.000", r.DiscountAmount)
	}
	if !r.TaxableBase.Equal(dec("180")) {
		t.Fatalf("taxable base: got %s, want 180.000", r.TaxableBase)
	}
	if !r.TaxAmount.Equal(dec("9")) {
		t.Fatalf("tax: got %s, want 9.000", r.TaxAmount)
	}
	if !r.Total.Equal(dec("189")) {
		t.Fatalf("total: got %s, want 189.000", r.Total)
	}
}

func TestComputeLineRoundsEachStep(t *testing.T) {
	// qty=3, price=10.005: subtotal 30.015, 10% discount = 3.0015 which must
	// round to 3.002 before the taxable base is derived from it.
	r := ComputeLine(dec("3"), dec("10.005"), dec("10"), dec("5"))

	if !r.Subtotal.Equal(dec("30.015")) {
		t.Fatalf("subtotal: got %s, want 30.015", r.Subtotal)
	}
	if !r.DiscountAmount.Equal(dec("3.002")) {
		t.Fatalf("discount: got %s, want 3.002 (rounded before reuse)", r.DiscountAmount)
	}
	if !r.TaxableBase.Equal(dec("27.013")) {
		t.Fatalf("taxable base: got %s, want 27.013", r.TaxableBase)
	}
	// 27.013 * 0.05 = 1.35065 -> 1.351
	if !r.TaxAmount.Equal(dec("1.351")) {
		t.Fatalf("tax: got %s, want 1.351", r.TaxAmount)
	}
	if !r.Total.Equal(dec("28.364")) {
		t.Fatalf("total: got %s, want 28.364", r.Total)
	}
}

func TestComputeLineClampsPercents(t *testing.T) {
	r := ComputeLine(dec("1"), dec("100"), dec("150"), dec("-5"))
	if !r.DiscountAmount.Equal(dec("100")) {
		t.Fatalf("discount above 100%% should clamp to full subtotal, got %s", r.DiscountAmount)
	}
	if !r.TaxAmount.Equal(dec("0")) {
		t.Fatalf("negative tax percent should clamp to zero, got %s", r.TaxAmount)
	}
	if !r.Total.Equal(dec("0")) {
		t.Fatalf("total: got %s, want 0", r.Total)
	}
}

func TestAggregateSumsRoundedLines(t *testing.T) {
	lines := []LineResult{
		ComputeLine(dec("3"), dec("10.005"), dec("10"), dec("5")),
		ComputeLine(dec("2"), dec("100"), dec("10"), dec("5")),
	}

	totals := Aggregate(lines, dec("50"))

	if !totals.Subtotal.Equal(dec("230.015")) {
		t.Fatalf("subtotal: got %s, want 230.015", totals.Subtotal)
	}
	if !totals.Discount.Equal(dec("23.002")) {
		t.Fatalf("discount: got %s, want 23.002", totals.Discount)
	}
	if !totals.Tax.Equal(dec("10.351")) {
		t.Fatalf("tax: got %s, want 10.351", totals.Tax)
	}
	if !totals.Total.Equal(dec("217.364")) {
		t.Fatalf("total: got %s, want 217.364", totals.Total)
	}
	if !totals.Balance.Equal(dec("167.364")) {
		t.Fatalf("balance: got %s, want 167.364", totals.Balance)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	lines := []LineResult{
		ComputeLine(dec("5"), dec("12.345"), dec("7.5"), dec("15")),
		ComputeLine(dec("1"), dec("0.999"), dec("0"), dec("5")),
	}

	first := Aggregate(lines, dec("10"))
	second := Aggregate(lines, dec("10"))

	if !first.Total.Equal(second.Total) || !first.Balance.Equal(second.Balance) {
		t.Fatalf("aggregate not idempotent: %+v vs %+v", first, second)
	}
}

func TestAggregateAllowsNegativeBalance(t *testing.T) {
	lines := []LineResult{ComputeLine(dec("1"), dec("100"), dec("0"), dec("0"))}

	totals := Aggregate(lines, dec("150"))

	if !totals.Balance.Equal(dec("-50")) {
		t.Fatalf("overpayment must pass through unclamped, got %s", totals.Balance)
	}
}

func TestClassifyPaymentBoundaries(t *testing.T) {
	total := dec("100")

	if got := ClassifyPayment(total, dec("0")); got != domain.PaymentStatusPaid {
		t.Fatalf("balance 0: got %s, want paid", got)
	}
	if got := ClassifyPayment(total, dec("50")); got != domain.PaymentStatusPartial {
		t.Fatalf("balance 50: got %s, want partial", got)
	}
	if got := ClassifyPayment(total, dec("100")); got != domain.PaymentStatusUnpaid {
		t.Fatalf("balance == total must be unpaid, not partial, got %s", got)
	}
	if got := ClassifyPayment(total, dec("-5")); got != domain.PaymentStatusUnpaid {
		t.Fatalf("negative balance classifies as unpaid, got %s", got)
	}
}
