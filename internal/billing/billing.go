// Package billing holds the pure money math for sales documents: the
// per-line calculator, the document totals aggregator, and the payment
// status classifier. Every intermediate amount is rounded to three decimal
// places before the next step uses it, so the stored numbers always match
// what a caller summing the rounded per-line values would display.
package billing

import (
	"github.com/shopspring/decimal"

	"vansales/backend/internal/domain"
)

// Scale is the number of decimal places tracked for money amounts.
const Scale = 3

var hundred = decimal.NewFromInt(100)

// Round3 rounds half away from zero to the money scale.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

type LineResult struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableBase    decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Paid     decimal.Decimal
	Balance  decimal.Decimal
}

// ComputeLine runs the five-step line calculation. Order matters: each step
// rounds before the next consumes it. Discount and tax percents outside
// [0,100] are clamped rather than rejected; quantity and price validity is
// the caller's entry guard, not this function's.
func ComputeLine(quantity, unitPrice, discountPercent, taxPercent decimal.Decimal) LineResult {
	discountPercent = clampPercent(discountPercent)
	taxPercent = clampPercent(taxPercent)

	subtotal := Round3(quantity.Mul(unitPrice))
	discountAmount := Round3(subtotal.Mul(discountPercent).Div(hundred))
	taxableBase := Round3(subtotal.Sub(discountAmount))
	taxAmount := Round3(taxableBase.Mul(taxPercent).Div(hundred))
	total := Round3(taxableBase.Add(taxAmount))

	return LineResult{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxableBase:    taxableBase,
		TaxAmount:      taxAmount,
		Total:          total,
	}
}

// Aggregate sums already-rounded per-line values into document totals.
// Summing per-line rather than recomputing from the aggregate subtotal is
// deliberate: the two can differ by a smallest unit and the per-line sum is
// what documents display. Balance is total minus paid, unclamped; a negative
// balance represents overpayment and is stored as-is.
func Aggregate(lines []LineResult, paid decimal.Decimal) Totals {
	var t Totals
	for _, line := range lines {
		t.Subtotal = t.Subtotal.Add(line.Subtotal)
		t.Discount = t.Discount.Add(line.DiscountAmount)
		t.Tax = t.Tax.Add(line.TaxAmount)
		t.Total = t.Total.Add(line.Total)
	}
	t.Paid = Round3(paid)
	t.Balance = Round3(t.Total.Sub(t.Paid))
	return t
}

// ClassifyPayment maps (total, balance) to a payment status.
// paid requires an exactly zero balance at storage precision. partial
// requires a strictly positive balance below total, so a fresh invoice with
// nothing paid (balance == total) is unpaid, not partial. Everything else,
// including a negative overpaid balance, is unpaid.
func ClassifyPayment(total, balance decimal.Decimal) string {
	switch {
	case balance.IsZero():
		return domain.PaymentStatusPaid
	case balance.IsPositive() && balance.LessThan(total):
		return domain.PaymentStatusPartial
	default:
		return domain.PaymentStatusUnpaid
	}
}

// ApplyLine copies a computed result onto a line item, keeping the persisted
// derived fields in lockstep with the calculator.
func ApplyLine(item *domain.LineItem, r LineResult) {
	item.Subtotal = r.Subtotal
	item.DiscountAmount = r.DiscountAmount
	item.TaxAmount = r.TaxAmount
	item.LineTotal = r.Total
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
