package model

import (
	"slices"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
)

type breakdownKey struct {
	rate     string
	category string
}

func keyOf(rate decimal.Decimal, category string) breakdownKey {
	// normalize "20", "20.0" and "20.00" to one key
	return breakdownKey{rate: rate.StringFixed(4), category: category}
}

// ComputeVatBreakdowns groups items by (rate, category) in order of first
// appearance. Document level charge and discount are spread over the groups
// pro rata to their basis so that the group bases add up to the tax basis;
// the last group absorbs the cent remainder.
func ComputeVatBreakdowns(items []InvoiceItem, charge, discount decimal.Decimal) []VatBreakdown {
	type group struct {
		key     breakdownKey
		rate    decimal.Decimal
		cat     string
		taxable decimal.Decimal
		vat     decimal.Decimal
	}

	var groups []*group
	index := make(map[breakdownKey]*group)

	for i := range items {
		it := &items[i]
		k := keyOf(it.TaxRate, it.VatCategory)
		g, ok := index[k]
		if !ok {
			g = &group{key: k, rate: it.TaxRate, cat: it.VatCategory}
			index[k] = g
			groups = append(groups, g)
		}
		g.taxable = g.taxable.Add(it.Amount)
		g.vat = g.vat.Add(money.CalculateVAT(it.Amount, it.TaxRate))
	}

	adjustment := charge.Sub(discount)

	result := make([]VatBreakdown, 0, len(groups))
	if adjustment.IsZero() {
		for _, g := range groups {
			result = append(result, VatBreakdown{
				VatCategory:      g.cat,
				VatRate:          g.rate,
				VatTaxableAmount: money.Round2(g.taxable),
				VatAmount:        money.Round2(g.vat),
			})
		}
		return result
	}

	bases := make([]decimal.Decimal, len(groups))
	for i, g := range groups {
		bases[i] = g.taxable
	}
	itemBasis := money.Sum(bases)

	allocated := money.Zero
	for i, g := range groups {
		share := money.Div(adjustment.Mul(g.taxable), itemBasis)
		if i == len(groups)-1 {
			share = adjustment.Sub(allocated)
		}
		allocated = allocated.Add(share)

		taxable := money.Round2(g.taxable.Add(share))
		result = append(result, VatBreakdown{
			VatCategory:      g.cat,
			VatRate:          g.rate,
			VatTaxableAmount: taxable,
			VatAmount:        money.Round2(money.CalculateVAT(taxable, g.rate)),
		})
	}
	return result
}

// Recalculate rebuilds the VAT breakdown and the four derived amounts from
// the items and the document level adjustments. It always starts from
// scratch, so calling it repeatedly yields identical results.
func (inv *Invoice) Recalculate() {
	taxBasis := inv.LineTotal().Add(inv.GlobalCharge).Sub(inv.GlobalDiscount)

	breakdowns := ComputeVatBreakdowns(inv.Items, inv.GlobalCharge, inv.GlobalDiscount)

	// exemption reasons are authored, not derived: keep them across rebuilds
	previous := make(map[breakdownKey]VatBreakdown, len(inv.VatBreakdowns))
	for _, b := range inv.VatBreakdowns {
		previous[keyOf(b.VatRate, b.VatCategory)] = b
	}
	vats := make([]decimal.Decimal, len(breakdowns))
	for i := range breakdowns {
		b := &breakdowns[i]
		if old, ok := previous[keyOf(b.VatRate, b.VatCategory)]; ok {
			b.ExemptionReason = old.ExemptionReason
			b.ExemptionReasonCode = old.ExemptionReasonCode
		}
		vats[i] = b.VatAmount
	}
	totalVat := money.Sum(vats)

	inv.VatBreakdowns = breakdowns
	inv.AmountExclVat = money.Round2(taxBasis)
	inv.TotalVat = money.Round2(totalVat)
	inv.AmountInclVat = inv.AmountExclVat.Add(inv.TotalVat)
	inv.AmountDueForPayment = money.Round2(inv.AmountInclVat.Sub(inv.PrepaidAmount).Add(inv.RoundingAmount))
}

// LineTotal returns the sum of the item amounts (BT-106)
func (inv *Invoice) LineTotal() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(inv.Items))
	for i := range inv.Items {
		amounts[i] = inv.Items[i].Amount
	}
	return money.Sum(amounts)
}

// SetItems replaces the items and recomputes totals
func (inv *Invoice) SetItems(items []InvoiceItem) {
	inv.Items = items
	inv.Recalculate()
}

// AddItem appends an item and recomputes totals
func (inv *Invoice) AddItem(item InvoiceItem) {
	inv.Items = append(inv.Items, item)
	inv.Recalculate()
}

// RemoveItem drops the item at index i; out of range indexes are ignored.
// The items slice is reallocated, so slices previously returned to callers
// are left untouched.
func (inv *Invoice) RemoveItem(i int) {
	if i < 0 || i >= len(inv.Items) {
		return
	}
	inv.Items = slices.Delete(slices.Clone(inv.Items), i, i+1)
	inv.Recalculate()
}

// SetItemQuantity edits the quantity of item i, recomputing its amount and the totals
func (inv *Invoice) SetItemQuantity(i int, q decimal.Decimal) {
	if i < 0 || i >= len(inv.Items) {
		return
	}
	inv.Items[i].SetQuantity(q)
	inv.Recalculate()
}

// SetItemUnitPrice edits the unit price of item i, recomputing its amount and the totals
func (inv *Invoice) SetItemUnitPrice(i int, p decimal.Decimal) {
	if i < 0 || i >= len(inv.Items) {
		return
	}
	inv.Items[i].SetUnitPrice(p)
	inv.Recalculate()
}

// SetGlobalCharge sets the document level charge (BT-99)
func (inv *Invoice) SetGlobalCharge(v decimal.Decimal) {
	inv.GlobalCharge = v
	inv.Recalculate()
}

// SetGlobalDiscount sets the document level allowance (BT-92)
func (inv *Invoice) SetGlobalDiscount(v decimal.Decimal) {
	inv.GlobalDiscount = v
	inv.Recalculate()
}

// SetPrepaidAmount sets the paid amount (BT-113)
func (inv *Invoice) SetPrepaidAmount(v decimal.Decimal) {
	inv.PrepaidAmount = v
	inv.Recalculate()
}

// SetRoundingAmount sets the rounding amount (BT-114)
func (inv *Invoice) SetRoundingAmount(v decimal.Decimal) {
	inv.RoundingAmount = v
	inv.Recalculate()
}
