package model

import (
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
)

// InvoiceType represents the logical document type
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "standard"
	InvoiceTypeCreditNote InvoiceType = "credit_note"
	InvoiceTypeCorrective InvoiceType = "corrective"
	InvoiceTypeSelfBilled InvoiceType = "self_billed"
)

// VAT category codes (UNCL5305 subset used by EN16931)
const (
	VatCategoryStandard     = "S"
	VatCategoryZero         = "Z"
	VatCategoryExempt       = "E"
	VatCategoryReverse      = "AE"
	VatCategoryIntraEU      = "K"
	VatCategoryExport       = "G"
	VatCategoryOutOfScope   = "O"
	DefaultCurrency         = "EUR"
	DefaultUnitCode         = "C62"
	DefaultPaymentMeansCode = "30"
)

// Invoice is a normalized invoice record. Field comments carry the EN16931
// business term each field maps to.
type Invoice struct {
	// Unique identifier
	ID string `json:"id"`

	// Header
	Type                   InvoiceType `json:"invoiceType"`
	InvoiceNumber          string      `json:"invoiceNumber"`                    // BT-1
	InvoiceDate            string      `json:"invoiceDate"`                      // BT-2, DD/MM/YYYY or YYYY-MM-DD
	DueDate                string      `json:"dueDate,omitempty"`                // BT-9
	Currency               string      `json:"currency"`                         // BT-5
	Note                   string      `json:"note,omitempty"`                   // BT-22
	PrecedingInvoiceNumber string      `json:"precedingInvoiceNumber,omitempty"` // BT-25

	// Seller
	Supplier          string `json:"supplier"`                    // BT-27
	SupplierSiret     string `json:"supplierSiret"`               // BT-30
	SupplierVatNumber string `json:"supplierVatNumber,omitempty"` // BT-31
	SupplierAddress   string `json:"supplierAddress,omitempty"`   // BT-35
	SupplierCity      string `json:"supplierCity,omitempty"`      // BT-37
	SupplierPostCode  string `json:"supplierPostCode,omitempty"`  // BT-38
	SupplierCountry   string `json:"supplierCountry,omitempty"`   // BT-40
	SupplierIban      string `json:"supplierIban,omitempty"`      // BT-84
	SupplierBic       string `json:"supplierBic,omitempty"`       // BT-86
	SupplierErpCode   string `json:"supplierErpCode,omitempty"`
	SupplierMatched   bool   `json:"supplierMatched"`

	// Buyer
	Buyer          string `json:"buyer"`                    // BT-44
	BuyerSiret     string `json:"buyerSiret,omitempty"`     // BT-47
	BuyerVatNumber string `json:"buyerVatNumber,omitempty"` // BT-48
	BuyerAddress   string `json:"buyerAddress,omitempty"`   // BT-50
	BuyerCity      string `json:"buyerCity,omitempty"`      // BT-52
	BuyerPostCode  string `json:"buyerPostCode,omitempty"`  // BT-53
	BuyerCountry   string `json:"buyerCountry,omitempty"`   // BT-55
	BuyerIban      string `json:"buyerIban,omitempty"`      // BT-91

	// References
	BuyerReference      string `json:"buyerReference,omitempty"`      // BT-10
	ProjectReference    string `json:"projectReference,omitempty"`    // BT-11
	ContractNumber      string `json:"contractNumber,omitempty"`      // BT-12
	PurchaseOrderNumber string `json:"purchaseOrderNumber,omitempty"` // BT-13
	SalesOrderReference string `json:"salesOrderReference,omitempty"` // BT-14
	DeliveryNoteNumber  string `json:"deliveryNoteNumber,omitempty"`  // BT-16
	DeliveryDate        string `json:"deliveryDate,omitempty"`        // BT-72
	PaymentReference    string `json:"paymentReference,omitempty"`    // BT-83
	PaymentMeansCode    string `json:"paymentMeansCode,omitempty"`    // BT-81

	// Line Items
	Items         []InvoiceItem  `json:"items"`
	VatBreakdowns []VatBreakdown `json:"vatBreakdowns"`

	// Document level adjustments
	GlobalCharge   decimal.Decimal `json:"globalCharge"`   // BT-99
	GlobalDiscount decimal.Decimal `json:"globalDiscount"` // BT-92
	PrepaidAmount  decimal.Decimal `json:"prepaidAmount"`  // BT-113
	RoundingAmount decimal.Decimal `json:"roundingAmount"` // BT-114

	// Derived by Recalculate, never authored
	AmountExclVat       decimal.Decimal `json:"amountExclVat"`       // BT-109
	TotalVat            decimal.Decimal `json:"totalVat"`            // BT-110
	AmountInclVat       decimal.Decimal `json:"amountInclVat"`       // BT-112
	AmountDueForPayment decimal.Decimal `json:"amountDueForPayment"` // BT-115

	// Metadata
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
	SourceFile string    `json:"sourceFile,omitempty"`
}

// InvoiceItem represents an invoice line
type InvoiceItem struct {
	ArticleID     string          `json:"articleId,omitempty"` // BT-155
	Description   string          `json:"description"`         // BT-153
	Quantity      decimal.Decimal `json:"quantity"`            // BT-129
	UnitOfMeasure string          `json:"unitOfMeasure"`       // BT-130
	UnitPrice     decimal.Decimal `json:"unitPrice"`           // BT-146
	Amount        decimal.Decimal `json:"amount"`              // BT-131
	TaxRate       decimal.Decimal `json:"taxRate"`             // BT-152
	VatCategory   string          `json:"vatCategory"`         // BT-151
}

// VatBreakdown aggregates one (rate, category) pair
type VatBreakdown struct {
	VatCategory         string          `json:"vatCategory"`                   // BT-118
	VatRate             decimal.Decimal `json:"vatRate"`                       // BT-119
	VatTaxableAmount    decimal.Decimal `json:"vatTaxableAmount"`              // BT-116
	VatAmount           decimal.Decimal `json:"vatAmount"`                     // BT-117
	ExemptionReason     string          `json:"exemptionReason,omitempty"`     // BT-120
	ExemptionReasonCode string          `json:"exemptionReasonCode,omitempty"` // BT-121
}

// SetQuantity updates the quantity and recomputes the line amount. This is
// the user edit path; amounts supplied by extraction are otherwise kept.
func (it *InvoiceItem) SetQuantity(q decimal.Decimal) {
	it.Quantity = q
	it.recomputeAmount()
}

// SetUnitPrice updates the unit price and recomputes the line amount
func (it *InvoiceItem) SetUnitPrice(p decimal.Decimal) {
	it.UnitPrice = p
	it.recomputeAmount()
}

// HasPricing reports whether both quantity and unit price are present
func (it *InvoiceItem) HasPricing() bool {
	return !it.Quantity.IsZero() && !it.UnitPrice.IsZero()
}

func (it *InvoiceItem) recomputeAmount() {
	it.Amount = money.Mul(it.Quantity, it.UnitPrice)
}

// EffectiveCurrency returns the invoice currency or the default
func (inv *Invoice) EffectiveCurrency() string {
	if inv.Currency == "" {
		return DefaultCurrency
	}
	return inv.Currency
}
