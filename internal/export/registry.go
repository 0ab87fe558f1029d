package export

import (
	"strconv"
	"strings"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
)

type invoiceAccessor func(*model.Invoice) Value
type itemAccessor func(*model.InvoiceItem) Value
type breakdownAccessor func(*model.VatBreakdown) Value

// invoiceFields is keyed by the lower-cased JSON name of each header field
var invoiceFields = map[string]invoiceAccessor{
	"id":                     func(i *model.Invoice) Value { return Text(i.ID) },
	"invoicetype":            func(i *model.Invoice) Value { return Text(string(i.Type)) },
	"typecode":               func(i *model.Invoice) Value { return Text(facturx.TypeCode(i.Type)) },
	"invoicenumber":          func(i *model.Invoice) Value { return Text(i.InvoiceNumber) },
	"invoicedate":            func(i *model.Invoice) Value { return Text(i.InvoiceDate) },
	"duedate":                func(i *model.Invoice) Value { return Text(i.DueDate) },
	"currency":               func(i *model.Invoice) Value { return Text(i.EffectiveCurrency()) },
	"note":                   func(i *model.Invoice) Value { return Text(i.Note) },
	"precedinginvoicenumber": func(i *model.Invoice) Value { return Text(i.PrecedingInvoiceNumber) },

	"supplier":          func(i *model.Invoice) Value { return Text(i.Supplier) },
	"suppliersiret":     func(i *model.Invoice) Value { return Text(i.SupplierSiret) },
	"suppliervatnumber": func(i *model.Invoice) Value { return Text(i.SupplierVatNumber) },
	"supplieraddress":   func(i *model.Invoice) Value { return Text(i.SupplierAddress) },
	"suppliercity":      func(i *model.Invoice) Value { return Text(i.SupplierCity) },
	"supplierpostcode":  func(i *model.Invoice) Value { return Text(i.SupplierPostCode) },
	"suppliercountry":   func(i *model.Invoice) Value { return Text(i.SupplierCountry) },
	"supplieriban":      func(i *model.Invoice) Value { return Text(i.SupplierIban) },
	"supplierbic":       func(i *model.Invoice) Value { return Text(i.SupplierBic) },
	"suppliererpcode":   func(i *model.Invoice) Value { return Text(i.SupplierErpCode) },
	"suppliermatched":   func(i *model.Invoice) Value { return Text(strconv.FormatBool(i.SupplierMatched)) },

	"buyer":          func(i *model.Invoice) Value { return Text(i.Buyer) },
	"buyersiret":     func(i *model.Invoice) Value { return Text(i.BuyerSiret) },
	"buyervatnumber": func(i *model.Invoice) Value { return Text(i.BuyerVatNumber) },
	"buyeraddress":   func(i *model.Invoice) Value { return Text(i.BuyerAddress) },
	"buyercity":      func(i *model.Invoice) Value { return Text(i.BuyerCity) },
	"buyerpostcode":  func(i *model.Invoice) Value { return Text(i.BuyerPostCode) },
	"buyercountry":   func(i *model.Invoice) Value { return Text(i.BuyerCountry) },
	"buyeriban":      func(i *model.Invoice) Value { return Text(i.BuyerIban) },

	"buyerreference":      func(i *model.Invoice) Value { return Text(i.BuyerReference) },
	"projectreference":    func(i *model.Invoice) Value { return Text(i.ProjectReference) },
	"contractnumber":      func(i *model.Invoice) Value { return Text(i.ContractNumber) },
	"purchaseordernumber": func(i *model.Invoice) Value { return Text(i.PurchaseOrderNumber) },
	"salesorderreference": func(i *model.Invoice) Value { return Text(i.SalesOrderReference) },
	"deliverynotenumber":  func(i *model.Invoice) Value { return Text(i.DeliveryNoteNumber) },
	"deliverydate":        func(i *model.Invoice) Value { return Text(i.DeliveryDate) },
	"paymentreference":    func(i *model.Invoice) Value { return Text(i.PaymentReference) },
	"paymentmeanscode":    func(i *model.Invoice) Value { return Text(i.PaymentMeansCode) },

	"globalcharge":        func(i *model.Invoice) Value { return Number(i.GlobalCharge) },
	"globaldiscount":      func(i *model.Invoice) Value { return Number(i.GlobalDiscount) },
	"prepaidamount":       func(i *model.Invoice) Value { return Number(i.PrepaidAmount) },
	"roundingamount":      func(i *model.Invoice) Value { return Number(i.RoundingAmount) },
	"linetotal":           func(i *model.Invoice) Value { return Number(i.LineTotal()) },
	"amountexclvat":       func(i *model.Invoice) Value { return Number(i.AmountExclVat) },
	"totalvat":            func(i *model.Invoice) Value { return Number(i.TotalVat) },
	"amountinclvat":       func(i *model.Invoice) Value { return Number(i.AmountInclVat) },
	"amountdueforpayment": func(i *model.Invoice) Value { return Number(i.AmountDueForPayment) },

	"receivedat": func(i *model.Invoice) Value { return Time(i.ReceivedAt) },
	"sourcefile": func(i *model.Invoice) Value { return Text(i.SourceFile) },
	"dedupkey":   func(i *model.Invoice) Value { return Text(dedup.InvoiceKey(i)) },
}

var itemFields = map[string]itemAccessor{
	"articleid":     func(it *model.InvoiceItem) Value { return Text(it.ArticleID) },
	"description":   func(it *model.InvoiceItem) Value { return Text(it.Description) },
	"quantity":      func(it *model.InvoiceItem) Value { return Number(it.Quantity) },
	"unitofmeasure": func(it *model.InvoiceItem) Value { return Text(it.UnitOfMeasure) },
	"unitprice":     func(it *model.InvoiceItem) Value { return Number(it.UnitPrice) },
	"amount":        func(it *model.InvoiceItem) Value { return Number(it.Amount) },
	"taxrate":       func(it *model.InvoiceItem) Value { return Number(it.TaxRate) },
	"vatcategory":   func(it *model.InvoiceItem) Value { return Text(it.VatCategory) },
}

var breakdownFields = map[string]breakdownAccessor{
	"vatcategory":         func(b *model.VatBreakdown) Value { return Text(b.VatCategory) },
	"vatrate":             func(b *model.VatBreakdown) Value { return Number(b.VatRate) },
	"vattaxableamount":    func(b *model.VatBreakdown) Value { return Number(b.VatTaxableAmount) },
	"vatamount":           func(b *model.VatBreakdown) Value { return Number(b.VatAmount) },
	"exemptionreason":     func(b *model.VatBreakdown) Value { return Text(b.ExemptionReason) },
	"exemptionreasoncode": func(b *model.VatBreakdown) Value { return Text(b.ExemptionReasonCode) },
}

// btAliases maps EN16931 business term ids to registry paths
var btAliases = map[string]string{
	"bt-1":   "invoice.invoiceNumber",
	"bt-2":   "invoice.invoiceDate",
	"bt-3":   "invoice.typeCode",
	"bt-5":   "invoice.currency",
	"bt-9":   "invoice.dueDate",
	"bt-10":  "invoice.buyerReference",
	"bt-11":  "invoice.projectReference",
	"bt-12":  "invoice.contractNumber",
	"bt-13":  "invoice.purchaseOrderNumber",
	"bt-14":  "invoice.salesOrderReference",
	"bt-16":  "invoice.deliveryNoteNumber",
	"bt-22":  "invoice.note",
	"bt-25":  "invoice.precedingInvoiceNumber",
	"bt-27":  "invoice.supplier",
	"bt-30":  "invoice.supplierSiret",
	"bt-31":  "invoice.supplierVatNumber",
	"bt-35":  "invoice.supplierAddress",
	"bt-37":  "invoice.supplierCity",
	"bt-38":  "invoice.supplierPostCode",
	"bt-40":  "invoice.supplierCountry",
	"bt-44":  "invoice.buyer",
	"bt-47":  "invoice.buyerSiret",
	"bt-48":  "invoice.buyerVatNumber",
	"bt-50":  "invoice.buyerAddress",
	"bt-52":  "invoice.buyerCity",
	"bt-53":  "invoice.buyerPostCode",
	"bt-55":  "invoice.buyerCountry",
	"bt-72":  "invoice.deliveryDate",
	"bt-81":  "invoice.paymentMeansCode",
	"bt-83":  "invoice.paymentReference",
	"bt-84":  "invoice.supplierIban",
	"bt-86":  "invoice.supplierBic",
	"bt-91":  "invoice.buyerIban",
	"bt-92":  "invoice.globalDiscount",
	"bt-99":  "invoice.globalCharge",
	"bt-106": "invoice.lineTotal",
	"bt-109": "invoice.amountExclVat",
	"bt-110": "invoice.totalVat",
	"bt-112": "invoice.amountInclVat",
	"bt-113": "invoice.prepaidAmount",
	"bt-114": "invoice.roundingAmount",
	"bt-115": "invoice.amountDueForPayment",
	"bt-129": "item.quantity",
	"bt-130": "item.unitOfMeasure",
	"bt-131": "item.amount",
	"bt-146": "item.unitPrice",
	"bt-151": "item.vatCategory",
	"bt-152": "item.taxRate",
	"bt-153": "item.description",
	"bt-155": "item.articleId",
}

// RowContext is the read-only view a column is evaluated against: one
// invoice and, when the invoice has lines, the current item.
type RowContext struct {
	Invoice *model.Invoice
	Item    *model.InvoiceItem
}

// Resolve looks up a dot path. Accepted forms are flattened names (item
// fields win over invoice fields), invoice.<field>, item.<field>,
// invoice.vatBreakdowns.<n>.<field>, invoice.items.<n>.<field> and BT ids.
// Names are case-insensitive. Unknown paths yield Null.
func (c *RowContext) Resolve(path string) Value {
	path = strings.TrimSpace(path)
	if path == "" || c == nil {
		return Null()
	}
	if alias, ok := btAliases[strings.ToLower(path)]; ok {
		path = alias
	}
	return resolve(rowScope{ctx: c}, strings.Split(strings.ToLower(path), "."))
}

// KnownField reports whether path names a registered field. Indexed paths
// are accepted without checking the index.
func KnownField(path string) bool {
	p := strings.ToLower(strings.TrimSpace(path))
	if alias, ok := btAliases[p]; ok {
		p = strings.ToLower(alias)
	}
	segs := strings.Split(p, ".")
	switch {
	case len(segs) == 1:
		return invoiceFields[segs[0]] != nil || itemFields[segs[0]] != nil
	case len(segs) == 2 && segs[0] == "invoice":
		return invoiceFields[segs[1]] != nil
	case len(segs) == 2 && segs[0] == "item":
		return itemFields[segs[1]] != nil
	case len(segs) == 4 && segs[0] == "invoice" && segs[1] == "vatbreakdowns":
		return breakdownFields[segs[3]] != nil
	case len(segs) == 4 && segs[0] == "invoice" && segs[1] == "items":
		return itemFields[segs[3]] != nil
	}
	return false
}

// scope is one level of the registry tree
type scope interface {
	field(name string) (Value, bool)
	child(name string) (scope, bool)
}

func resolve(s scope, segs []string) Value {
	if len(segs) == 0 {
		return Null()
	}
	if len(segs) == 1 {
		if v, ok := s.field(segs[0]); ok {
			return v
		}
		return Null()
	}
	next, ok := s.child(segs[0])
	if !ok {
		return Null()
	}
	return resolve(next, segs[1:])
}

type rowScope struct{ ctx *RowContext }

func (r rowScope) field(name string) (Value, bool) {
	if v, ok := (itemScope{item: r.ctx.Item}).field(name); ok {
		return v, true
	}
	return (invoiceScope{inv: r.ctx.Invoice}).field(name)
}

func (r rowScope) child(name string) (scope, bool) {
	switch name {
	case "invoice":
		return invoiceScope{inv: r.ctx.Invoice}, true
	case "item":
		return itemScope{item: r.ctx.Item}, true
	}
	return nil, false
}

type invoiceScope struct{ inv *model.Invoice }

func (s invoiceScope) field(name string) (Value, bool) {
	acc, ok := invoiceFields[name]
	if !ok {
		return Null(), false
	}
	if s.inv == nil {
		return Null(), true
	}
	return acc(s.inv), true
}

func (s invoiceScope) child(name string) (scope, bool) {
	if s.inv == nil {
		return nil, false
	}
	switch name {
	case "vatbreakdowns":
		return breakdownListScope{list: s.inv.VatBreakdowns}, true
	case "items":
		return itemListScope{list: s.inv.Items}, true
	}
	return nil, false
}

type itemScope struct{ item *model.InvoiceItem }

// field reports item fields as found even without a current item so the
// flattened lookup does not fall through to a same-named invoice field.
func (s itemScope) field(name string) (Value, bool) {
	acc, ok := itemFields[name]
	if !ok {
		return Null(), false
	}
	if s.item == nil {
		return Null(), true
	}
	return acc(s.item), true
}

func (s itemScope) child(string) (scope, bool) { return nil, false }

type breakdownListScope struct{ list []model.VatBreakdown }

func (s breakdownListScope) field(string) (Value, bool) { return Null(), false }

func (s breakdownListScope) child(name string) (scope, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= len(s.list) {
		return nil, false
	}
	return breakdownScope{b: &s.list[i]}, true
}

type breakdownScope struct{ b *model.VatBreakdown }

func (s breakdownScope) field(name string) (Value, bool) {
	acc, ok := breakdownFields[name]
	if !ok {
		return Null(), false
	}
	return acc(s.b), true
}

func (s breakdownScope) child(string) (scope, bool) { return nil, false }

type itemListScope struct{ list []model.InvoiceItem }

func (s itemListScope) field(string) (Value, bool) { return Null(), false }

func (s itemListScope) child(name string) (scope, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= len(s.list) {
		return nil, false
	}
	return itemScope{item: &s.list[i]}, true
}
