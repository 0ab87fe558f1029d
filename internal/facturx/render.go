// Package facturx renders invoices as EN16931 Cross Industry Invoice (CII)
// documents, the XML payload embedded in Factur-X PDFs.
package facturx

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/xmlwriter"
)

// Namespaces of the CII D16B schema
const (
	NamespaceRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NamespaceQDT = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
	NamespaceRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NamespaceXS  = "http://www.w3.org/2001/XMLSchema"
	NamespaceUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
)

// GuidelineEN16931 identifies the EN16931 (COMFORT) profile
const GuidelineEN16931 = "urn:cen.eu:en16931:2017"

// dateFormat102 is the UNTDID 2379 code for CCYYMMDD
const dateFormat102 = "102"

// Document type codes (UNTDID 1001)
const (
	TypeCodeInvoice    = "380"
	TypeCodeCreditNote = "381"
	TypeCodeCorrective = "384"
	TypeCodeSelfBilled = "389"
)

type options struct {
	declaration bool
	guideline   string
	indent      string
}

// Option configures Render
type Option func(*options)

// WithoutDeclaration omits the leading XML declaration
func WithoutDeclaration() Option {
	return func(o *options) {
		o.declaration = false
	}
}

// WithGuideline overrides the guideline id, e.g. for a stricter Factur-X
// profile URN.
func WithGuideline(id string) Option {
	return func(o *options) {
		o.guideline = id
	}
}

// WithIndent sets the indentation unit
func WithIndent(indent string) Option {
	return func(o *options) {
		o.indent = indent
	}
}

// TypeCode maps the logical invoice type to its document type code.
// Unknown types are rendered as a commercial invoice.
func TypeCode(t model.InvoiceType) string {
	switch t {
	case model.InvoiceTypeCreditNote:
		return TypeCodeCreditNote
	case model.InvoiceTypeCorrective:
		return TypeCodeCorrective
	case model.InvoiceTypeSelfBilled:
		return TypeCodeSelfBilled
	default:
		return TypeCodeInvoice
	}
}

// Render serializes inv as a CII document. It reads the invoice as is:
// derived amounts must already be computed by Recalculate. No validation is
// performed and missing mandatory data yields empty elements.
func Render(inv *model.Invoice, opts ...Option) string {
	o := options{declaration: true, guideline: GuidelineEN16931, indent: "  "}
	for _, opt := range opts {
		opt(&o)
	}

	root := xmlwriter.New("rsm:CrossIndustryInvoice",
		xmlwriter.Attr{Name: "xmlns:rsm", Value: NamespaceRSM},
		xmlwriter.Attr{Name: "xmlns:qdt", Value: NamespaceQDT},
		xmlwriter.Attr{Name: "xmlns:ram", Value: NamespaceRAM},
		xmlwriter.Attr{Name: "xmlns:xs", Value: NamespaceXS},
		xmlwriter.Attr{Name: "xmlns:udt", Value: NamespaceUDT},
	)

	root.Child("rsm:ExchangedDocumentContext").
		Child("ram:GuidelineSpecifiedDocumentContextParameter").
		Text("ram:ID", o.guideline)

	writeExchangedDocument(root.Child("rsm:ExchangedDocument"), inv)

	tx := root.Child("rsm:SupplyChainTradeTransaction")
	for i := range inv.Items {
		writeLineItem(tx, i+1, &inv.Items[i])
	}
	writeAgreement(tx.Child("ram:ApplicableHeaderTradeAgreement"), inv)
	writeDelivery(tx.Child("ram:ApplicableHeaderTradeDelivery"), inv)
	writeSettlement(tx.Child("ram:ApplicableHeaderTradeSettlement"), inv)

	return xmlwriter.Render(root, xmlwriter.Options{Indent: o.indent, Declaration: o.declaration})
}

func writeExchangedDocument(doc *xmlwriter.Element, inv *model.Invoice) {
	doc.Text("ram:ID", inv.InvoiceNumber)
	doc.Text("ram:TypeCode", TypeCode(inv.Type))
	writeDate(doc.Child("ram:IssueDateTime"), inv.InvoiceDate)
	if strings.TrimSpace(inv.Note) != "" {
		doc.Child("ram:IncludedNote").Text("ram:Content", inv.Note)
	}
}

func writeLineItem(tx *xmlwriter.Element, lineID int, it *model.InvoiceItem) {
	line := tx.Child("ram:IncludedSupplyChainTradeLineItem")
	line.Child("ram:AssociatedDocumentLineDocument").Text("ram:LineID", strconv.Itoa(lineID))

	product := line.Child("ram:SpecifiedTradeProduct")
	product.TextIf("ram:SellerAssignedID", it.ArticleID)
	product.Text("ram:Name", it.Description)

	line.Child("ram:SpecifiedLineTradeAgreement").
		Child("ram:NetPriceProductTradePrice").
		Text("ram:ChargeAmount", money.Format4(it.UnitPrice))

	unit := it.UnitOfMeasure
	if strings.TrimSpace(unit) == "" {
		unit = model.DefaultUnitCode
	}
	line.Child("ram:SpecifiedLineTradeDelivery").
		Text("ram:BilledQuantity", money.Format4(it.Quantity), xmlwriter.Attr{Name: "unitCode", Value: unit})

	settlement := line.Child("ram:SpecifiedLineTradeSettlement")
	tax := settlement.Child("ram:ApplicableTradeTax")
	tax.Text("ram:TypeCode", "VAT")
	tax.Text("ram:CategoryCode", it.VatCategory)
	tax.Text("ram:RateApplicablePercent", money.Format2(it.TaxRate))
	settlement.Child("ram:SpecifiedTradeSettlementLineMonetarySummation").
		Text("ram:LineTotalAmount", money.Format2(it.Amount))
}

func writeAgreement(agreement *xmlwriter.Element, inv *model.Invoice) {
	agreement.TextIf("ram:BuyerReference", inv.BuyerReference)

	writeParty(agreement.Child("ram:SellerTradeParty"), party{
		name:      inv.Supplier,
		legalID:   inv.SupplierSiret,
		address:   inv.SupplierAddress,
		city:      inv.SupplierCity,
		postCode:  inv.SupplierPostCode,
		country:   inv.SupplierCountry,
		vatNumber: inv.SupplierVatNumber,
	})
	writeParty(agreement.Child("ram:BuyerTradeParty"), party{
		name:      inv.Buyer,
		legalID:   inv.BuyerSiret,
		address:   inv.BuyerAddress,
		city:      inv.BuyerCity,
		postCode:  inv.BuyerPostCode,
		country:   inv.BuyerCountry,
		vatNumber: inv.BuyerVatNumber,
	})

	writeReference(agreement, "ram:SellerOrderReferencedDocument", inv.SalesOrderReference)
	writeReference(agreement, "ram:BuyerOrderReferencedDocument", inv.PurchaseOrderNumber)
	writeReference(agreement, "ram:ContractReferencedDocument", inv.ContractNumber)

	if strings.TrimSpace(inv.ProjectReference) != "" {
		project := agreement.Child("ram:SpecifiedProcuringProject")
		project.Text("ram:ID", inv.ProjectReference)
		project.Text("ram:Name", "Project reference")
	}
}

type party struct {
	name      string
	legalID   string
	address   string
	city      string
	postCode  string
	country   string
	vatNumber string
}

func writeParty(el *xmlwriter.Element, p party) {
	el.Text("ram:Name", p.name)

	if id := stripSpaces(p.legalID); id != "" {
		el.Child("ram:SpecifiedLegalOrganization").
			Text("ram:ID", id, xmlwriter.Attr{Name: "schemeID", Value: "0002"})
	}

	if strings.TrimSpace(p.address+p.city+p.postCode+p.country) != "" {
		addr := el.Child("ram:PostalTradeAddress")
		addr.TextIf("ram:PostcodeCode", p.postCode)
		addr.TextIf("ram:LineOne", p.address)
		addr.TextIf("ram:CityName", p.city)
		addr.TextIf("ram:CountryID", strings.ToUpper(strings.TrimSpace(p.country)))
	}

	if vat := stripSpaces(p.vatNumber); vat != "" {
		el.Child("ram:SpecifiedTaxRegistration").
			Text("ram:ID", vat, xmlwriter.Attr{Name: "schemeID", Value: "VA"})
	}
}

func writeReference(parent *xmlwriter.Element, name, id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	parent.Child(name).Text("ram:IssuerAssignedID", id)
}

func writeDelivery(delivery *xmlwriter.Element, inv *model.Invoice) {
	if strings.TrimSpace(inv.DeliveryDate) != "" {
		event := delivery.Child("ram:ActualDeliverySupplyChainEvent")
		writeDate(event.Child("ram:OccurrenceDateTime"), inv.DeliveryDate)
	}
	writeReference(delivery, "ram:DespatchAdviceReferencedDocument", inv.DeliveryNoteNumber)
}

func writeSettlement(settlement *xmlwriter.Element, inv *model.Invoice) {
	currency := inv.EffectiveCurrency()

	settlement.TextIf("ram:PaymentReference", inv.PaymentReference)
	settlement.Text("ram:InvoiceCurrencyCode", currency)

	writePaymentMeans(settlement.Child("ram:SpecifiedTradeSettlementPaymentMeans"), inv)

	for i := range inv.VatBreakdowns {
		b := &inv.VatBreakdowns[i]
		tax := settlement.Child("ram:ApplicableTradeTax")
		tax.Text("ram:CalculatedAmount", money.Format2(b.VatAmount))
		tax.Text("ram:TypeCode", "VAT")
		tax.TextIf("ram:ExemptionReason", b.ExemptionReason)
		tax.Text("ram:BasisAmount", money.Format2(b.VatTaxableAmount))
		tax.Text("ram:CategoryCode", b.VatCategory)
		tax.TextIf("ram:ExemptionReasonCode", b.ExemptionReasonCode)
		tax.Text("ram:RateApplicablePercent", money.Format2(b.VatRate))
	}

	writeAllowanceCharge(settlement, inv, false, inv.GlobalDiscount, "Discount")
	writeAllowanceCharge(settlement, inv, true, inv.GlobalCharge, "Charge")

	if strings.TrimSpace(inv.DueDate) != "" {
		terms := settlement.Child("ram:SpecifiedTradePaymentTerms")
		writeDate(terms.Child("ram:DueDateDateTime"), inv.DueDate)
	}

	writeSummation(settlement.Child("ram:SpecifiedTradeSettlementHeaderMonetarySummation"), inv, currency)

	writeReference(settlement, "ram:InvoiceReferencedDocument", inv.PrecedingInvoiceNumber)
}

func writePaymentMeans(means *xmlwriter.Element, inv *model.Invoice) {
	code := inv.PaymentMeansCode
	if strings.TrimSpace(code) == "" {
		code = model.DefaultPaymentMeansCode
	}
	means.Text("ram:TypeCode", code)

	if iban := stripSpaces(inv.BuyerIban); iban != "" {
		means.Child("ram:PayerPartyDebtorFinancialAccount").Text("ram:IBANID", iban)
	}
	if iban := stripSpaces(inv.SupplierIban); iban != "" {
		means.Child("ram:PayeePartyCreditorFinancialAccount").Text("ram:IBANID", iban)
	}
	if bic := stripSpaces(inv.SupplierBic); bic != "" {
		means.Child("ram:PayeeSpecifiedCreditorFinancialInstitution").Text("ram:BICID", bic)
	}
}

// writeAllowanceCharge emits a document level allowance or charge. The VAT
// category is the one of the first breakdown group.
func writeAllowanceCharge(settlement *xmlwriter.Element, inv *model.Invoice, charge bool, amount decimal.Decimal, reason string) {
	if amount.IsZero() {
		return
	}

	ac := settlement.Child("ram:SpecifiedTradeAllowanceCharge")
	indicator := "false"
	if charge {
		indicator = "true"
	}
	ac.Child("ram:ChargeIndicator").Text("udt:Indicator", indicator)
	ac.Text("ram:ActualAmount", money.Format2(amount))
	ac.Text("ram:Reason", reason)

	if len(inv.VatBreakdowns) > 0 {
		first := inv.VatBreakdowns[0]
		tax := ac.Child("ram:CategoryTradeTax")
		tax.Text("ram:TypeCode", "VAT")
		tax.Text("ram:CategoryCode", first.VatCategory)
		tax.Text("ram:RateApplicablePercent", money.Format2(first.VatRate))
	}
}

func writeSummation(sum *xmlwriter.Element, inv *model.Invoice, currency string) {
	sum.Text("ram:LineTotalAmount", money.Format2(inv.LineTotal()))
	sum.Text("ram:ChargeTotalAmount", money.Format2(inv.GlobalCharge))
	sum.Text("ram:AllowanceTotalAmount", money.Format2(inv.GlobalDiscount))
	sum.Text("ram:TaxBasisTotalAmount", money.Format2(inv.AmountExclVat))
	sum.Text("ram:TaxTotalAmount", money.Format2(inv.TotalVat), xmlwriter.Attr{Name: "currencyID", Value: currency})
	if !inv.RoundingAmount.IsZero() {
		sum.Text("ram:RoundingAmount", money.Format2(inv.RoundingAmount))
	}
	sum.Text("ram:GrandTotalAmount", money.Format2(inv.AmountInclVat))
	if !inv.PrepaidAmount.IsZero() {
		sum.Text("ram:TotalPrepaidAmount", money.Format2(inv.PrepaidAmount))
	}
	sum.Text("ram:DuePayableAmount", money.Format2(inv.AmountDueForPayment))
}

func writeDate(parent *xmlwriter.Element, date string) {
	parent.Text("udt:DateTimeString", FormatDate(date), xmlwriter.Attr{Name: "format", Value: dateFormat102})
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
