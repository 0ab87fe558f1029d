package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
)

// CII XML structures. Elements are matched by local name so any prefix
// binding of the CII namespaces is accepted.
type ciiDocument struct {
	XMLName     xml.Name             `xml:"CrossIndustryInvoice"`
	GuidelineID string               `xml:"ExchangedDocumentContext>GuidelineSpecifiedDocumentContextParameter>ID"`
	Document    ciiExchangedDocument `xml:"ExchangedDocument"`
	Transaction ciiTransaction       `xml:"SupplyChainTradeTransaction"`
}

type ciiExchangedDocument struct {
	ID        string   `xml:"ID"`
	TypeCode  string   `xml:"TypeCode"`
	IssueDate string   `xml:"IssueDateTime>DateTimeString"`
	Notes     []string `xml:"IncludedNote>Content"`
}

type ciiTransaction struct {
	Lines      []ciiLine     `xml:"IncludedSupplyChainTradeLineItem"`
	Agreement  ciiAgreement  `xml:"ApplicableHeaderTradeAgreement"`
	Delivery   ciiDelivery   `xml:"ApplicableHeaderTradeDelivery"`
	Settlement ciiSettlement `xml:"ApplicableHeaderTradeSettlement"`
}

type ciiLine struct {
	SellerAssignedID string      `xml:"SpecifiedTradeProduct>SellerAssignedID"`
	Name             string      `xml:"SpecifiedTradeProduct>Name"`
	NetPrice         string      `xml:"SpecifiedLineTradeAgreement>NetPriceProductTradePrice>ChargeAmount"`
	Quantity         ciiQuantity `xml:"SpecifiedLineTradeDelivery>BilledQuantity"`
	CategoryCode     string      `xml:"SpecifiedLineTradeSettlement>ApplicableTradeTax>CategoryCode"`
	Rate             string      `xml:"SpecifiedLineTradeSettlement>ApplicableTradeTax>RateApplicablePercent"`
	LineTotal        string      `xml:"SpecifiedLineTradeSettlement>SpecifiedTradeSettlementLineMonetarySummation>LineTotalAmount"`
}

type ciiQuantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

type ciiAgreement struct {
	BuyerReference string   `xml:"BuyerReference"`
	Seller         ciiParty `xml:"SellerTradeParty"`
	Buyer          ciiParty `xml:"BuyerTradeParty"`
	SalesOrder     string   `xml:"SellerOrderReferencedDocument>IssuerAssignedID"`
	PurchaseOrder  string   `xml:"BuyerOrderReferencedDocument>IssuerAssignedID"`
	Contract       string   `xml:"ContractReferencedDocument>IssuerAssignedID"`
	Project        string   `xml:"SpecifiedProcuringProject>ID"`
}

type ciiParty struct {
	Name             string           `xml:"Name"`
	LegalID          string           `xml:"SpecifiedLegalOrganization>ID"`
	PostCode         string           `xml:"PostalTradeAddress>PostcodeCode"`
	LineOne          string           `xml:"PostalTradeAddress>LineOne"`
	City             string           `xml:"PostalTradeAddress>CityName"`
	Country          string           `xml:"PostalTradeAddress>CountryID"`
	TaxRegistrations []ciiSchemedText `xml:"SpecifiedTaxRegistration>ID"`
}

type ciiSchemedText struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

type ciiDelivery struct {
	DeliveryDate   string `xml:"ActualDeliverySupplyChainEvent>OccurrenceDateTime>DateTimeString"`
	DespatchAdvice string `xml:"DespatchAdviceReferencedDocument>IssuerAssignedID"`
}

type ciiSettlement struct {
	PaymentReference string               `xml:"PaymentReference"`
	Currency         string               `xml:"InvoiceCurrencyCode"`
	PaymentMeans     []ciiPaymentMeans    `xml:"SpecifiedTradeSettlementPaymentMeans"`
	Taxes            []ciiTax             `xml:"ApplicableTradeTax"`
	AllowanceCharges []ciiAllowanceCharge `xml:"SpecifiedTradeAllowanceCharge"`
	DueDate          string               `xml:"SpecifiedTradePaymentTerms>DueDateDateTime>DateTimeString"`
	Summation        ciiMonetarySummation `xml:"SpecifiedTradeSettlementHeaderMonetarySummation"`
	Preceding        string               `xml:"InvoiceReferencedDocument>IssuerAssignedID"`
}

type ciiPaymentMeans struct {
	TypeCode  string `xml:"TypeCode"`
	PayerIBAN string `xml:"PayerPartyDebtorFinancialAccount>IBANID"`
	PayeeIBAN string `xml:"PayeePartyCreditorFinancialAccount>IBANID"`
	PayeeBIC  string `xml:"PayeeSpecifiedCreditorFinancialInstitution>BICID"`
}

type ciiTax struct {
	CalculatedAmount    string `xml:"CalculatedAmount"`
	ExemptionReason     string `xml:"ExemptionReason"`
	BasisAmount         string `xml:"BasisAmount"`
	CategoryCode        string `xml:"CategoryCode"`
	ExemptionReasonCode string `xml:"ExemptionReasonCode"`
	Rate                string `xml:"RateApplicablePercent"`
}

type ciiAllowanceCharge struct {
	Indicator    string `xml:"ChargeIndicator>Indicator"`
	ActualAmount string `xml:"ActualAmount"`
}

type ciiMonetarySummation struct {
	LineTotal      string `xml:"LineTotalAmount"`
	ChargeTotal    string `xml:"ChargeTotalAmount"`
	AllowanceTotal string `xml:"AllowanceTotalAmount"`
	TaxBasisTotal  string `xml:"TaxBasisTotalAmount"`
	TaxTotal       string `xml:"TaxTotalAmount"`
	RoundingAmount string `xml:"RoundingAmount"`
	GrandTotal     string `xml:"GrandTotalAmount"`
	TotalPrepaid   string `xml:"TotalPrepaidAmount"`
	DuePayable     string `xml:"DuePayableAmount"`
}

// CIIAdapter parses Cross Industry Invoice documents
type CIIAdapter struct{}

// NewCIIAdapter creates a new CII adapter
func NewCIIAdapter() *CIIAdapter {
	return &CIIAdapter{}
}

// Format returns the input format
func (a *CIIAdapter) Format() model.Format {
	return model.FormatCII
}

// CanParse checks for the CrossIndustryInvoice root
func (a *CIIAdapter) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte("CrossIndustryInvoice"))
}

// Parse parses CII XML into Invoice. Declared totals are copied as read;
// callers recompute them with Recalculate.
func (a *CIIAdapter) Parse(ctx context.Context, r io.Reader) (*model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.FormatCII, "content", "failed to read content", err)
	}

	var doc ciiDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, model.NewParseError(model.FormatCII, "xml", "failed to parse XML", err)
	}
	if strings.TrimSpace(doc.Document.ID) == "" && len(doc.Transaction.Lines) == 0 {
		return nil, model.NewParseError(model.FormatCII, "ExchangedDocument", "document has neither an ID nor lines", nil)
	}

	return a.convertInvoice(&doc), nil
}

func (a *CIIAdapter) convertInvoice(doc *ciiDocument) *model.Invoice {
	agreement := &doc.Transaction.Agreement
	settlement := &doc.Transaction.Settlement

	result := &model.Invoice{
		Type:                   parseTypeCode(doc.Document.TypeCode),
		InvoiceNumber:          strings.TrimSpace(doc.Document.ID),
		InvoiceDate:            parseDate(doc.Document.IssueDate),
		Note:                   strings.Join(doc.Document.Notes, "\n"),
		Currency:               strings.TrimSpace(settlement.Currency),
		PrecedingInvoiceNumber: settlement.Preceding,

		Supplier:          agreement.Seller.Name,
		SupplierSiret:     agreement.Seller.LegalID,
		SupplierVatNumber: vatRegistration(agreement.Seller.TaxRegistrations),
		SupplierAddress:   agreement.Seller.LineOne,
		SupplierCity:      agreement.Seller.City,
		SupplierPostCode:  agreement.Seller.PostCode,
		SupplierCountry:   agreement.Seller.Country,

		Buyer:          agreement.Buyer.Name,
		BuyerSiret:     agreement.Buyer.LegalID,
		BuyerVatNumber: vatRegistration(agreement.Buyer.TaxRegistrations),
		BuyerAddress:   agreement.Buyer.LineOne,
		BuyerCity:      agreement.Buyer.City,
		BuyerPostCode:  agreement.Buyer.PostCode,
		BuyerCountry:   agreement.Buyer.Country,

		BuyerReference:      agreement.BuyerReference,
		ProjectReference:    agreement.Project,
		ContractNumber:      agreement.Contract,
		PurchaseOrderNumber: agreement.PurchaseOrder,
		SalesOrderReference: agreement.SalesOrder,
		DeliveryNoteNumber:  doc.Transaction.Delivery.DespatchAdvice,
		DeliveryDate:        parseDate(doc.Transaction.Delivery.DeliveryDate),
		DueDate:             parseDate(settlement.DueDate),
		PaymentReference:    settlement.PaymentReference,
	}

	if len(settlement.PaymentMeans) > 0 {
		pm := settlement.PaymentMeans[0]
		result.PaymentMeansCode = pm.TypeCode
		result.BuyerIban = pm.PayerIBAN
		result.SupplierIban = pm.PayeeIBAN
		result.SupplierBic = pm.PayeeBIC
	}

	for _, line := range doc.Transaction.Lines {
		result.Items = append(result.Items, model.InvoiceItem{
			ArticleID:     line.SellerAssignedID,
			Description:   line.Name,
			Quantity:      money.ParseLoose(line.Quantity.Value),
			UnitOfMeasure: line.Quantity.UnitCode,
			UnitPrice:     money.ParseLoose(line.NetPrice),
			Amount:        money.ParseLoose(line.LineTotal),
			TaxRate:       money.ParseLoose(line.Rate),
			VatCategory:   line.CategoryCode,
		})
	}

	for _, tax := range settlement.Taxes {
		result.VatBreakdowns = append(result.VatBreakdowns, model.VatBreakdown{
			VatCategory:         tax.CategoryCode,
			VatRate:             money.ParseLoose(tax.Rate),
			VatTaxableAmount:    money.ParseLoose(tax.BasisAmount),
			VatAmount:           money.ParseLoose(tax.CalculatedAmount),
			ExemptionReason:     tax.ExemptionReason,
			ExemptionReasonCode: tax.ExemptionReasonCode,
		})
	}

	sum := &settlement.Summation
	result.GlobalCharge = money.ParseLoose(sum.ChargeTotal)
	result.GlobalDiscount = money.ParseLoose(sum.AllowanceTotal)
	if len(settlement.AllowanceCharges) > 0 && result.GlobalCharge.IsZero() && result.GlobalDiscount.IsZero() {
		result.GlobalCharge, result.GlobalDiscount = sumAllowanceCharges(settlement.AllowanceCharges)
	}
	result.PrepaidAmount = money.ParseLoose(sum.TotalPrepaid)
	result.RoundingAmount = money.ParseLoose(sum.RoundingAmount)
	result.AmountExclVat = money.ParseLoose(sum.TaxBasisTotal)
	result.TotalVat = money.ParseLoose(sum.TaxTotal)
	result.AmountInclVat = money.ParseLoose(sum.GrandTotal)
	result.AmountDueForPayment = money.ParseLoose(sum.DuePayable)

	return result
}

func sumAllowanceCharges(acs []ciiAllowanceCharge) (charge, discount decimal.Decimal) {
	charge, discount = money.Zero, money.Zero
	for _, ac := range acs {
		amount := money.ParseLoose(ac.ActualAmount)
		if strings.EqualFold(strings.TrimSpace(ac.Indicator), "true") {
			charge = charge.Add(amount)
		} else {
			discount = discount.Add(amount)
		}
	}
	return charge, discount
}

func vatRegistration(ids []ciiSchemedText) string {
	for _, id := range ids {
		if strings.EqualFold(id.SchemeID, "VA") {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// Helper functions

// parseDate turns a format 102 token into YYYY-MM-DD. Other values are
// kept as they are.
func parseDate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("20060102", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func parseTypeCode(code string) model.InvoiceType {
	switch strings.TrimSpace(code) {
	case facturx.TypeCodeCreditNote:
		return model.InvoiceTypeCreditNote
	case facturx.TypeCodeCorrective:
		return model.InvoiceTypeCorrective
	case facturx.TypeCodeSelfBilled:
		return model.InvoiceTypeSelfBilled
	default:
		return model.InvoiceTypeStandard
	}
}
