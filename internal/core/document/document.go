package document

import "encoding/json"

const (
	// TypeIntroduceGoods is the document type for introducing goods produced in the RF.
	TypeIntroduceGoods = "LP_INTRODUCE_GOODS"
	// ProductionTypeOwn marks goods made by the participant itself.
	ProductionTypeOwn = "OWN_PRODUCTION"
	// ProductGroupClothes is the only product group this gateway submits for.
	ProductGroupClothes = "clothes"
)

// Description is the nested participant block of a Document.
type Description struct {
	ParticipantInn string `json:"participantInn"`
}

// Product is a single line item of a Document.
// ProductionDate is transported as-is; CRPT does not parse it the way it parses Document dates.
type Product struct {
	CertificateDocument       string `json:"certificate_document,omitempty"`
	CertificateDocumentDate   string `json:"certificate_document_date,omitempty"`
	CertificateDocumentNumber string `json:"certificate_document_number,omitempty"`
	OwnerInn                  string `json:"owner_inn,omitempty"`
	ProducerInn               string `json:"producer_inn,omitempty"`
	ProductionDate            string `json:"production_date,omitempty"`
	TnvedCode                 string `json:"tnved_code,omitempty"`
	UitCode                   string `json:"uit_code,omitempty"`
	UituCode                  string `json:"uitu_code,omitempty"`
}

// Document is the payload of a goods introduction request.
//
// The product list is owned by the Document: SetProducts and Products copy, so callers
// cannot mutate it after assignment.
type Document struct {
	Description    *Description
	DocID          string
	DocStatus      string
	ImportRequest  bool
	OwnerInn       string
	ParticipantInn string
	ProducerInn    string
	ProductionDate *Date
	RegDate        *Date
	RegNumber      string

	products []Product
}

// NewDocument returns a Document holding a copy of products.
func NewDocument(products ...Product) *Document {
	d := &Document{}
	d.SetProducts(products)
	return d
}

// DocType is always LP_INTRODUCE_GOODS.
func (d *Document) DocType() string { return TypeIntroduceGoods }

// ProductionType is always OWN_PRODUCTION.
func (d *Document) ProductionType() string { return ProductionTypeOwn }

// Products returns a copy of the product list.
func (d *Document) Products() []Product {
	out := make([]Product, len(d.products))
	copy(out, d.products)
	return out
}

// SetProducts replaces the product list with a copy of products.
func (d *Document) SetProducts(products []Product) {
	d.products = make([]Product, len(products))
	copy(d.products, products)
}

// documentWire is the CRPT field table for Document.
type documentWire struct {
	Description    *Description `json:"description,omitempty"`
	DocID          string       `json:"doc_id,omitempty"`
	DocStatus      string       `json:"doc_status,omitempty"`
	DocType        string       `json:"doc_type"`
	ImportRequest  bool         `json:"importRequest"`
	OwnerInn       string       `json:"owner_inn,omitempty"`
	ParticipantInn string       `json:"participant_inn,omitempty"`
	ProducerInn    string       `json:"producer_inn,omitempty"`
	ProductionDate *Date        `json:"production_date"`
	ProductionType string       `json:"production_type"`
	Products       []Product    `json:"products"`
	RegDate        *Date        `json:"reg_date"`
	RegNumber      string       `json:"reg_number,omitempty"`
}

// MarshalJSON implements json.Marshaler using the CRPT field names.
func (d Document) MarshalJSON() ([]byte, error) {
	products := d.products
	if products == nil {
		products = []Product{}
	}
	return json.Marshal(documentWire{
		Description:    d.Description,
		DocID:          d.DocID,
		DocStatus:      d.DocStatus,
		DocType:        TypeIntroduceGoods,
		ImportRequest:  d.ImportRequest,
		OwnerInn:       d.OwnerInn,
		ParticipantInn: d.ParticipantInn,
		ProducerInn:    d.ProducerInn,
		ProductionDate: d.ProductionDate,
		ProductionType: ProductionTypeOwn,
		Products:       products,
		RegDate:        d.RegDate,
		RegNumber:      d.RegNumber,
	})
}

// UnmarshalJSON implements json.Unmarshaler. doc_type and production_type are ignored
// on input since both are fixed.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w documentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Document{
		Description:    w.Description,
		DocID:          w.DocID,
		DocStatus:      w.DocStatus,
		ImportRequest:  w.ImportRequest,
		OwnerInn:       w.OwnerInn,
		ParticipantInn: w.ParticipantInn,
		ProducerInn:    w.ProducerInn,
		ProductionDate: w.ProductionDate,
		RegDate:        w.RegDate,
		RegNumber:      w.RegNumber,
	}
	d.SetProducts(w.Products)
	return nil
}
