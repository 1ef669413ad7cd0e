package document

import "context"

// DocumentFormat is the encoding of ProductDocument inside the envelope.
type DocumentFormat string

const (
	FormatManual DocumentFormat = "MANUAL"
	FormatXML    DocumentFormat = "XML"
	FormatCSV    DocumentFormat = "CSV"
)

// CreateDocumentRequest is the envelope posted to the create endpoint.
type CreateDocumentRequest struct {
	DocumentFormat  DocumentFormat `json:"document_format"`
	ProductDocument string         `json:"product_document"`
	ProductGroup    string         `json:"product_group"`
	Signature       string         `json:"signature"`
	Type            string         `json:"type"`
}

// CreateDocumentResponse is the CRPT reply to a create request.
type CreateDocumentResponse struct {
	Value        string `json:"value,omitempty"`
	Code         string `json:"code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Description  string `json:"description,omitempty"`
}

// IsSuccess reports whether CRPT assigned a document id.
// Code and ErrorMessage are diagnostic and do not affect the result.
func (r *CreateDocumentResponse) IsSuccess() bool {
	return r != nil && r.Value != ""
}

// DocumentID returns the id assigned by CRPT, empty when the request was rejected.
func (r *CreateDocumentResponse) DocumentID() string {
	if r == nil {
		return ""
	}
	return r.Value
}

// Submitter registers signed documents with CRPT.
type Submitter interface {
	// SubmitDocument sends doc with its detached signature and returns the parsed reply.
	// A reply without a value is returned as-is, not as an error.
	SubmitDocument(ctx context.Context, doc *Document, signature string) (*CreateDocumentResponse, error)
}
