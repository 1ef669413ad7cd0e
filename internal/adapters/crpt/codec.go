package crpt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"selsup/crptgateway/internal/core/document"
)

// EncodeDocument serializes doc with the CRPT field names and YYYY-MM-DD dates.
func EncodeDocument(doc *document.Document) ([]byte, error) {
	if doc == nil {
		return nil, &EncodingError{Op: "encode document", Err: errors.New("document is nil")}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &EncodingError{Op: "encode document", Err: err}
	}
	return data, nil
}

// DecodeDocument parses a document produced by EncodeDocument.
func DecodeDocument(data []byte) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &EncodingError{Op: "decode document", Err: err}
	}
	return &doc, nil
}

// EncodeEnvelope builds the request body: the document JSON is base64 encoded
// (standard alphabet, no wrapping) and embedded with the fixed envelope fields.
func EncodeEnvelope(doc *document.Document, signature string) ([]byte, error) {
	if !utf8.ValidString(signature) {
		return nil, &EncodingError{Op: "encode envelope", Err: errors.New("signature is not valid UTF-8 text")}
	}

	docJSON, err := EncodeDocument(doc)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(document.CreateDocumentRequest{
		DocumentFormat:  document.FormatManual,
		ProductDocument: base64.StdEncoding.EncodeToString(docJSON),
		ProductGroup:    document.ProductGroupClothes,
		Signature:       signature,
		Type:            document.TypeIntroduceGoods,
	})
	if err != nil {
		return nil, &EncodingError{Op: "encode envelope", Err: err}
	}
	return body, nil
}

// DecodeResponse parses a CRPT reply body. An empty body decodes to an empty response.
func DecodeResponse(data []byte) (*document.CreateDocumentResponse, error) {
	var resp document.CreateDocumentResponse
	if len(data) == 0 {
		return &resp, nil
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &EncodingError{Op: "decode response", Err: err}
	}
	return &resp, nil
}
