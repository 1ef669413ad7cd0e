package testutil

import "selsup/crptgateway/internal/core/document"

// SampleSignature is a detached signature placeholder; CRPT treats it as opaque text.
const SampleSignature = "MIIGsample-detached-signature=="

// SampleDocument returns a fully populated clothes introduction document.
func SampleDocument() *document.Document {
	productionDate := document.NewDate(2024, 1, 15)
	regDate := document.NewDate(2024, 1, 20)

	doc := document.NewDocument(document.Product{
		OwnerInn:       "7700000001",
		ProducerInn:    "7700000002",
		ProductionDate: "2024-01-15",
		TnvedCode:      "6109100000",
		UitCode:        "010460406000590021N4N57RSCBUZTQ",
	})
	doc.Description = &document.Description{ParticipantInn: "7700000001"}
	doc.DocID = "local-42"
	doc.DocStatus = "DRAFT"
	doc.OwnerInn = "7700000001"
	doc.ParticipantInn = "7700000001"
	doc.ProducerInn = "7700000002"
	doc.ProductionDate = &productionDate
	doc.RegDate = &regDate
	doc.RegNumber = "RN-0001"
	return doc
}
