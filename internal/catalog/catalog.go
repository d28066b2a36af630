// Package catalog defines the supplier types and the documents each of them
// must provide before an intake form can be submitted.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// SupplierType selects which set of documents is required.
type SupplierType string

const (
	SupplierLocal   SupplierType = "local"
	SupplierForeign SupplierType = "foreign"
)

// DefaultSupplierType is the supplier type a new form starts with.
const DefaultSupplierType = SupplierLocal

// DefaultMaxUploadBytes is the largest file the upload widget accepts.
const DefaultMaxUploadBytes int64 = 10 << 20

var (
	ErrUnknownSupplierType = errors.New("unknown supplier type")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("empty file")
)

// Document identifiers shared by both catalogues.
const (
	PurchaseOrder      = "purchaseOrder"
	Invoice            = "invoice"
	DeliveryReceipt    = "deliveryReceipt"
	Receipt            = "receipt"
	CustomsDeclaration = "customsDeclaration"
	Domiciliation      = "domiciliation"
	ServiceContract    = "serviceContract"
)

// DocumentType describes one document slot on the form.
type DocumentType struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

var localDocuments = []DocumentType{
	{ID: PurchaseOrder, Label: "Bon de commande", Required: true},
	{ID: Invoice, Label: "Facture", Required: true},
	{ID: DeliveryReceipt, Label: "Bon de livraison", Required: true},
	{ID: Receipt, Label: "Procès-verbal de réception", Required: true},
}

var foreignDocuments = []DocumentType{
	{ID: PurchaseOrder, Label: "Bon de commande", Required: true},
	{ID: Invoice, Label: "Facture/Proforma", Required: true},
	{ID: DeliveryReceipt, Label: "Bon de livraison", Required: true},
	{ID: Receipt, Label: "Procès-verbal de réception", Required: true},
	{ID: CustomsDeclaration, Label: "Déclaration d'importation (DI)", Required: true},
	{ID: Domiciliation, Label: "Attestation de domiciliation", Required: true},
	{ID: ServiceContract, Label: "Contrat de service", Required: true},
}

// ParseSupplierType converts user input into a SupplierType.
func ParseSupplierType(s string) (SupplierType, error) {
	switch SupplierType(strings.ToLower(strings.TrimSpace(s))) {
	case SupplierLocal:
		return SupplierLocal, nil
	case SupplierForeign:
		return SupplierForeign, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSupplierType, s)
	}
}

// Documents returns the ordered document types for a supplier type.
// The returned slice is a copy.
func Documents(t SupplierType) []DocumentType {
	var src []DocumentType
	switch t {
	case SupplierLocal:
		src = localDocuments
	case SupplierForeign:
		src = foreignDocuments
	default:
		return nil
	}
	return append([]DocumentType(nil), src...)
}

// Lookup finds a document type in the catalogue of the given supplier type.
func Lookup(t SupplierType, id string) (DocumentType, bool) {
	for _, d := range Documents(t) {
		if d.ID == id {
			return d, true
		}
	}
	return DocumentType{}, false
}

// AllDocuments returns the union of both catalogues in a stable order,
// local entries first. When an ID appears in both, the local entry wins.
func AllDocuments() []DocumentType {
	seen := make(map[string]bool)
	all := make([]DocumentType, 0, len(localDocuments)+len(foreignDocuments))
	for _, list := range [][]DocumentType{localDocuments, foreignDocuments} {
		for _, d := range list {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			all = append(all, d)
		}
	}
	return all
}

// acceptedExtensions mirrors the file picker filter of the upload widget.
var acceptedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// AcceptedExtensions lists the file extensions an upload may have.
func AcceptedExtensions() []string {
	return []string{".pdf", ".jpg", ".jpeg", ".png"}
}

// ContentTypeFor returns the canonical content type for an accepted file name.
func ContentTypeFor(fileName string) (string, bool) {
	ct, ok := acceptedExtensions[strings.ToLower(filepath.Ext(fileName))]
	return ct, ok
}

// ValidateUpload applies the extension and size rules to a candidate file.
func ValidateUpload(fileName string, size, maxBytes int64) error {
	if _, ok := ContentTypeFor(fileName); !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(fileName))
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, maxBytes)
	}
	return nil
}
