package intake

import (
	"time"

	"github.com/ironsheep/inverif/internal/catalog"
)

// DisplayState summarises a document slot for rendering.
type DisplayState string

const (
	StateProcessing DisplayState = "processing"
	StateValid      DisplayState = "valid"
	StateProblem    DisplayState = "problem"
	StatePending    DisplayState = "pending"
)

// StateOf derives the display state of a status.
func StateOf(s DocumentStatus) DisplayState {
	switch {
	case s.IsProcessing:
		return StateProcessing
	case s.Complete():
		return StateValid
	case s.Error != nil || (s.IsReadable != nil && !*s.IsReadable):
		return StateProblem
	default:
		return StatePending
	}
}

// DocumentView is a document slot of the current supplier type.
type DocumentView struct {
	catalog.DocumentType
	Status DocumentStatus `json:"status"`
	State  DisplayState   `json:"state"`
}

// Snapshot is a point-in-time copy of a form, ready for serialisation.
type Snapshot struct {
	ID                   string               `json:"id"`
	SupplierType         catalog.SupplierType `json:"supplierType"`
	PONumber             string               `json:"poNumber"`
	POValid              bool                 `json:"poValid"`
	Documents            []DocumentView       `json:"documents"`
	AllDocumentsUploaded bool                 `json:"allDocumentsUploaded"`
	CanSubmit            bool                 `json:"canSubmit"`
	Hint                 string               `json:"hint,omitempty"`
	Submitting           bool                 `json:"submitting"`
	Submitted            bool                 `json:"submitted"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

// Document returns the view of one document, if it belongs to the snapshot.
func (s Snapshot) Document(id string) (DocumentView, bool) {
	for _, d := range s.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return DocumentView{}, false
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		ID:                   f.id,
		SupplierType:         f.supplierType,
		PONumber:             f.poNumber,
		POValid:              f.poValid(),
		AllDocumentsUploaded: f.allDocumentsUploaded(),
		CanSubmit:            f.canSubmit(),
		Hint:                 f.hint(),
		Submitting:           f.submitting,
		Submitted:            f.submitted,
		CreatedAt:            f.createdAt,
		UpdatedAt:            f.updatedAt,
	}
	for _, d := range catalog.Documents(f.supplierType) {
		var status DocumentStatus
		if s, ok := f.documents[d.ID]; ok {
			status = s.clone()
		}
		snap.Documents = append(snap.Documents, DocumentView{
			DocumentType: d,
			Status:       status,
			State:        StateOf(status),
		})
	}
	return snap
}

// SubmittedDocument is one entry of a receipt.
type SubmittedDocument struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	FileName string `json:"fileName"`
}

// Receipt confirms a simulated submission.
type Receipt struct {
	ID           string               `json:"id"`
	FormID       string               `json:"formId"`
	PONumber     string               `json:"poNumber"`
	SupplierType catalog.SupplierType `json:"supplierType"`
	Documents    []SubmittedDocument  `json:"documents"`
	SubmittedAt  time.Time            `json:"submittedAt"`
	Message      string               `json:"message"`
}
