package intake

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/readability"
)

// MinPOLength is the shortest purchase-order number accepted.
const MinPOLength = 3

// Guidance shown under the submit button while the form is incomplete.
const (
	HintBoth      = "Veuillez vérifier votre numéro de commande et télécharger tous les documents requis"
	HintPO        = "Veuillez vérifier votre numéro de commande"
	HintDocuments = "Veuillez télécharger tous les documents requis"
)

const (
	MsgUploadFailed  = "Erreur lors du traitement du fichier: %s"
	MsgSubmitRefused = "Veuillez télécharger tous les documents requis et vous assurer qu'ils sont lisibles."
	MsgSubmitted     = "Vos documents ont été envoyés avec succès. Notre équipe va les examiner et vous contactera sous peu."
)

var (
	ErrUnknownDocument   = errors.New("unknown document")
	ErrNotSubmittable    = errors.New("form is not ready to be submitted")
	ErrSubmitInProgress  = errors.New("form is being submitted")
	ErrNoSubmitInProcess = errors.New("no submission in progress")
)

// DocumentStatus is the upload state of one document slot. Pointer fields
// are nil until the corresponding value is known.
type DocumentStatus struct {
	Uploaded     bool    `json:"uploaded"`
	FileName     *string `json:"fileName,omitempty"`
	Progress     *int    `json:"progress,omitempty"`
	Required     bool    `json:"required"`
	IsReadable   *bool   `json:"isReadable,omitempty"`
	IsProcessing bool    `json:"isProcessing"`
	Error        *string `json:"error,omitempty"`
}

// Complete reports whether the document counts towards submission.
func (s DocumentStatus) Complete() bool {
	return s.Uploaded && s.IsReadable != nil && *s.IsReadable
}

func (s DocumentStatus) clone() DocumentStatus {
	out := s
	out.FileName = clonePtr(s.FileName)
	out.Progress = clonePtr(s.Progress)
	out.IsReadable = clonePtr(s.IsReadable)
	out.Error = clonePtr(s.Error)
	return out
}

// Form is one intake session. It is safe for concurrent use.
type Form struct {
	mu sync.Mutex

	id           string
	supplierType catalog.SupplierType
	poNumber     string
	documents    map[string]*DocumentStatus
	attempts     map[string]int
	submitting   bool
	submitted    bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewForm creates a form with every known document slot empty. Slots for
// both supplier types exist from the start so that switching type keeps
// whatever was already uploaded.
func NewForm(id string) *Form {
	now := time.Now().UTC()
	f := &Form{
		id:           id,
		supplierType: catalog.DefaultSupplierType,
		documents:    make(map[string]*DocumentStatus),
		attempts:     make(map[string]int),
		createdAt:    now,
		updatedAt:    now,
	}
	for _, d := range catalog.AllDocuments() {
		f.documents[d.ID] = &DocumentStatus{Required: d.Required}
	}
	return f
}

func (f *Form) ID() string { return f.id }

func (f *Form) SupplierType() catalog.SupplierType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supplierType
}

// SetSupplierType switches the required document set. Statuses are kept.
func (f *Form) SetSupplierType(t catalog.SupplierType) error {
	if catalog.Documents(t) == nil {
		return fmt.Errorf("%w: %q", catalog.ErrUnknownSupplierType, string(t))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitInProgress
	}
	f.supplierType = t
	f.touch()
	return nil
}

func (f *Form) PONumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.poNumber
}

func (f *Form) SetPONumber(po string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitInProgress
	}
	f.poNumber = po
	f.touch()
	return nil
}

func (f *Form) POValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.poValid()
}

func (f *Form) poValid() bool {
	return utf8.RuneCountInString(f.poNumber) >= MinPOLength
}

// Status returns a copy of one document's status.
func (f *Form) Status(docID string) (DocumentStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.documents[docID]
	if !ok {
		return DocumentStatus{}, false
	}
	return s.clone(), true
}

// Attempt returns the current attempt number of a document.
func (f *Form) Attempt(docID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[docID]
}

// BeginUpload marks a document as processing and returns the attempt number
// that later results must carry. Only documents of the current supplier type
// can be uploaded.
func (f *Form) BeginUpload(docID, fileName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return 0, ErrSubmitInProgress
	}
	s, ok := f.documents[docID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDocument, docID)
	}
	if _, required := catalog.Lookup(f.supplierType, docID); !required {
		return 0, fmt.Errorf("%w: %q is not part of the %s catalogue", ErrUnknownDocument, docID, f.supplierType)
	}

	f.attempts[docID]++
	s.Uploaded = false
	s.FileName = &fileName
	s.Progress = ptr(0)
	s.IsProcessing = true
	s.Error = nil
	s.IsReadable = nil
	f.touch()
	return f.attempts[docID], nil
}

// CompleteCheck records the readability result of an attempt. A readable
// document stays processing until its progress reaches 100. It returns false
// when the attempt has been superseded and the result was dropped.
func (f *Form) CompleteCheck(docID string, attempt int, res readability.Result) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.current(docID, attempt)
	if !ok {
		return false
	}

	if res.Readable {
		s.IsReadable = ptr(true)
		s.Error = nil
	} else {
		msg := res.Error
		if msg == "" {
			msg = readability.MsgNotEnoughText
		}
		s.IsReadable = ptr(false)
		s.Uploaded = false
		s.IsProcessing = false
		s.Progress = ptr(0)
		s.Error = &msg
	}
	f.touch()
	return true
}

// AdvanceProgress moves a readable document's transfer progress forward by
// step, capped at 100. It returns true once the upload is finished or when
// the attempt is no longer current, so callers can stop ticking.
func (f *Form) AdvanceProgress(docID string, attempt, step int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.current(docID, attempt)
	if !ok || !s.IsProcessing || s.IsReadable == nil || !*s.IsReadable {
		return true
	}

	p := 0
	if s.Progress != nil {
		p = *s.Progress
	}
	p += step
	if p > 100 {
		p = 100
	}
	s.Progress = &p
	s.Uploaded = p >= 100
	s.IsProcessing = p < 100
	f.touch()
	return p >= 100
}

// FailUpload records an unexpected processing error for an attempt.
func (f *Form) FailUpload(docID string, attempt int, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.current(docID, attempt)
	if !ok {
		return false
	}
	msg := fmt.Sprintf(MsgUploadFailed, err.Error())
	s.IsProcessing = false
	s.IsReadable = ptr(false)
	s.Uploaded = false
	s.Progress = ptr(0)
	s.Error = &msg
	f.touch()
	return true
}

// Reset clears a document slot so a new file can be uploaded. Any check
// still running for the previous attempt is discarded.
func (f *Form) Reset(docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmitInProgress
	}
	s, ok := f.documents[docID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDocument, docID)
	}
	f.attempts[docID]++
	*s = DocumentStatus{Required: s.Required}
	f.touch()
	return nil
}

func (f *Form) current(docID string, attempt int) (*DocumentStatus, bool) {
	s, ok := f.documents[docID]
	if !ok || f.attempts[docID] != attempt {
		return nil, false
	}
	return s, true
}

// AllDocumentsUploaded reports whether every required document of the
// current supplier type is uploaded and readable.
func (f *Form) AllDocumentsUploaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allDocumentsUploaded()
}

func (f *Form) allDocumentsUploaded() bool {
	for _, d := range catalog.Documents(f.supplierType) {
		if !d.Required {
			continue
		}
		s, ok := f.documents[d.ID]
		if !ok || !s.Complete() {
			return false
		}
	}
	return true
}

func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *Form) canSubmit() bool {
	return f.poValid() && f.allDocumentsUploaded()
}

// Hint returns what is still missing, or "" when the form can be submitted.
func (f *Form) Hint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hint()
}

func (f *Form) hint() string {
	po, docs := f.poValid(), f.allDocumentsUploaded()
	switch {
	case po && docs:
		return ""
	case !po && !docs:
		return HintBoth
	case !po:
		return HintPO
	default:
		return HintDocuments
	}
}

// BeginSubmit locks the form for submission.
func (f *Form) BeginSubmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmitInProgress
	}
	if !f.canSubmit() {
		return ErrNotSubmittable
	}
	f.submitting = true
	f.touch()
	return nil
}

// CompleteSubmit ends a submission started with BeginSubmit and returns
// its receipt.
func (f *Form) CompleteSubmit() (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.submitting {
		return nil, ErrNoSubmitInProcess
	}
	f.submitting = false
	f.submitted = true
	f.touch()

	r := &Receipt{
		ID:           uuid.NewString(),
		FormID:       f.id,
		PONumber:     f.poNumber,
		SupplierType: f.supplierType,
		SubmittedAt:  f.updatedAt,
		Message:      MsgSubmitted,
	}
	for _, d := range catalog.Documents(f.supplierType) {
		s := f.documents[d.ID]
		if s == nil || !s.Complete() {
			continue
		}
		name := ""
		if s.FileName != nil {
			name = *s.FileName
		}
		r.Documents = append(r.Documents, SubmittedDocument{ID: d.ID, Label: d.Label, FileName: name})
	}
	return r, nil
}

// AbortSubmit releases the submission lock without recording a submission.
func (f *Form) AbortSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		f.submitting = false
		f.touch()
	}
}

func (f *Form) touch() {
	f.updatedAt = time.Now().UTC()
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
