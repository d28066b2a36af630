package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/logger"
	"github.com/ironsheep/inverif/internal/readability"
)

var ErrFormNotFound = errors.New("form not found")

// Defaults for Options.
const (
	DefaultCheckTimeout        = 60 * time.Second
	DefaultMaxConcurrentChecks = 2
	DefaultProgressStep        = 20
	DefaultProgressInterval    = 200 * time.Millisecond
	DefaultSubmitDelay         = 1500 * time.Millisecond
)

// Checker decides whether an upload is readable.
type Checker interface {
	Check(ctx context.Context, up readability.Upload) readability.Result
}

// Notifier is told about every successful submission.
type Notifier interface {
	Notify(ctx context.Context, r *Receipt) error
}

type Options struct {
	MaxUploadBytes      int64
	CheckTimeout        time.Duration
	MaxConcurrentChecks int64
	ProgressStep        int
	ProgressInterval    time.Duration
	SubmitDelay         time.Duration
	SessionTTL          time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = catalog.DefaultMaxUploadBytes
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = DefaultCheckTimeout
	}
	if o.MaxConcurrentChecks <= 0 {
		o.MaxConcurrentChecks = DefaultMaxConcurrentChecks
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = DefaultProgressStep
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.SubmitDelay < 0 {
		o.SubmitDelay = 0
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
}

// Service drives intake forms: it stores them, runs readability checks in
// the background and publishes every change.
type Service struct {
	checker  Checker
	notifier Notifier
	log      logger.Logger
	opts     Options

	sessions *SessionStore
	events   *hub
	checks   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds a Service. notifier may be nil.
func NewService(checker Checker, notifier Notifier, log logger.Logger, opts Options) *Service {
	opts.applyDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		checker:  checker,
		notifier: notifier,
		log:      log,
		opts:     opts,
		sessions: NewSessionStore(opts.SessionTTL),
		events:   newHub(),
		checks:   semaphore.NewWeighted(opts.MaxConcurrentChecks),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.sessions.OnExpired(func(formID string) {
		s.log.Info("intake", "form expired", map[string]interface{}{"form": formID})
		s.events.closeForm(formID)
	})
	return s
}

// Options returns the effective settings.
func (s *Service) Options() Options { return s.opts }

// Close stops background work and ends all subscriptions.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
	s.events.closeAll()
}

func (s *Service) NewForm() Snapshot {
	f := NewForm(uuid.NewString())
	s.sessions.Save(f)
	s.log.Info("intake", "form created", map[string]interface{}{"form": f.ID()})

	snap := f.Snapshot()
	s.publish(EventCreated, snap, "", nil)
	return snap
}

func (s *Service) form(formID string) (*Form, error) {
	f, ok := s.sessions.Get(formID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}
	return f, nil
}

func (s *Service) Get(formID string) (Snapshot, error) {
	f, err := s.form(formID)
	if err != nil {
		return Snapshot{}, err
	}
	return f.Snapshot(), nil
}

func (s *Service) SetSupplierType(formID, supplierType string) (Snapshot, error) {
	f, err := s.form(formID)
	if err != nil {
		return Snapshot{}, err
	}
	t, err := catalog.ParseSupplierType(supplierType)
	if err != nil {
		return Snapshot{}, err
	}
	if err := f.SetSupplierType(t); err != nil {
		return Snapshot{}, err
	}
	snap := f.Snapshot()
	s.publish(EventSupplierChanged, snap, "", nil)
	return snap, nil
}

func (s *Service) SetPONumber(formID, po string) (Snapshot, error) {
	f, err := s.form(formID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := f.SetPONumber(po); err != nil {
		return Snapshot{}, err
	}
	snap := f.Snapshot()
	s.publish(EventPOChanged, snap, "", nil)
	return snap, nil
}

// Upload validates a file, marks the document as processing and starts its
// readability check in the background. The returned snapshot shows the
// document processing; later changes arrive as events.
func (s *Service) Upload(formID, docID, fileName string, data []byte) (Snapshot, error) {
	f, err := s.form(formID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := catalog.ValidateUpload(fileName, int64(len(data)), s.opts.MaxUploadBytes); err != nil {
		return Snapshot{}, err
	}
	contentType, _ := catalog.ContentTypeFor(fileName)

	attempt, err := f.BeginUpload(docID, fileName)
	if err != nil {
		return Snapshot{}, err
	}
	s.log.Info("intake", "upload started", map[string]interface{}{
		"form":     formID,
		"document": docID,
		"file":     fileName,
		"size":     len(data),
		"attempt":  attempt,
	})

	snap := f.Snapshot()
	s.publish(EventUploadStarted, snap, docID, nil)

	up := readability.Upload{FileName: fileName, ContentType: contentType, Data: data}
	s.wg.Add(1)
	go s.process(f, docID, attempt, up)
	return snap, nil
}

func (s *Service) process(f *Form, docID string, attempt int, up readability.Upload) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.fail(f, docID, attempt, fmt.Errorf("%v", r))
		}
	}()

	res, err := s.check(up)
	if err != nil {
		s.fail(f, docID, attempt, err)
		return
	}
	if !f.CompleteCheck(docID, attempt, res) {
		s.log.Debug("intake", "stale check dropped", map[string]interface{}{
			"form": f.ID(), "document": docID, "attempt": attempt,
		})
		return
	}
	s.log.Info("intake", "check completed", map[string]interface{}{
		"form":       f.ID(),
		"document":   docID,
		"readable":   res.Readable,
		"textLength": res.TextLength,
		"confidence": res.Confidence,
		"error":      res.Error,
	})
	s.publish(EventCheckCompleted, f.Snapshot(), docID, nil)

	if !res.Readable {
		return
	}

	ticker := time.NewTicker(s.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if f.Attempt(docID) != attempt {
				return
			}
			done := f.AdvanceProgress(docID, attempt, s.opts.ProgressStep)
			s.publish(EventProgress, f.Snapshot(), docID, nil)
			if done {
				return
			}
		}
	}
}

// check runs one readability check under the concurrency cap and timeout.
func (s *Service) check(up readability.Upload) (readability.Result, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.CheckTimeout)
	defer cancel()

	if err := s.checks.Acquire(ctx, 1); err != nil {
		return readability.Result{}, err
	}
	defer s.checks.Release(1)

	return s.checker.Check(ctx, up), nil
}

func (s *Service) fail(f *Form, docID string, attempt int, err error) {
	if !f.FailUpload(docID, attempt, err) {
		return
	}
	s.log.Error("intake", "upload failed", map[string]interface{}{
		"form": f.ID(), "document": docID, "error": err.Error(),
	})
	s.publish(EventUploadFailed, f.Snapshot(), docID, nil)
}

// Reset clears a document so another file can be uploaded.
func (s *Service) Reset(formID, docID string) (Snapshot, error) {
	f, err := s.form(formID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := f.Reset(docID); err != nil {
		return Snapshot{}, err
	}
	snap := f.Snapshot()
	s.publish(EventReset, snap, docID, nil)
	return snap, nil
}

// Submit sends a complete form. The submission itself is simulated by a
// delay; ctx cancellation aborts it and leaves the form unsubmitted.
func (s *Service) Submit(ctx context.Context, formID string) (*Receipt, error) {
	f, err := s.form(formID)
	if err != nil {
		return nil, err
	}
	if err := f.BeginSubmit(); err != nil {
		return nil, err
	}
	s.publish(EventSubmitStarted, f.Snapshot(), "", nil)

	if s.opts.SubmitDelay > 0 {
		timer := time.NewTimer(s.opts.SubmitDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			f.AbortSubmit()
			s.publish(EventSubmitAborted, f.Snapshot(), "", nil)
			return nil, ctx.Err()
		}
	}

	receipt, err := f.CompleteSubmit()
	if err != nil {
		return nil, err
	}
	s.log.Info("intake", "form submitted", map[string]interface{}{
		"form":      formID,
		"receipt":   receipt.ID,
		"poNumber":  receipt.PONumber,
		"supplier":  string(receipt.SupplierType),
		"documents": len(receipt.Documents),
	})

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, receipt); err != nil {
			s.log.Warn("intake", "submission notification failed", map[string]interface{}{
				"receipt": receipt.ID, "error": err.Error(),
			})
		}
	}

	s.publish(EventSubmitted, f.Snapshot(), "", receipt)
	return receipt, nil
}

// Subscribe streams the events of one form until cancel is called or the
// form expires.
func (s *Service) Subscribe(formID string) (<-chan Event, func(), error) {
	if _, err := s.form(formID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.events.subscribe(formID)
	return ch, cancel, nil
}

func (s *Service) publish(t EventType, snap Snapshot, docID string, r *Receipt) {
	s.events.publish(Event{
		Type:     t,
		FormID:   snap.ID,
		Document: docID,
		Snapshot: snap,
		Receipt:  r,
		Time:     time.Now().UTC(),
	})
}
