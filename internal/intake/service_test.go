package intake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/readability"
)

// fakeChecker returns results by file name. Files named in block wait until
// release is closed.
type fakeChecker struct {
	mu      sync.Mutex
	results map[string]readability.Result
	block   map[string]bool
	release chan struct{}
	calls   int32
	active  int32
	peak    int32
	panicOn string
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		results: make(map[string]readability.Result),
		block:   make(map[string]bool),
		release: make(chan struct{}),
	}
}

func (c *fakeChecker) Check(ctx context.Context, up readability.Upload) readability.Result {
	atomic.AddInt32(&c.calls, 1)
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		p := atomic.LoadInt32(&c.peak)
		if n <= p || atomic.CompareAndSwapInt32(&c.peak, p, n) {
			break
		}
	}

	c.mu.Lock()
	res, ok := c.results[up.FileName]
	blocked := c.block[up.FileName]
	c.mu.Unlock()

	if up.FileName == c.panicOn {
		panic("decoder exploded")
	}
	if blocked {
		select {
		case <-c.release:
		case <-ctx.Done():
			return readability.Result{Error: ctx.Err().Error()}
		}
	}
	if !ok {
		return readability.Result{Readable: true, TextLength: 50, Confidence: 90}
	}
	return res
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []*Receipt
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, r *Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return n.err
}

func fastOptions() Options {
	return Options{
		ProgressInterval: time.Millisecond,
		SubmitDelay:      10 * time.Millisecond,
		CheckTimeout:     2 * time.Second,
	}
}

func newTestService(t *testing.T, checker Checker, notifier Notifier) *Service {
	t.Helper()
	s := NewService(checker, notifier, nil, fastOptions())
	t.Cleanup(s.Close)
	return s
}

func waitForState(t *testing.T, s *Service, formID, docID string, want DisplayState) DocumentView {
	t.Helper()
	var view DocumentView
	require.Eventually(t, func() bool {
		snap, err := s.Get(formID)
		if err != nil {
			return false
		}
		view, _ = snap.Document(docID)
		return view.State == want
	}, 2*time.Second, 5*time.Millisecond, "document %s never reached %s", docID, want)
	return view
}

func uploadAll(t *testing.T, s *Service, formID string, st catalog.SupplierType) {
	t.Helper()
	for _, d := range catalog.Documents(st) {
		_, err := s.Upload(formID, d.ID, d.ID+".png", []byte("png bytes"))
		require.NoError(t, err)
	}
	for _, d := range catalog.Documents(st) {
		waitForState(t, s, formID, d.ID, StateValid)
	}
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(newFakeChecker(), nil, nil, Options{})
	defer s.Close()

	o := s.Options()
	assert.Equal(t, catalog.DefaultMaxUploadBytes, o.MaxUploadBytes)
	assert.Equal(t, DefaultCheckTimeout, o.CheckTimeout)
	assert.Equal(t, int64(DefaultMaxConcurrentChecks), o.MaxConcurrentChecks)
	assert.Equal(t, DefaultProgressStep, o.ProgressStep)
	assert.Equal(t, DefaultProgressInterval, o.ProgressInterval)
	assert.Equal(t, DefaultSessionTTL, o.SessionTTL)
}

func TestService_FormLifecycle(t *testing.T) {
	s := newTestService(t, newFakeChecker(), nil)

	snap := s.NewForm()
	require.NotEmpty(t, snap.ID)
	assert.Equal(t, catalog.SupplierLocal, snap.SupplierType)
	assert.Len(t, snap.Documents, 4)
	assert.Equal(t, HintBoth, snap.Hint)

	got, err := s.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrFormNotFound)

	snap, err = s.SetSupplierType(snap.ID, "foreign")
	require.NoError(t, err)
	assert.Len(t, snap.Documents, 7)

	_, err = s.SetSupplierType(snap.ID, "martian")
	assert.ErrorIs(t, err, catalog.ErrUnknownSupplierType)

	snap, err = s.SetPONumber(snap.ID, "PO-9")
	require.NoError(t, err)
	assert.True(t, snap.POValid)
	assert.Equal(t, HintDocuments, snap.Hint)
}

func TestService_UploadValidation(t *testing.T) {
	checker := newFakeChecker()
	s := newTestService(t, checker, nil)
	id := s.NewForm().ID

	_, err := s.Upload(id, catalog.Invoice, "facture.docx", []byte("x"))
	assert.ErrorIs(t, err, catalog.ErrUnsupportedFileType)

	_, err = s.Upload(id, catalog.Invoice, "facture.pdf", nil)
	assert.ErrorIs(t, err, catalog.ErrEmptyFile)

	big := make([]byte, catalog.DefaultMaxUploadBytes+1)
	_, err = s.Upload(id, catalog.Invoice, "facture.pdf", big)
	assert.ErrorIs(t, err, catalog.ErrFileTooLarge)

	_, err = s.Upload(id, "passport", "p.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownDocument)

	_, err = s.Upload("missing", catalog.Invoice, "f.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrFormNotFound)

	assert.Zero(t, atomic.LoadInt32(&checker.calls), "rejected files must not be checked")
}

func TestService_UploadReadable(t *testing.T) {
	s := newTestService(t, newFakeChecker(), nil)
	id := s.NewForm().ID

	snap, err := s.Upload(id, catalog.Invoice, "facture.png", []byte("png"))
	require.NoError(t, err)
	view, _ := snap.Document(catalog.Invoice)
	assert.Equal(t, StateProcessing, view.State)

	view = waitForState(t, s, id, catalog.Invoice, StateValid)
	assert.True(t, view.Status.Uploaded)
	assert.Equal(t, 100, *view.Status.Progress)
	assert.Equal(t, "facture.png", *view.Status.FileName)
}

func TestService_UploadUnreadable(t *testing.T) {
	checker := newFakeChecker()
	checker.results["flou.jpg"] = readability.Result{Error: readability.MsgLowQuality, TextLength: 40, Confidence: 22}
	s := newTestService(t, checker, nil)
	id := s.NewForm().ID

	_, err := s.Upload(id, catalog.Invoice, "flou.jpg", []byte("jpg"))
	require.NoError(t, err)

	view := waitForState(t, s, id, catalog.Invoice, StateProblem)
	assert.False(t, view.Status.Uploaded)
	require.NotNil(t, view.Status.Error)
	assert.Equal(t, readability.MsgLowQuality, *view.Status.Error)

	// retry with a better scan
	_, err = s.Upload(id, catalog.Invoice, "net.jpg", []byte("jpg"))
	require.NoError(t, err)
	view = waitForState(t, s, id, catalog.Invoice, StateValid)
	assert.Nil(t, view.Status.Error)
}

func TestService_CheckerPanicBecomesUploadError(t *testing.T) {
	checker := newFakeChecker()
	checker.panicOn = "boom.png"
	s := newTestService(t, checker, nil)
	id := s.NewForm().ID

	_, err := s.Upload(id, catalog.Invoice, "boom.png", []byte("png"))
	require.NoError(t, err)

	view := waitForState(t, s, id, catalog.Invoice, StateProblem)
	require.NotNil(t, view.Status.Error)
	assert.Equal(t, "Erreur lors du traitement du fichier: decoder exploded", *view.Status.Error)
}

func TestService_ResetDiscardsRunningCheck(t *testing.T) {
	checker := newFakeChecker()
	checker.block["slow.png"] = true
	checker.results["slow.png"] = readability.Result{Readable: true, TextLength: 30, Confidence: 80}
	s := newTestService(t, checker, nil)
	id := s.NewForm().ID

	_, err := s.Upload(id, catalog.Invoice, "slow.png", []byte("png"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&checker.active) == 1 }, time.Second, time.Millisecond)

	snap, err := s.Reset(id, catalog.Invoice)
	require.NoError(t, err)
	view, _ := snap.Document(catalog.Invoice)
	assert.Equal(t, StatePending, view.State)

	close(checker.release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&checker.active) == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got, err := s.Get(id)
	require.NoError(t, err)
	view, _ = got.Document(catalog.Invoice)
	assert.Equal(t, StatePending, view.State)
	assert.False(t, view.Status.Uploaded)
}

func TestService_ConcurrentChecksCapped(t *testing.T) {
	checker := newFakeChecker()
	docs := catalog.Documents(catalog.SupplierForeign)
	for _, d := range docs {
		checker.block[d.ID+".png"] = true
	}
	s := newTestService(t, checker, nil)
	id := s.NewForm().ID
	_, err := s.SetSupplierType(id, "foreign")
	require.NoError(t, err)

	for _, d := range docs {
		_, err := s.Upload(id, d.ID, d.ID+".png", []byte("png"))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&checker.active) == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&checker.active))

	close(checker.release)
	for _, d := range docs {
		waitForState(t, s, id, d.ID, StateValid)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&checker.peak))
}

func TestService_Submit(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newTestService(t, newFakeChecker(), notifier)
	id := s.NewForm().ID

	_, err := s.Submit(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotSubmittable)

	_, err = s.SetPONumber(id, "PO-2024-7")
	require.NoError(t, err)
	uploadAll(t, s, id, catalog.SupplierLocal)

	receipt, err := s.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, receipt.FormID)
	assert.Equal(t, "PO-2024-7", receipt.PONumber)
	assert.Len(t, receipt.Documents, 4)
	assert.Equal(t, MsgSubmitted, receipt.Message)

	snap, _ := s.Get(id)
	assert.True(t, snap.Submitted)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.receipts, 1)
	assert.Equal(t, receipt.ID, notifier.receipts[0].ID)
}

func TestService_SubmitNotifierErrorIgnored(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	s := newTestService(t, newFakeChecker(), notifier)
	id := s.NewForm().ID
	_, _ = s.SetPONumber(id, "PO-1")
	uploadAll(t, s, id, catalog.SupplierLocal)

	_, err := s.Submit(context.Background(), id)
	assert.NoError(t, err)
}

func TestService_SubmitCancelled(t *testing.T) {
	s := NewService(newFakeChecker(), nil, nil, Options{
		ProgressInterval: time.Millisecond,
		SubmitDelay:      time.Hour,
	})
	defer s.Close()
	id := s.NewForm().ID
	_, _ = s.SetPONumber(id, "PO-1")
	uploadAll(t, s, id, catalog.SupplierLocal)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, id)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		snap, _ := s.Get(id)
		return snap.Submitting
	}, time.Second, time.Millisecond)

	_, err := s.Submit(context.Background(), id)
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	snap, _ := s.Get(id)
	assert.False(t, snap.Submitting)
	assert.False(t, snap.Submitted)
}

func TestService_Subscribe(t *testing.T) {
	s := newTestService(t, newFakeChecker(), nil)
	id := s.NewForm().ID

	events, cancel, err := s.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	_, err = s.Upload(id, catalog.Invoice, "facture.png", []byte("png"))
	require.NoError(t, err)

	var types []EventType
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			assert.Equal(t, id, ev.FormID)
			assert.Equal(t, catalog.Invoice, ev.Document)
			types = append(types, ev.Type)
			if view, _ := ev.Snapshot.Document(catalog.Invoice); view.State == StateValid {
				assert.Equal(t, EventUploadStarted, types[0])
				assert.Contains(t, types, EventCheckCompleted)
				assert.Equal(t, EventProgress, types[len(types)-1])
				return
			}
		case <-timeout:
			t.Fatalf("upload did not complete, got events %v", types)
		}
	}
}

func TestService_SubscribeUnknownForm(t *testing.T) {
	s := newTestService(t, newFakeChecker(), nil)
	_, _, err := s.Subscribe("missing")
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestService_CloseEndsSubscriptions(t *testing.T) {
	s := NewService(newFakeChecker(), nil, nil, fastOptions())
	id := s.NewForm().ID
	events, cancel, err := s.Subscribe(id)
	require.NoError(t, err)

	s.Close()
	_, open := <-events
	assert.False(t, open)
	cancel()
}
