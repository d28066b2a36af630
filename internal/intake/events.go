package intake

import (
	"sync"
	"time"
)

// EventType names a change on a form.
type EventType string

const (
	EventSnapshot        EventType = "form.snapshot"
	EventCreated         EventType = "form.created"
	EventSupplierChanged EventType = "form.supplier_changed"
	EventPOChanged       EventType = "form.po_changed"
	EventUploadStarted   EventType = "document.upload_started"
	EventCheckCompleted  EventType = "document.check_completed"
	EventProgress        EventType = "document.progress"
	EventUploadFailed    EventType = "document.upload_failed"
	EventReset           EventType = "document.reset"
	EventSubmitStarted   EventType = "form.submit_started"
	EventSubmitted       EventType = "form.submitted"
	EventSubmitAborted   EventType = "form.submit_aborted"
)

// Event is published to a form's subscribers after every state change.
type Event struct {
	Type     EventType `json:"type"`
	FormID   string    `json:"formId"`
	Document string    `json:"document,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
	Receipt  *Receipt  `json:"receipt,omitempty"`
	Time     time.Time `json:"time"`
}

const subscriberBuffer = 32

// hub fans events out to per-form subscribers. Slow subscribers lose events
// rather than block the form.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *hub) subscribe(formID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[formID] == nil {
		h.subs[formID] = make(map[chan Event]struct{})
	}
	h.subs[formID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[formID][ch]; ok {
				delete(h.subs[formID], ch)
				close(ch)
			}
			if len(h.subs[formID]) == 0 {
				delete(h.subs, formID)
			}
		})
	}
	return ch, cancel
}

// publish returns the number of subscribers that received the event.
func (h *hub) publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for ch := range h.subs[ev.FormID] {
		select {
		case ch <- ev:
			n++
		default:
		}
	}
	return n
}

// closeForm ends every subscription of a form.
func (h *hub) closeForm(formID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[formID] {
		close(ch)
	}
	delete(h.subs, formID)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, subs := range h.subs {
		for ch := range subs {
			close(ch)
		}
		delete(h.subs, id)
	}
}
