package intake

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultSessionTTL    = time.Hour
	sessionCleanupPeriod = 10 * time.Minute
)

// SessionStore keeps forms in memory. A form expires after TTL without
// activity.
type SessionStore struct {
	cache *cache.Cache
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{cache: cache.New(ttl, sessionCleanupPeriod)}
}

// OnExpired registers a callback run when a form is evicted.
func (s *SessionStore) OnExpired(fn func(formID string)) {
	s.cache.OnEvicted(func(key string, _ interface{}) {
		fn(key)
	})
}

func (s *SessionStore) Save(f *Form) {
	s.cache.Set(f.ID(), f, cache.DefaultExpiration)
}

// Get returns a form and extends its lifetime.
func (s *SessionStore) Get(formID string) (*Form, bool) {
	x, found := s.cache.Get(formID)
	if !found {
		return nil, false
	}
	f := x.(*Form)
	s.cache.Set(formID, f, cache.DefaultExpiration)
	return f, true
}

func (s *SessionStore) Delete(formID string) {
	s.cache.Delete(formID)
}

func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}
