package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/mhpenta/autodrip/credentials"
	"github.com/mhpenta/autodrip/session"
)

// CookieName holds the session id.
const CookieName = "autodrip_session"

// Session is one browser's controller and the key it selected.
type Session struct {
	ID         string
	Controller *session.Controller

	// Keys receives keys typed on the entry screen. May be nil.
	Keys *credentials.Store
}

// SessionFactory builds the controller for a new browser session.
type SessionFactory func(ctx context.Context, id string) (*Session, error)

// sessionStore keeps sessions in memory and drops them after ttl without
// a request.
type sessionStore struct {
	cache   *cache.Cache
	ttl     time.Duration
	factory SessionFactory
}

func newSessionStore(ttl time.Duration, factory SessionFactory) *sessionStore {
	return &sessionStore{
		cache:   cache.New(ttl, ttl/2),
		ttl:     ttl,
		factory: factory,
	}
}

// lookup returns the session named by the request cookie, creating one and
// setting the cookie when there is none or it expired.
func (s *sessionStore) lookup(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if v, ok := s.cache.Get(c.Value); ok {
			sess := v.(*Session)
			// sliding expiry on both ends
			s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
			s.setCookie(w, sess.ID)
			return sess, nil
		}
	}

	id := uuid.NewString()
	sess, err := s.factory(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	sess.ID = id
	if err := s.cache.Add(id, sess, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	s.setCookie(w, id)
	return sess, nil
}

func (s *sessionStore) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// get returns an existing session without creating one.
func (s *sessionStore) get(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	v, ok := s.cache.Get(c.Value)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (s *sessionStore) count() int {
	return s.cache.ItemCount()
}
