package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/store"
	"golang.org/x/net/publicsuffix"
)

// PersistentJar is a cookie jar whose cookies for one backend origin are saved in a store.
// It plays the part of the browser cookie store for the backend session cookies.
type PersistentJar struct {
	jar    *cookiejar.Jar
	origin *url.URL
	store  store.Store
}

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// NewPersistentJar creates a jar for origin and loads any cookies saved in s.
// An unreadable saved record is discarded.
func NewPersistentJar(ctx context.Context, origin string, s store.Store) (*PersistentJar, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie origin: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	pj := &PersistentJar{jar: jar, origin: u, store: s}
	if err := pj.load(ctx); err != nil {
		return nil, err
	}

	return pj, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Empty reports whether the jar holds no cookies for the origin.
func (j *PersistentJar) Empty() bool {
	return len(j.jar.Cookies(j.origin)) == 0
}

// Save writes the cookies currently held for the origin.
func (j *PersistentJar) Save(ctx context.Context) error {
	cookies := j.jar.Cookies(j.origin)
	if len(cookies) == 0 {
		return j.store.Delete(ctx, store.CookieKey)
	}

	saved := make([]savedCookie, 0, len(cookies))
	for _, c := range cookies {
		// the jar only returns name and value
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value, Path: "/"})
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	return j.store.Put(ctx, store.CookieKey, data)
}

// Clear drops every cookie for the origin, in memory and in the store.
func (j *PersistentJar) Clear(ctx context.Context) error {
	cookies := j.jar.Cookies(j.origin)
	expired := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
	}
	j.jar.SetCookies(j.origin, expired)

	return j.store.Delete(ctx, store.CookieKey)
}

func (j *PersistentJar) load(ctx context.Context) error {
	data, err := j.store.Get(ctx, store.CookieKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if errors.Is(err, store.ErrCorrupt) {
			log.Warn().Err(err).Msg("Discarding unreadable saved cookies")
			return j.store.Delete(ctx, store.CookieKey)
		}
		return fmt.Errorf("failed to load cookies: %w", err)
	}

	var saved []savedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable saved cookies")
		return j.store.Delete(ctx, store.CookieKey)
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, s := range saved {
		cookies = append(cookies, &http.Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Path:     s.Path,
			Domain:   s.Domain,
			Expires:  s.Expires,
			Secure:   s.Secure,
			HttpOnly: s.HttpOnly,
		})
	}
	j.jar.SetCookies(j.origin, cookies)

	return nil
}
