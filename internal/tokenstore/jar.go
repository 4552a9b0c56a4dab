package tokenstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type savedCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"http_only,omitempty"`
}

type cookieAttrs struct {
	secure   bool
	httpOnly bool
}

// AttrJar wraps a cookie jar and remembers the Secure and HttpOnly flags of
// the cookies set through it. http.CookieJar.Cookies returns name and value
// only, so SaveCookies asks the jar for the flags.
type AttrJar struct {
	http.CookieJar

	mu    sync.Mutex
	attrs map[string]cookieAttrs
}

// NewAttrJar wraps jar.
func NewAttrJar(jar http.CookieJar) *AttrJar {
	return &AttrJar{CookieJar: jar, attrs: map[string]cookieAttrs{}}
}

func (j *AttrJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	for _, c := range cookies {
		j.attrs[c.Name] = cookieAttrs{secure: c.Secure, httpOnly: c.HttpOnly}
	}
	j.mu.Unlock()
	j.CookieJar.SetCookies(u, cookies)
}

// CookieAttrs reports the flags name was last set with.
func (j *AttrJar) CookieAttrs(name string) (secure, httpOnly bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a := j.attrs[name]
	return a.secure, a.httpOnly
}

type attrReporter interface {
	CookieAttrs(name string) (secure, httpOnly bool)
}

// SaveCookies snapshots the jar's cookies for base under each path into s.
// Path-scoped cookies (the refresh cookie lives on /auth/refresh) are only
// visible when the jar is asked for that path, so every path is queried.
// An empty snapshot clears s.
func SaveCookies(s *Store, jar http.CookieJar, base *url.URL, paths []string, remember bool) error {
	var saved []savedCookie
	seen := map[string]string{}
	attrs, _ := jar.(attrReporter)
	for _, p := range paths {
		for _, c := range jar.Cookies(withPath(base, p)) {
			if v, ok := seen[c.Name]; ok && v == c.Value {
				continue
			}
			seen[c.Name] = c.Value
			sc := savedCookie{Name: c.Name, Value: c.Value, Path: scopePath(base, p)}
			if attrs != nil {
				sc.Secure, sc.HttpOnly = attrs.CookieAttrs(c.Name)
			}
			saved = append(saved, sc)
		}
	}
	if len(saved) == 0 {
		return s.Clear()
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("tokenstore.SaveCookies: %w", err)
	}
	return s.Set(string(data), remember)
}

// LoadCookies restores a snapshot written by SaveCookies into jar.
func LoadCookies(s *Store, jar http.CookieJar, base *url.URL) error {
	raw, ok := s.Get()
	if !ok {
		return nil
	}
	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return fmt.Errorf("tokenstore.LoadCookies: %w", err)
	}
	for _, c := range saved {
		u := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: c.Path}
		jar.SetCookies(u, []*http.Cookie{{Name: c.Name, Value: c.Value, Path: c.Path, Secure: c.Secure, HttpOnly: c.HttpOnly}})
	}
	return nil
}

func scopePath(base *url.URL, p string) string {
	return strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(p, "/")
}

func withPath(base *url.URL, p string) *url.URL {
	u := *base
	u.Path = scopePath(base, p)
	u.RawQuery = ""
	return &u
}
