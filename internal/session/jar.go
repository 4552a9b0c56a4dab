package session

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/pkg/client"
)

// sessionJar is a cookie jar that can be emptied on logout while the HTTP
// clients keep their reference to it.
type sessionJar struct {
	mu  sync.RWMutex
	jar *tokenstore.AttrJar
}

func newSessionJar() *sessionJar {
	return &sessionJar{jar: tokenstore.NewAttrJar(client.NewJar())}
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

func (j *sessionJar) CookieAttrs(name string) (secure, httpOnly bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.CookieAttrs(name)
}

func (j *sessionJar) reset() {
	j.mu.Lock()
	j.jar = tokenstore.NewAttrJar(client.NewJar())
	j.mu.Unlock()
}
