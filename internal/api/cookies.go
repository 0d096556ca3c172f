package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// visitorCookie identifies an anonymous browser across requests.
const visitorCookie = "lb_visitor"

// requestJar binds the membership cookie backend to one request/response
// pair. Writes within a request shadow the incoming cookies, so a handler
// that sets and then reads a cookie sees its own write.
type requestJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]string
	expired map[string]bool
}

func newRequestJar(w http.ResponseWriter, r *http.Request) *requestJar {
	return &requestJar{
		r:       r,
		w:       w,
		written: map[string]string{},
		expired: map[string]bool{},
	}
}

func (j *requestJar) Get(name string) (string, bool) {
	if j.expired[name] {
		return "", false
	}
	if v, ok := j.written[name]; ok {
		return v, true
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *requestJar) Set(name, value string, ttl time.Duration) {
	delete(j.expired, name)
	j.written[name] = value
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j *requestJar) Expire(name string) {
	delete(j.written, name)
	j.expired[name] = true
	http.SetCookie(j.w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
}

func (j *requestJar) Names() []string {
	seen := map[string]bool{}
	var names []string
	for name := range j.written {
		seen[name] = true
		names = append(names, name)
	}
	for _, c := range j.r.Cookies() {
		if !seen[c.Name] && !j.expired[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

// withVisitorID assigns a stable id cookie to anonymous browsers. Nothing
// reads it server-side yet; it exists so membership cookies from the same
// browser can be correlated in logs.
func withVisitorID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(visitorCookie); err != nil {
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookie,
				Value:    uuid.NewString(),
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour) / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r)
	})
}
