package pipeline

import (
	"net/http"
	"sync"
)

// Session carries the browser-like header template and the cookies picked
// up along the way. One Session is built per Acquire call and threaded
// through every request in that call; it is never shared across callers.
type Session struct {
	mu      sync.Mutex
	headers map[string]string
	cookies []*http.Cookie
}

func NewSession(userAgent string) *Session {
	return &Session{
		headers: map[string]string{
			"User-Agent":                userAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Upgrade-Insecure-Requests": "1",
		},
	}
}

// Apply stamps the header template and accumulated cookies onto a request.
func (s *Session) Apply(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
}

// Absorb keeps any cookies set by a response for subsequent requests in
// the same call. Later cookies with the same name replace earlier ones.
func (s *Session) Absorb(resp *http.Response) {
	if resp == nil {
		return
	}
	fresh := resp.Cookies()
	if len(fresh) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range fresh {
		replaced := false
		for i, existing := range s.cookies {
			if existing.Name == c.Name {
				s.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			s.cookies = append(s.cookies, c)
		}
	}
}

// CookieCount reports how many distinct cookies the session holds.
func (s *Session) CookieCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cookies)
}
