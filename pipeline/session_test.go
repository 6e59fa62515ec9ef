package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionApply(t *testing.T) {
	sess := NewSession("test-agent")
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)

	sess.Apply(req)
	if req.Header.Get("User-Agent") != "test-agent" {
		t.Fatalf("unexpected user agent %q", req.Header.Get("User-Agent"))
	}
	if req.Header.Get("Accept-Language") == "" {
		t.Fatalf("expected browser-like headers to be stamped")
	}
}

func TestSessionAbsorbAndReplace(t *testing.T) {
	sess := NewSession("test-agent")

	rec := httptest.NewRecorder()
	http.SetCookie(rec, &http.Cookie{Name: "session", Value: "first"})
	http.SetCookie(rec, &http.Cookie{Name: "csrf", Value: "tok"})
	sess.Absorb(rec.Result())

	if sess.CookieCount() != 2 {
		t.Fatalf("expected 2 cookies, got %d", sess.CookieCount())
	}

	// A later cookie with the same name replaces the earlier one.
	rec = httptest.NewRecorder()
	http.SetCookie(rec, &http.Cookie{Name: "session", Value: "second"})
	sess.Absorb(rec.Result())

	if sess.CookieCount() != 2 {
		t.Fatalf("expected replacement, not append; got %d cookies", sess.CookieCount())
	}

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	sess.Apply(req)
	c, err := req.Cookie("session")
	if err != nil {
		t.Fatalf("session cookie missing: %v", err)
	}
	if c.Value != "second" {
		t.Fatalf("expected replaced cookie value, got %q", c.Value)
	}
}

func TestSessionAbsorbNil(t *testing.T) {
	sess := NewSession("test-agent")
	sess.Absorb(nil)
	if sess.CookieCount() != 0 {
		t.Fatalf("expected no cookies, got %d", sess.CookieCount())
	}
}
