package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	var ua string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2*time.Second, 5, "")
	out := chk.Check(context.Background(), s.URL)
	if !out.Up() {
		t.Fatalf("want up, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if out.LatencyMS == nil || *out.LatencyMS < 0 {
		t.Fatalf("latency should be set, got %v", out.LatencyMS)
	}
	if ua != "Uptime-Monitor/1.0" {
		t.Fatalf("user agent: %q", ua)
	}
}

func TestHTTPChecker_ClientErrorsCountAsUp(t *testing.T) {
	for _, code := range []int{301, 404, 418, 499} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		out := NewHTTPChecker(2*time.Second, 0, "").Check(context.Background(), s.URL)
		s.Close()
		if out.Status != domain.StatusUp || out.StatusCode != code {
			t.Fatalf("code %d: want up, got %+v", code, out)
		}
	}
}

func TestHTTPChecker_Status503(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 503)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, 5, "").Check(context.Background(), s.URL)
	if out.Up() {
		t.Fatalf("want down, got %+v", out)
	}
	if out.Failure != FailureServerError || out.StatusCode != 503 {
		t.Fatalf("want server_error/503, got %+v", out)
	}
	if out.Message != "HTTP 503" {
		t.Fatalf("want message HTTP 503, got %q", out.Message)
	}
	if out.LatencyMS == nil {
		t.Fatal("server errors still carry latency")
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(200)
	}))
	defer s.Close()
	defer close(release)

	out := NewHTTPChecker(50*time.Millisecond, 5, "").Check(context.Background(), s.URL)
	if out.Up() {
		t.Fatalf("want down due to timeout, got %+v", out)
	}
	if out.Failure != FailureTimeout || !strings.HasPrefix(out.Message, "timeout") {
		t.Fatalf("want timeout failure, got %+v", out)
	}
	if out.StatusCode != 0 || out.LatencyMS != nil {
		t.Fatalf("no response means no status and no latency, got %+v", out)
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	out := NewHTTPChecker(time.Second, 5, "").Check(context.Background(), url)
	if out.Up() || out.Failure != FailureTransport || out.Message == "" {
		t.Fatalf("want transport failure, got %+v", out)
	}
}

func TestHTTPChecker_InvalidURL(t *testing.T) {
	out := NewHTTPChecker(time.Second, 5, "").Check(context.Background(), "://nope")
	if out.Up() || out.Failure != FailureTransport {
		t.Fatalf("want transport failure, got %+v", out)
	}
}

// hops redirects n times before answering 200.
func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		if n > 0 {
			http.Redirect(w, r, "/?n="+strconv.Itoa(n-1), http.StatusFound)
			return
		}
		w.WriteHeader(200)
	}))
}

func TestHTTPChecker_FollowsFiveRedirects(t *testing.T) {
	s := redirectServer(t)
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, 5, "").Check(context.Background(), s.URL+"/?n=5")
	if !out.Up() || out.StatusCode != 200 {
		t.Fatalf("five hops should succeed, got %+v", out)
	}
}

func TestHTTPChecker_SixRedirectsIsDown(t *testing.T) {
	s := redirectServer(t)
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, 5, "").Check(context.Background(), s.URL+"/?n=6")
	if out.Up() || out.Failure != FailureTransport {
		t.Fatalf("six hops should fail, got %+v", out)
	}
	if !strings.Contains(out.Message, "redirects") {
		t.Fatalf("message should mention redirects: %q", out.Message)
	}
}
