package listings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/privacywhen/coursecluster/internal/coursekey"
)

func mustParse(t *testing.T, raw string) coursekey.Code {
	t.Helper()
	code, err := coursekey.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return code
}

func TestLookupCachesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/courses/SOCWORK-2A06" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"department":"SOCWORK","title":"Intro to Social Work"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zerolog.Nop())
	code := mustParse(t, "socwork-2a06")

	for i := 0; i < 3; i++ {
		listing, err := c.Lookup(context.Background(), code)
		if err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
		if listing.Title != "Intro to Social Work" {
			t.Fatalf("Lookup %d: unexpected listing %+v", i, listing)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected exactly 1 upstream request, got %d", got)
	}
}

func TestLookupServesStaleOnUpstreamError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"department":"MATH","title":"Calculus"}`))
	}))
	defer srv.Close()

	// TTL short enough that the second lookup misses the fresh cache.
	c := NewClient(srv.URL, 10*time.Millisecond, zerolog.Nop())
	code := mustParse(t, "math-1zz5")

	if _, err := c.Lookup(context.Background(), code); err != nil {
		t.Fatalf("initial Lookup: %v", err)
	}

	fail.Store(true)
	time.Sleep(30 * time.Millisecond)

	listing, err := c.Lookup(context.Background(), code)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if listing.Title != "Calculus" {
		t.Fatalf("expected stale listing, got %+v", listing)
	}
}

func TestLookupErrorWithoutStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zerolog.Nop())
	if _, err := c.Lookup(context.Background(), mustParse(t, "cs-1md3")); err == nil {
		t.Fatal("expected error when upstream fails with no cached value")
	}
}

func TestLookupFallsBackToCodeDepartment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Untagged Course"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zerolog.Nop())
	listing, err := c.Lookup(context.Background(), mustParse(t, "engphys-2a04"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if listing.Department != "ENGPHYS" {
		t.Fatalf("expected department from course code, got %+v", listing)
	}
}
