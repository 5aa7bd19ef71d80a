package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

// fakeLinkStore holds a single link and records stored metadata.
type fakeLinkStore struct {
	link        storage.NoteLink
	title       string
	description string
	siteName    string
	stored      bool
}

func (s *fakeLinkStore) GetLink(_ context.Context, id string) (storage.NoteLink, error) {
	if id != s.link.ID {
		return storage.NoteLink{}, storage.ErrNotFound
	}
	return s.link, nil
}

func (s *fakeLinkStore) SetLinkMetadata(_ context.Context, _, title, description, siteName string) error {
	s.title = title
	s.description = description
	s.siteName = siteName
	s.stored = true
	return nil
}

// newTestExecutor wires the executor with a plain HTTP client so requests can
// reach the loopback test server.
func newTestExecutor(store *fakeLinkStore) *Executor {
	return NewExecutor(store, &http.Client{}, 0, nil)
}

func TestExecutor_StoresPageMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<head><title>Fetched Page</title><meta name="description" content="A page."></head>`))
	}))
	defer srv.Close()

	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: srv.URL}}
	if err := newTestExecutor(store).Execute(context.Background(), "l1"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.title != "Fetched Page" || store.description != "A page." {
		t.Errorf("stored metadata = (%q, %q)", store.title, store.description)
	}
}

func TestExecutor_NonHTMLCompletesWithHostnameTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: srv.URL}}
	if err := newTestExecutor(store).Execute(context.Background(), "l1"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	u, _ := url.Parse(srv.URL)
	if store.title != u.Hostname() {
		t.Errorf("title = %q, want hostname fallback %q", store.title, u.Hostname())
	}
}

func TestExecutor_NotFoundStatusIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: srv.URL}}
	err := newTestExecutor(store).Execute(context.Background(), "l1")
	if err == nil {
		t.Fatal("Execute succeeded on a 404")
	}
	if !outbox.IsPermanent(err) {
		t.Errorf("404 error %v not permanent", err)
	}
}

func TestExecutor_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: srv.URL}}
	err := newTestExecutor(store).Execute(context.Background(), "l1")
	if err == nil {
		t.Fatal("Execute succeeded on a 429")
	}
	if outbox.IsPermanent(err) {
		t.Errorf("429 error %v marked permanent, want transient", err)
	}
}

func TestExecutor_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: srv.URL}}
	err := newTestExecutor(store).Execute(context.Background(), "l1")
	if err == nil {
		t.Fatal("Execute succeeded on a 500")
	}
	if outbox.IsPermanent(err) {
		t.Errorf("500 error %v marked permanent, want transient", err)
	}
}

func TestExecutor_RejectedURLIsPermanent(t *testing.T) {
	store := &fakeLinkStore{link: storage.NoteLink{ID: "l1", URL: "file:///etc/passwd"}}
	err := newTestExecutor(store).Execute(context.Background(), "l1")
	if err == nil {
		t.Fatal("Execute succeeded on a file: URL")
	}
	if !outbox.IsPermanent(err) {
		t.Errorf("validation error %v not permanent", err)
	}
	if store.stored {
		t.Error("metadata stored for a rejected URL")
	}
}

func TestExecutor_DeletedLinkIsNoOp(t *testing.T) {
	store := &fakeLinkStore{link: storage.NoteLink{ID: "other"}}
	if err := newTestExecutor(store).Execute(context.Background(), "gone"); err != nil {
		t.Errorf("Execute on a deleted link = %v, want nil", err)
	}
}
