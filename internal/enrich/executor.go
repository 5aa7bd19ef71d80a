package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

const (
	defaultMaxBodySize  = 2 << 20 // pages past 2 MiB rarely add metadata
	defaultFetchTimeout = 30 * time.Second
	userAgent           = "zettel-system/1.0 (+link preview)"
)

// LinkStore is the subset of storage the enrichment executor needs.
type LinkStore interface {
	GetLink(ctx context.Context, id string) (storage.NoteLink, error)
	SetLinkMetadata(ctx context.Context, id, title, description, siteName string) error
}

// Executor fetches a link's page and records its metadata. It implements
// outbox.Executor; status transitions are handled by the worker.
type Executor struct {
	store       LinkStore
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// NewExecutor creates an enrichment executor. Pass a client built with
// NewFetchClient so the SSRF guard applies; maxBodySize of 0 uses the default.
func NewExecutor(store LinkStore, client *http.Client, maxBodySize int64, logger *slog.Logger) *Executor {
	if client == nil {
		client = NewFetchClient(defaultFetchTimeout)
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, client: client, maxBodySize: maxBodySize, logger: logger}
}

var _ outbox.Executor = (*Executor)(nil)

// Execute fetches the link's target page and stores its title, description,
// and site name. Validation failures and 4xx responses are permanent; network
// errors and 5xx responses are transient and retried.
func (e *Executor) Execute(ctx context.Context, id string) error {
	link, err := e.store.GetLink(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Note deleted between enqueue and execution; nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading link %s: %w", id, err)
	}

	target, err := ParseTarget(link.URL)
	if err != nil {
		return outbox.Permanent(fmt.Errorf("rejecting %q: %w", link.URL, err))
	}

	meta, err := e.fetch(ctx, target.String())
	if err != nil {
		return err
	}

	if meta.Title == "" {
		meta.Title = target.Hostname()
	}
	if err := e.store.SetLinkMetadata(ctx, id, meta.Title, meta.Description, meta.SiteName); err != nil {
		return fmt.Errorf("storing metadata for link %s: %w", id, err)
	}

	e.logger.Debug("link enriched", "link_id", id, "url", link.URL, "title", meta.Title)
	return nil
}

func (e *Executor) fetch(ctx context.Context, url string) (PageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PageMeta{}, outbox.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		if isDisallowedTarget(err) {
			return PageMeta{}, outbox.Permanent(err)
		}
		return PageMeta{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return PageMeta{}, outbox.Permanent(fmt.Errorf("fetching %s: status %d", url, resp.StatusCode))
	default:
		return PageMeta{}, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	if !isHTML(resp.Header.Get("Content-Type")) {
		// Non-HTML targets (PDFs, images) complete with no metadata.
		return PageMeta{}, nil
	}

	return ExtractMeta(io.LimitReader(resp.Body, e.maxBodySize)), nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || strings.HasSuffix(mediaType, "+html") || mediaType == "application/xhtml+xml"
}
