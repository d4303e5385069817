package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/mangashelf/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMinInterval = 2 * time.Second
	defaultUserAgent   = "MangaShelf/1.0"
	maxBodyBytes       = 32 << 20
)

// ConnectivityError means the remote could not be reached (DNS, refused,
// reset, timeout, cancelled).
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return "remote unreachable: " + e.Err.Error() }
func (e *ConnectivityError) Unwrap() error { return e.Err }

// Is lets callers match any connectivity failure with domain.ErrOffline.
func (e *ConnectivityError) Is(target error) bool { return target == domain.ErrOffline }

// ProtocolError means the remote answered with a non-2xx status.
type ProtocolError struct {
	StatusCode int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// DecodeError means the payload was not a valid catalog.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "failed to parse response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Options configures a Client. Zero values pick defaults.
type Options struct {
	Timeout     time.Duration
	MinInterval time.Duration // minimum spacing between requests
	UserAgent   string
	HTTPClient  *http.Client
}

// Client fetches the catalog over HTTP. Implements domain.CatalogRepository.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ domain.CatalogRepository = (*Client)(nil)

// NewClient creates a client for the catalog at url.
func NewClient(url string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		url:        strings.TrimSpace(url),
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		logger:     logger,
	}
}

// FetchAll downloads the whole catalog. A body of "null" or "[]" yields an
// empty slice and no error; the caller decides what empty means.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Manga, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ConnectivityError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("catalog request", "url", c.url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("catalog request failed", "error", err)
		return nil, &ConnectivityError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("catalog request error", "status", resp.StatusCode)
		return nil, &ProtocolError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isConnectivity(err) {
			return nil, &ConnectivityError{Err: err}
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	items, err := decodeCatalog(body)
	if err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, err
	}
	c.logger.Debug("catalog fetched", "count", len(items))
	return items, nil
}

// catalogEntry is the wire shape of one record. Local flags are not part of
// the remote contract and are never read from it.
type catalogEntry struct {
	ID                   string  `json:"id"`
	Image                string  `json:"image"`
	Score                float64 `json:"score"`
	Popularity           int     `json:"popularity"`
	Title                string  `json:"title"`
	PublishedChapterDate int64   `json:"publishedChapterDate"`
	Category             string  `json:"category"`
}

func decodeCatalog(body []byte) ([]domain.Manga, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return []domain.Manga{}, nil
	}
	var entries []catalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &DecodeError{Err: err}
	}
	items := make([]domain.Manga, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, &DecodeError{Err: fmt.Errorf("entry %d has no id", i)}
		}
		items = append(items, domain.Manga{
			ID:          e.ID,
			ImageURL:    e.Image,
			Title:       e.Title,
			Category:    e.Category,
			Score:       e.Score,
			Popularity:  e.Popularity,
			PublishedAt: e.PublishedChapterDate,
		})
	}
	return items, nil
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
