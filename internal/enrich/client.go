package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"
)

const (
	headerEndpoint     = "/api/processHeaderDocument"
	referencesEndpoint = "/api/processReferences"

	// DefaultMaxAttempts bounds retries per endpoint; the service being
	// down must never stall a worker for long.
	DefaultMaxAttempts = 3
)

// Client posts PDFs to the bibliographic metadata service and parses
// the TEI it returns.
type Client struct {
	baseURL     string
	maxAttempts int
	httpClient  *http.Client
	log         *slog.Logger

	// backoffFn is swapped out in tests.
	backoffFn func(attempt int) time.Duration
}

// NewClient builds a client for the service at baseURL. timeout caps
// each HTTP call; maxAttempts <= 0 falls back to DefaultMaxAttempts.
func NewClient(baseURL string, timeout time.Duration, maxAttempts int, log *slog.Logger) *Client {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
		backoffFn:   backoff,
	}
}

// Enrich fetches header and reference metadata for one PDF. Both
// endpoints failing yields StatusUnavailable; a single endpoint
// failing degrades to a partial result. Enrich never returns an error:
// unavailability is an expected operating condition.
func (c *Client) Enrich(ctx context.Context, pdfPath string) Result {
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		c.log.Warn("enrichment skipped: cannot read pdf", "path", pdfPath, "error", err)
		return Unavailable()
	}

	var header *Header
	if xml, err := c.postPDF(ctx, headerEndpoint, "consolidateHeader", pdfBytes); err != nil {
		c.log.Info("header enrichment unavailable", "path", pdfPath, "error", err)
	} else if h, err := ParseHeader(xml); err != nil {
		c.log.Warn("header tei unparseable", "path", pdfPath, "error", err)
	} else {
		header = h
	}

	var refs []Reference
	refsOK := false
	if xml, err := c.postPDF(ctx, referencesEndpoint, "includeRawCitations", pdfBytes); err != nil {
		c.log.Info("reference enrichment unavailable", "path", pdfPath, "error", err)
	} else if r, err := ParseReferences(xml); err != nil {
		c.log.Warn("references tei unparseable", "path", pdfPath, "error", err)
	} else {
		refs = r
		refsOK = true
	}

	if header == nil && !refsOK {
		return Unavailable()
	}
	return Result{Status: StatusPresent, Header: header, References: refs}
}

// postPDF sends the PDF as multipart form data to one endpoint with
// bounded retries and returns the raw TEI body.
func (c *Client) postPDF(ctx context.Context, endpoint, consolidate string, pdfBytes []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoffFn(attempt - 1)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		body, err := c.doPost(ctx, endpoint, consolidate, pdfBytes)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		c.log.Debug("retrying enrichment call", "endpoint", endpoint, "attempt", attempt, "error", err)
	}
	return "", lastErr
}

func (c *Client) doPost(ctx context.Context, endpoint, consolidate string, pdfBytes []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="input"; filename="doc.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(pdfBytes); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.WriteField(consolidate, "1"); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &transientError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &transientError{err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return string(respBody), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// transientError marks failures worth retrying: transport errors,
// timeouts, 429s and 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// backoff returns the pause before retry n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
