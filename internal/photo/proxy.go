package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homescope/reports-back/internal/report"
	"github.com/homescope/reports-back/internal/storage"
)

const (
	fetchTimeout  = 15 * time.Second
	fetchAttempts = 3
	backoffStep   = 2 * time.Second
	maxImageBytes = 20 << 20
)

// Vendor photo hosts often reject obvious bots; requests rotate
// through a small pool of browser user agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// Proxy re-hosts vendor photo URLs into private object storage and
// swaps in short-lived signed URLs. Failures leave the original URL in
// place; a vendor-hosted photo beats a broken one.
type Proxy struct {
	store      storage.ObjectStore
	httpClient *http.Client
	logger     *log.Logger
	expiry     time.Duration
}

func NewProxy(store storage.ObjectStore, logger *log.Logger) *Proxy {
	return &Proxy{
		store: store,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		logger: logger,
		expiry: storage.DefaultPresignExpiry,
	}
}

// RewriteHeroPhotos mutates the hero photo URL of each card in place.
// Call this only after the raw payload has been persisted, so cached
// payloads never contain signed URLs.
func (p *Proxy) RewriteHeroPhotos(ctx context.Context, accountID, runID string, cards []report.ListingCard) {
	for index := range cards {
		original := cards[index].HeroPhotoURL
		if skippable(original) || p.store.Owns(original) {
			continue
		}

		signed, err := p.rehost(ctx, accountID, runID, index, original)
		if err != nil {
			if p.logger != nil {
				p.logger.Printf("photo proxy failed, keeping original url run_id=%s idx=%d err=%v", runID, index, err)
			}
			continue
		}
		cards[index].HeroPhotoURL = signed
	}
}

func (p *Proxy) rehost(ctx context.Context, accountID, runID string, index int, rawURL string) (string, error) {
	body, contentType, err := p.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("report-photos/%s/%s/%d-%s%s",
		accountID, runID, index, uuid.NewString()[:8], extensionFor(contentType, rawURL))
	if err := p.store.Put(ctx, key, body, contentType); err != nil {
		return "", err
	}
	return p.store.PresignGet(ctx, key, p.expiry)
}

func (p *Proxy) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(time.Duration(attempt) * backoffStep):
			}
		}

		body, contentType, err := p.fetchOnce(ctx, rawURL, attempt)
		if err == nil {
			return body, contentType, nil
		}
		lastErr = err
		if !retryableFetchError(err) {
			break
		}
	}
	return nil, "", lastErr
}

func (p *Proxy) fetchOnce(ctx context.Context, rawURL string, attempt int) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build photo request: %w", err)
	}
	request.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])
	request.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	request.Header.Set("Accept-Language", "en-US,en;q=0.9")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, "", timeoutError{fmt.Errorf("fetch photo: %w", err)}
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, "", timeoutError{fmt.Errorf("photo status %d", response.StatusCode)}
	default:
		return nil, "", fmt.Errorf("photo status %d", response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read photo body: %w", err)
	}
	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}

type timeoutError struct {
	err error
}

func (e timeoutError) Error() string { return e.err.Error() }
func (e timeoutError) Unwrap() error { return e.err }

func retryableFetchError(err error) bool {
	var retryable timeoutError
	return errors.As(err, &retryable)
}

func skippable(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(rawURL), "data:")
}

func extensionFor(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		case "image/gif":
			return ".gif"
		}
	}
	if ext := strings.ToLower(path.Ext(strings.SplitN(rawURL, "?", 2)[0])); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}
