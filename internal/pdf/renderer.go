package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/storage"
)

// ErrRenderFailed wraps any backend failure; the pipeline maps it to a
// failed report run.
var ErrRenderFailed = errors.New("pdf render failed")

// Renderer converts the print view of a report run into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, printURL string) ([]byte, error)
}

// Service renders a run's print page and stores the result, returning
// a 7-day presigned URL.
type Service struct {
	renderer     Renderer
	store        storage.ObjectStore
	printBaseURL string
}

func NewService(renderer Renderer, store storage.ObjectStore, printBaseURL string) *Service {
	return &Service{
		renderer:     renderer,
		store:        store,
		printBaseURL: strings.TrimSuffix(printBaseURL, "/"),
	}
}

// RenderAndStore produces reports/{account}/{filename}.pdf and returns
// its presigned GET URL.
func (s *Service) RenderAndStore(ctx context.Context, accountID, runID string, reportType domain.ReportType, city string) (string, error) {
	printURL := s.PrintURL(runID)

	body, err := s.renderer.Render(ctx, printURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	key := fmt.Sprintf("reports/%s/%s", accountID, Filename(city, reportType, runID))
	if err := s.store.Put(ctx, key, body, "application/pdf"); err != nil {
		return "", fmt.Errorf("store pdf: %w", err)
	}

	signed, err := s.store.PresignGet(ctx, key, storage.DefaultPresignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign pdf: %w", err)
	}
	return signed, nil
}

// PrintURL is the worker-hosted HTML view of a run, recorded as the
// run's html artifact.
func (s *Service) PrintURL(runID string) string {
	return fmt.Sprintf("%s/print/%s", s.printBaseURL, runID)
}

// Filename builds {sanitized_city}_{CamelReportType}_{run8}.pdf.
func Filename(city string, reportType domain.ReportType, runID string) string {
	runPrefix := runID
	if len(runPrefix) > 8 {
		runPrefix = runPrefix[:8]
	}
	return fmt.Sprintf("%s_%s_%s.pdf", sanitizeCity(city), camelType(reportType), runPrefix)
}

func sanitizeCity(city string) string {
	if strings.TrimSpace(city) == "" {
		return "Area"
	}
	var builder strings.Builder
	for _, char := range city {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
			builder.WriteRune(char)
		case char == ' ' || char == '-' || char == '_':
			builder.WriteRune('-')
		}
	}
	sanitized := strings.Trim(builder.String(), "-")
	if sanitized == "" {
		return "Area"
	}
	return sanitized
}

func camelType(reportType domain.ReportType) string {
	parts := strings.Split(string(reportType), "_")
	for index, part := range parts {
		if part == "" {
			continue
		}
		parts[index] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

// renderTimeout bounds a single cloud render request end to end.
const renderTimeout = 100 * time.Second
