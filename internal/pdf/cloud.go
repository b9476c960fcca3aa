package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CloudRenderer delegates HTML→PDF conversion to an external service
// that accepts a JSON job description and answers with PDF bytes.
type CloudRenderer struct {
	serviceURL string
	apiKey     string
	httpClient *http.Client
}

func NewCloudRenderer(serviceURL, apiKey string) *CloudRenderer {
	return &CloudRenderer{
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: renderTimeout},
	}
}

type cloudRenderRequest struct {
	Source         string `json:"source"`
	Format         string `json:"format"`
	Margin         int    `json:"margin"`
	UsePrint       bool   `json:"use_print"`
	DelayMS        int    `json:"delay"`
	WaitForNetwork bool   `json:"wait_for_network"`
	TimeoutSeconds int    `json:"timeout"`
}

func (r *CloudRenderer) Render(ctx context.Context, printURL string) ([]byte, error) {
	payload := cloudRenderRequest{
		Source:         printURL,
		Format:         "Letter",
		Margin:         0,
		UsePrint:       true,
		DelayMS:        8000,
		WaitForNetwork: true,
		TimeoutSeconds: 100,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-API-Key", r.apiKey)

	response, err := r.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("render service status %d: %s", response.StatusCode, strings.TrimSpace(string(detail)))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered pdf: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("render service returned empty body")
	}
	return body, nil
}
