package repository

import (
	"encoding/json"
	"fmt"

	"github.com/homescope/reports-back/internal/domain"
)

func decodeFilters(data []byte) (*domain.ReportFilters, error) {
	var filters domain.ReportFilters
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	return &filters, nil
}
