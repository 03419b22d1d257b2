package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jcuenca6779/urbandrive/internal/config"
	"github.com/jcuenca6779/urbandrive/internal/domain"
)

// SeverityClient calls the AI classification service. Every failure path
// (timeout, transport error, bad status, bad body, unknown value) degrades
// to SeverityMedium so incident creation never depends on the oracle.
type SeverityClient struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

func NewSeverityClient(cfg config.AIConfig, logger *slog.Logger) *SeverityClient {
	return &SeverityClient{
		logger:  logger,
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type classifyRequest struct {
	IncidentType string `json:"tipo_incidente"`
	Description  string `json:"descripcion"`
}

type classifyResponse struct {
	Severity   domain.Severity `json:"severidad"`
	Confidence float64         `json:"confianza"`
}

func (c *SeverityClient) Classify(ctx context.Context, incidentType, description string) domain.Severity {
	if incidentType == "" {
		incidentType = "incidente"
	}

	body, err := json.Marshal(classifyRequest{
		IncidentType: incidentType,
		Description:  description,
	})
	if err != nil {
		c.logger.Error("marshal classify request failed", slog.Any("error", err))
		return domain.SeverityMedium
	}

	url := fmt.Sprintf("%s/clasificar-severidad", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("create classify request failed", slog.Any("error", err))
		return domain.SeverityMedium
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("severity oracle unreachable, defaulting to media", slog.Any("error", err))
		return domain.SeverityMedium
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("severity oracle error status, defaulting to media",
			slog.Int("status", resp.StatusCode))
		return domain.SeverityMedium
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Error("decode classify response failed, defaulting to media", slog.Any("error", err))
		return domain.SeverityMedium
	}

	if !out.Severity.Valid() {
		c.logger.Warn("severity oracle returned unknown value, defaulting to media",
			slog.String("severidad", string(out.Severity)))
		return domain.SeverityMedium
	}

	c.logger.Info("severity classified",
		slog.String("severidad", string(out.Severity)),
		slog.Float64("confianza", out.Confidence))
	return out.Severity
}
