// pkg/recommend/gemini.go
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig holds settings for the recommendation client.
type GeminiConfig struct {
	APIKey string
	Model  string // default gemini-2.0-flash
}

// Gemini generates short data-quality recommendations from a metrics
// summary. It is an optional collaborator: the quality report falls back to
// a static message when construction or generation fails.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates the recommendation client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model, logger: logger}, nil
}

// Generate returns narrative recommendations for the given summary.
func (g *Gemini) Generate(ctx context.Context, summary string) (string, error) {
	prompt := strings.TrimSpace(`
You are a data quality expert. Given the dataset analysis below, give exactly
3 short, concrete recommendations to improve the dataset.

` + summary)

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{CandidateCount: 1},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate recommendations: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty model response")
	}

	g.logger.Debug("Recommendations generated", zap.Int("length", len(text)))
	return text, nil
}
