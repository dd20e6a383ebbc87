// Package vision wraps the external multimodal model that turns an uploaded
// photo into a short natural-language damage description.
package vision

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/campusworks/maintenance-reporter/internal/config"
	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

// inspectorPrompt steers the model toward a short, classifiable summary.
const inspectorPrompt = "You are a maintenance inspector. Analyze this image and provide a brief 2-3 sentence summary of any maintenance issues. " +
	"Focus on: fans, lights, furniture, or electronics. " +
	"If damaged: state the item and specific problem (e.g., 'Ceiling fan blade is severely bent and broken'). " +
	"If no issues: respond with exactly 'No maintenance issues detected'. " +
	"Keep your response concise and under 100 words."

// noIssuesFallback is returned when the model answers with an empty body.
const noIssuesFallback = "No visible issues detected."

// Analyzer produces a damage description for an image. Implementations make
// exactly one outbound call and hold no local state.
type Analyzer interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}

// GeminiAnalyzer calls the Gemini API for image analysis.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiAnalyzer builds the adapter. The API key is required.
func NewGeminiAnalyzer(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY not provided")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAnalyzer{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout(),
		logger:  logger,
	}, nil
}

// Describe runs a single bounded model call. Any failure, including a
// timeout, surfaces as an analysis failure; the caller must resubmit.
func (a *GeminiAnalyzer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(inspectorPrompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		a.logger.Warn("image analysis call failed", zap.Error(err))
		return "", apperrors.NewAnalysisFailure(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return noIssuesFallback, nil
	}
	return text, nil
}
