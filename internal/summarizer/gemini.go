package summarizer

import (
	"context"
	"docdigest/internal/retry"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"
)

const geminiMaxOutputTokens int32 = 2048

type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// GeminiSummarizer calls the Gemini API to produce summaries.
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

func NewGeminiSummarizer(ctx context.Context, cfg GeminiConfig) (*GeminiSummarizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &GeminiSummarizer{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

func (s *GeminiSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	if strings.TrimSpace(input.Text) == "" {
		return "", errors.New("input is empty")
	}

	resp, err := s.client.Models.GenerateContent(
		ctx,
		s.model,
		genai.Text(userPrompt(input)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instructions(input.Stage), genai.RoleUser),
			CandidateCount:    1,
			MaxOutputTokens:   geminiMaxOutputTokens,
		},
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", errors.New("output text is missing")
	}

	return summary, nil
}

func classifyGeminiError(err error) error {
	wrapped := fmt.Errorf("generate content: %w", err)

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return retry.Transient(wrapped)
		}
		return wrapped
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return retry.Transient(wrapped)
	}

	return wrapped
}
