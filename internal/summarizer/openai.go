package summarizer

import (
	"context"
	"docdigest/internal/retry"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 8192
)

type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API base URL. Useful for proxies/testing.
	BaseURL string
}

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAISummarizer builds a new summarizer instance. Retries are left to
// the caller.
func NewOpenAISummarizer(cfg OpenAIConfig) (*OpenAISummarizer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.ChatModelGPT5Mini
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Summarize produces a single summary for input's stage.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	if strings.TrimSpace(input.Text) == "" {
		return "", errors.New("input is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           s.model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions(input.Stage)),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPrompt(input)),
			},
		})
		if err != nil {
			return "", classifyOpenAIError(err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens *= 2
				if maxOutputTokens > limitMaxOutputTokens {
					maxOutputTokens = limitMaxOutputTokens
				}
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return summary, nil
	}
}

func classifyOpenAIError(err error) error {
	wrapped := fmt.Errorf("do request: %w", err)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
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
