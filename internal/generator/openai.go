// Package generator talks to the OpenAI Responses API with the web search
// tool, optionally restricted to a single domain.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/extract"
)

const (
	DefaultBaseURL         = "https://api.openai.com"
	DefaultModel           = "gpt-5-mini"
	DefaultReasoningEffort = "low"
)

var ErrEmptyResponse = errors.New("generator returned no text")

// APIError is a non-200 reply from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai: %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	ReasoningEffort string
	HTTPClient      *http.Client
	Limiter         *KeyedLimiter
}

// OpenAI implements extract.Generator.
type OpenAI struct {
	cfg Config
}

var _ extract.Generator = (*OpenAI)(nil)

func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = DefaultReasoningEffort
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &OpenAI{cfg: cfg}
}

type wireTool struct {
	Type    string       `json:"type"`
	Filters *wireFilters `json:"filters,omitempty"`
}

type wireFilters struct {
	AllowedDomains []string `json:"allowed_domains"`
}

type wireRequest struct {
	Model     string `json:"model"`
	Input     string `json:"input"`
	Reasoning struct {
		Effort string `json:"effort"`
	} `json:"reasoning"`
	Tools []wireTool `json:"tools"`
}

type wireResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// text joins every output_text part, which is what the SDKs expose as
// output_text.
func (r wireResponse) text() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func (o *OpenAI) Generate(ctx context.Context, req extract.GenerateRequest) (string, error) {
	if err := o.cfg.Limiter.Wait(ctx, req.Domain); err != nil {
		return "", err
	}

	wire := wireRequest{
		Model: o.cfg.Model,
		Input: req.Prompt,
		Tools: []wireTool{{Type: "web_search"}},
	}
	wire.Reasoning.Effort = o.cfg.ReasoningEffort
	if req.Domain != "" {
		wire.Tools[0].Filters = &wireFilters{AllowedDomains: []string{req.Domain}}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	log.Printf("[generator] model=%s domain=%q attempt=%d reasoning=%s", o.cfg.Model, req.Domain, req.Attempt, o.cfg.ReasoningEffort)
	start := time.Now()

	resp, err := o.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decoding response: %w", err)
	}

	text := out.text()
	log.Printf("[generator] domain=%q done in %s chars=%d", req.Domain, time.Since(start).Round(time.Millisecond), len(text))
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
