package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gpu-renter/observability"
)

const (
	DefaultBaseURL = "https://api.fireworks.ai/inference/v1"
	DefaultModel   = "accounts/fireworks/models/llama-v3-8b-instruct"

	chatEndpoint   = "/chat/completions"
	systemMessage  = "You are a careful planner."
	temperature    = 0.2
	defaultTimeout = 30 * time.Second
)

// LLMConfig configures the model-backed planner
type LLMConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *observability.Logger
}

// LLM asks an OpenAI-compatible chat completion endpoint for a decision and
// falls back to the deterministic policy on any failure
type LLM struct {
	apiKey      string
	model       string
	endpointURL string
	httpClient  *http.Client
	log         *observability.Logger
}

// NewLLM creates the model-backed planner
func NewLLM(cfg LLMConfig) (*LLM, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new llm planner: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger()
	}

	return &LLM{
		apiKey:      apiKey,
		model:       model,
		endpointURL: strings.TrimRight(baseURL, "/") + chatEndpoint,
		httpClient:  httpClient,
		log:         log,
	}, nil
}

func (p *LLM) Decide(ctx context.Context, in Input) Result {
	prompt := BuildPrompt(in)
	result := Result{Mode: ModeLLM, Prompt: prompt}

	content, err := p.complete(ctx, prompt)
	if err != nil {
		p.log.Warn("planner request failed", "run_id", in.Run.ID, "error", err)
		return fallback(result, in, "Planner request failed")
	}
	result.RawResponse = content
	if strings.TrimSpace(content) == "" {
		return fallback(result, in, "Planner returned empty content")
	}

	decision, err := ParseDecision(content)
	if err != nil {
		p.log.Warn("planner reply rejected", "run_id", in.Run.ID, "error", err)
		if errors.Is(err, errInvalidDecision) {
			return fallback(result, in, "Planner returned invalid response")
		}
		return fallback(result, in, "Planner JSON parse failed")
	}

	result.Decision = adjustForRecovery(in, decision)
	return result
}

func fallback(result Result, in Input, reason string) Result {
	result.Decision = Decide(in, reason)
	result.UsedFallback = true
	return result
}

// adjustForRecovery steers a start_job away from a vendor that already
// failed on this run when another vendor is available
func adjustForRecovery(in Input, d Decision) Decision {
	if d.Action != ActionStartJob {
		return d
	}
	if !failedVendors(in.Jobs)[d.VendorID] {
		return d
	}
	preferred, _ := preferredVendor(in.Vendors, in.Jobs)
	if preferred == nil || preferred.ID == d.VendorID {
		return d
	}
	d.VendorID = preferred.ID
	d.Reason = fmt.Sprintf("%s (recovery: prefer %s)", d.Reason, preferred.ID)
	return d
}

var errInvalidDecision = errors.New("invalid decision")

type rawDecision struct {
	Action   string   `json:"action"`
	VendorID string   `json:"vendorId"`
	MaxHours *float64 `json:"maxHours"`
	Reason   string   `json:"reason"`
}

// ParseDecision decodes a model reply into a validated Decision. The reply
// must be exactly one JSON object, optionally wrapped in a code fence.
func ParseDecision(content string) (Decision, error) {
	body := stripCodeFence(strings.TrimSpace(content))

	dec := json.NewDecoder(strings.NewReader(body))
	var raw rawDecision
	if err := dec.Decode(&raw); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Decision{}, fmt.Errorf("decode decision: trailing content after object")
	}

	switch Action(raw.Action) {
	case ActionWait, ActionAbort:
		return Decision{Action: Action(raw.Action), Reason: raw.Reason}, nil
	case ActionStartJob:
		if strings.TrimSpace(raw.VendorID) == "" {
			return Decision{}, fmt.Errorf("%w: start_job without vendorId", errInvalidDecision)
		}
		if raw.MaxHours == nil || *raw.MaxHours <= 0 {
			return Decision{}, fmt.Errorf("%w: start_job requires positive maxHours", errInvalidDecision)
		}
		return Decision{Action: ActionStartJob, VendorID: strings.TrimSpace(raw.VendorID), MaxHours: *raw.MaxHours, Reason: raw.Reason}, nil
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", errInvalidDecision, raw.Action)
	}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete returns the first choice's content. An empty choice list yields "".
func (p *LLM) complete(ctx context.Context, prompt string) (string, error) {
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("planner request encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("planner request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("planner request execute: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("planner response read: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("planner response status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("planner response decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
