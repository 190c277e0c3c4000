package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hamed0406/uptimewatch/internal/domain"
)

const systemPrompt = "You are an expert system administrator and data analyst specializing in website uptime monitoring and predictive analytics. Answer with a single JSON object only."

const promptTemplate = `Analyze the following website monitoring data and provide a prediction report.

WEBSITE DATA:
%s

Respond in this JSON format:
{
  "risk_level": "low|medium|high|critical",
  "prediction_confidence": 0-100,
  "predicted_outage_window": {"likelihood": 0-100, "timeframe": "next_hour|next_6_hours|next_24_hours|next_week", "specific_time": "estimated time or null"},
  "key_risk_factors": [{"factor": "name", "severity": "low|medium|high", "description": "explanation"}],
  "performance_trends": {"response_time": "improving|stable|degrading", "uptime": "improving|stable|degrading", "reliability": "improving|stable|degrading"},
  "recommendations": [{"priority": "high|medium|low", "action": "specific action", "reasoning": "why"}],
  "health_score": 0-100,
  "summary": "brief summary of overall health and prediction"
}

Focus on response time patterns, uptime trends across periods, incident frequency and duration, time-of-day failure patterns and degradation indicators. Be specific and actionable.`

var errNoJSON = errors.New("no JSON object in model response")

// OpenAI asks an OpenAI-compatible chat endpoint for a prediction.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI returns nil when apiKey is empty. baseURL may point at any
// compatible gateway.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, timeout: 60 * time.Second}
}

func (o *OpenAI) Analyze(ctx context.Context, h History) (json.RawMessage, error) {
	data, err := json.MarshalIndent(Summarize(h), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode history: %w", domain.ErrAnalysisProvider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, data)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", domain.ErrAnalysisProvider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrAnalysisProvider)
	}
	out, err := ExtractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisProvider, err)
	}
	return out, nil
}

// ExtractJSON returns the outermost {...} span of text when it is valid
// JSON. Models often wrap the object in prose or code fences.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, errNoJSON
	}
	raw := text[start : end+1]
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("invalid JSON object in model response")
	}
	return json.RawMessage(raw), nil
}
