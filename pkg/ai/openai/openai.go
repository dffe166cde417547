// Package openai implements ai.Client against any OpenAI-compatible chat
// completion endpoint.
package openai

import (
	"math"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/anmolg1997/kg-rag/pkg/ai"
)

// Client talks to an OpenAI-compatible chat completion API. Create one with
// NewClient.
type Client struct {
	analysisModel string
	answerModel   string

	baseURL string
	apiKey  string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewClientParams configures a new Client.
//
// AnalysisModel is used for structured query decomposition; AnswerModel for
// free-text answer generation. BaseURL may be empty for the official API.
type NewClientParams struct {
	AnalysisModel string
	AnswerModel   string

	BaseURL string
	APIKey  string
}

// NewClient creates a Client configured with the provided parameters.
func NewClient(params NewClientParams) *Client {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	chatClient := openai.NewClient(options...)

	return &Client{
		analysisModel: params.AnalysisModel,
		answerModel:   params.AnswerModel,
		baseURL:       params.BaseURL,
		apiKey:        params.APIKey,
		ChatClient:    &chatClient,
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *Client) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since
// the last reset.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *Client) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}
