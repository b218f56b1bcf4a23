package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"reviewbot/internal/domain"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *LLMUsage) Add(other LLMUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Client is a structured-output oracle. Every call renders the prompt
// templates, waits on the shared limiter and parses the reply as a JSON object.
type Client struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	maxTokens  int
	limiter    *rate.Limiter
	httpClient *http.Client

	mu    sync.Mutex
	usage LLMUsage
}

// NewLimiter paces oracle calls. A non-positive rate disables pacing.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// NewClient builds an oracle for model using the provider credentials in cfg.
// An empty model selects the provider default.
func NewClient(cfg Config, model string, limiter *rate.Limiter) *Client {
	c := &Client{
		provider:   cfg.LLMProvider,
		model:      model,
		baseURL:    strings.TrimRight(cfg.LLMBaseURL, "/"),
		maxTokens:  cfg.LLMMaxTokens,
		limiter:    limiter,
		httpClient: externalHTTPClient,
	}
	switch cfg.LLMProvider {
	case "openai":
		c.apiKey = cfg.OpenAIAPIKey
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
		if c.baseURL == "" {
			c.baseURL = defaultOpenAIBaseURL
		}
	default:
		c.provider = "anthropic"
		c.apiKey = cfg.AnthropicAPIKey
		if c.model == "" {
			c.model = defaultAnthropicModel
		}
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 1024
	}
	return c
}

func (c *Client) Model() string {
	return c.model
}

// Usage returns the token usage accumulated over every call so far.
func (c *Client) Usage() LLMUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Complete renders both prompts with vars, calls the provider and returns the
// reply's JSON fields. Fields are empty whenever err is non-nil, and also
// when the reply carries no JSON object.
func (c *Client) Complete(ctx context.Context, systemPrompt, userTemplate string, vars map[string]string) (domain.Fields, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.EmptyFields(), fmt.Errorf("llm rate limit wait: %w", err)
		}
	}

	system := RenderPrompt(systemPrompt, vars)
	user := RenderPrompt(userTemplate, vars)

	var (
		text  string
		usage LLMUsage
		err   error
	)
	switch c.provider {
	case "openai":
		text, usage, err = c.callOpenAI(ctx, system, user)
	default:
		text, usage, err = c.callAnthropic(ctx, system, user)
	}
	c.mu.Lock()
	c.usage.Add(usage)
	c.mu.Unlock()
	if err != nil {
		return domain.EmptyFields(), err
	}

	fields := domain.ParseFields(text)
	if fields.IsEmpty() {
		log.Printf("llm %s response has no JSON object size=%d, returning empty fields", c.provider, len(text))
	}
	return fields, nil
}

// RenderPrompt replaces each {name} placeholder whose name is in vars.
// Substitution is a single pass, so values containing braces are left alone.
func RenderPrompt(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// --- Anthropic ---

func (c *Client) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(c.httpClient),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error model=%s: %v", c.model, err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response model=%s size=%d tokens_in=%d tokens_out=%d cache_read=%d", c.model, len(block.Text), usage.InputTokens, usage.OutputTokens, usage.CacheReadInputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI-compatible chat completions ---

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) callOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: c.maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("llm openai error model=%s: %v", c.model, err)
		return "", LLMUsage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("reading response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", LLMUsage{}, fmt.Errorf("parsing OpenAI response (status %d): %w", resp.StatusCode, err)
	}

	if openAIResp.Error != nil {
		log.Printf("llm openai api error: %s", openAIResp.Error.Message)
		return "", LLMUsage{}, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", LLMUsage{}, fmt.Errorf("OpenAI API status %d", resp.StatusCode)
	}

	if len(openAIResp.Choices) == 0 {
		return "", LLMUsage{}, fmt.Errorf("no choices in OpenAI response")
	}
	usage := LLMUsage{}
	if openAIResp.Usage != nil {
		usage.InputTokens = openAIResp.Usage.PromptTokens
		usage.OutputTokens = openAIResp.Usage.CompletionTokens
	}

	log.Printf("llm openai response model=%s size=%d tokens_in=%d tokens_out=%d", c.model, len(openAIResp.Choices[0].Message.Content), usage.InputTokens, usage.OutputTokens)
	return openAIResp.Choices[0].Message.Content, usage, nil
}
