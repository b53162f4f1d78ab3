package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// Client sends one prompt to the text-generation service and returns the
// full response text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ---------------------------------------------------------------------------
// OpenAI-compatible streaming client
// ---------------------------------------------------------------------------

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	// Endpoint is the API base URL, e.g. "https://api.openai.com/v1/".
	Endpoint string
	Model    string
	Token    string
	// Proxy overrides HTTP_PROXY/HTTPS_PROXY.
	Proxy string
	// MaxRetries is the SDK-level retry count for transient HTTP errors.
	// Zero disables SDK retries; the orchestrator retries whole batches.
	MaxRetries int

	// OnReasoning and OnContent receive streamed deltas as they arrive.
	OnReasoning func(delta string)
	OnContent   func(delta string)
}

// OpenAIClient streams one chat completion per prompt.
type OpenAIClient struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIClient returns a client for cfg.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint),
		option.WithHTTPClient(makeHTTPClient(cfg.Proxy)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Token != "" {
		opts = append(opts, option.WithAPIKey(cfg.Token))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Complete sends prompt as a single user message and accumulates the
// streamed content. Reasoning deltas are passed to OnReasoning but are not
// part of the result.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	defer stream.Close()

	var content strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if c.cfg.OnReasoning != nil {
			// Not part of the chat completions schema; some servers send it.
			if r := gjson.Get(chunk.RawJSON(), "choices.0.delta.reasoning_content"); r.Exists() && r.Type == gjson.String {
				c.cfg.OnReasoning(r.String())
			}
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if c.cfg.OnContent != nil {
			c.cfg.OnContent(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return content.String(), fmt.Errorf("chat completion: %w", err)
	}
	return content.String(), nil
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

// makeHTTPClient builds the transport for the SDK. There is no client-level
// timeout; each request is bounded by its context deadline.
func makeHTTPClient(proxyURL string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// Support both --proxy flag and HTTP_PROXY/HTTPS_PROXY env vars
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{Transport: transport}
}
