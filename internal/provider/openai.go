package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs.
type OpenAIProvider struct {
	config ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (p *OpenAIProvider) ID() string   { return p.config.ID }
func (p *OpenAIProvider) Name() string { return p.config.Name }

// body builds the wire request. Extra["reasoning"] = "true" marks a
// reasoning model: it only accepts the default temperature and takes
// max_completion_tokens instead of max_tokens. Extra["max_completion_tokens"]
// = "true" switches the token field alone.
func (p *OpenAIProvider) body(req *ChatRequest, stream bool) map[string]any {
	reasoning := p.config.Extra["reasoning"] == "true"
	b := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
	}
	if stream {
		b["stream"] = true
	}
	if req.Temperature > 0 && !reasoning {
		b["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		if reasoning || p.config.Extra["max_completion_tokens"] == "true" {
			b["max_completion_tokens"] = req.MaxTokens
		} else {
			b["max_tokens"] = req.MaxTokens
		}
	}
	return b
}

func (p *OpenAIProvider) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Chat sends a non-streaming chat request.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, p.body(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oaiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	choice := oaiResp.Choices[0]
	return &ChatResponse{
		ID:           oaiResp.ID,
		Model:        oaiResp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        oaiResp.Usage,
	}, nil
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
}

type openAIChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream sends a streaming chat request.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *StreamChunk, error) {
	resp, err := p.post(ctx, p.body(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan *StreamChunk, 64)
	go p.readSSEStream(ctx, resp.Body, ch)
	return ch, nil
}

func (p *OpenAIProvider) readSSEStream(ctx context.Context, body io.ReadCloser, ch chan<- *StreamChunk) {
	defer close(ch)
	defer body.Close()

	finished := false
	err := readEvents(ctx, body, func(data string) bool {
		if data == "[DONE]" {
			return false
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.logger.Debug("skipping stream event", zap.Error(err))
			return true
		}
		if len(chunk.Choices) == 0 {
			return true
		}
		c := chunk.Choices[0]
		if c.FinishReason != "" {
			finished = true
		}
		return send(ctx, ch, &StreamChunk{Content: c.Delta.Content, FinishReason: c.FinishReason})
	})
	if errors.Is(err, io.ErrUnexpectedEOF) && finished {
		err = nil
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		send(ctx, ch, &StreamChunk{Err: fmt.Errorf("read stream: %w", err)})
		return
	}
	send(ctx, ch, &StreamChunk{Done: true})
}
