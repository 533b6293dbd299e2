// Package tutor answers student questions about a study sheet through a
// hosted completion service.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nidhogg/dinobot/internal/metrics"
	"github.com/nidhogg/dinobot/internal/provider"
)

// ErrUnavailable is returned while the completion service is considered down.
var ErrUnavailable = errors.New("tutor unavailable")

const breakerName = "completion"

// Completer routes completion requests to a provider.
type Completer interface {
	Route(ctx context.Context, providerID string, req *provider.ChatRequest) (*provider.ChatResponse, error)
	RouteStream(ctx context.Context, providerID string, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error)
}

// Config controls how the tutor calls the completion service.
type Config struct {
	Provider        string
	Model           string
	MaxTokens       int
	Temperature     float64
	Stream          bool
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// RequestsPerMinute caps outbound completions. Zero means unlimited.
	RequestsPerMinute int
}

// Question is one student message about a study sheet.
type Question struct {
	Message string
	Subject string
	Topic   string
}

// Tutor builds the DinoBot prompt and returns the full model answer.
type Tutor struct {
	completer Completer
	cfg       Config
	breaker   *gobreaker.CircuitBreaker[string]
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a Tutor. Zero config fields get their defaults.
func New(c Completer, cfg Config, logger *zap.Logger) *Tutor {
	if cfg.Model == "" {
		cfg.Model = "gpt-5-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	t := &Tutor{completer: c, cfg: cfg, logger: logger}
	if n := cfg.RequestsPerMinute; n > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	t.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A caller hanging up says nothing about the upstream service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return t
}

// Ask sends q with the DinoBot system prompt and returns the complete answer.
func (t *Tutor) Ask(ctx context.Context, q Question) (string, error) {
	// Waiting for a slot happens outside the breaker so throttling never trips it.
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for completion slot: %w", err)
		}
	}

	start := time.Now()
	answer, err := t.breaker.Execute(func() (string, error) {
		return t.complete(ctx, q)
	})
	metrics.RecordTutorRequest(time.Since(start), err)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return "", ErrUnavailable
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		t.logger.Error("tutor completion failed", zap.Error(err))
		return "", err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return answer, nil
}

// State reports the breaker state.
func (t *Tutor) State() gobreaker.State {
	return t.breaker.State()
}

func (t *Tutor) request(q Question) *provider.ChatRequest {
	return &provider.ChatRequest{
		Model: t.cfg.Model,
		Messages: []provider.Message{
			{Role: "system", Content: SystemPrompt(q.Subject, q.Topic)},
			{Role: "user", Content: q.Message},
		},
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: t.cfg.Temperature,
	}
}

func (t *Tutor) complete(ctx context.Context, q Question) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req := t.request(q)
	if !t.cfg.Stream {
		resp, err := t.completer.Route(ctx, t.cfg.Provider, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	ch, err := t.completer.RouteStream(ctx, t.cfg.Provider, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		sb.WriteString(chunk.Content)
		if chunk.Done {
			return sb.String(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("stream closed before completion")
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
