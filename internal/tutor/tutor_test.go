package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/nidhogg/dinobot/internal/provider"
)

// fakeCompleter records the last request and replays canned chunks.
type fakeCompleter struct {
	chunks   []*provider.StreamChunk
	reply    string
	err      error
	last     *provider.ChatRequest
	lastID   string
	streamed int
	calls    int
}

func (f *fakeCompleter) Route(_ context.Context, id string, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.calls++
	f.last, f.lastID = req, id
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Content: f.reply}, nil
}

func (f *fakeCompleter) RouteStream(_ context.Context, id string, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	f.calls++
	f.streamed++
	f.last, f.lastID = req, id
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan *provider.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("Chimie", "Acides et bases")
	for _, want := range []string{
		"Tu es DinoBot",
		"expert en Chimie.",
		`le cours sur "Acides et bases"`,
		"- Couple acide-base : AH/A⁻\n",
		"pH = −log₁₀[H₃O⁺]",
		"ramène-le gentiment au cours.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestAskStreamAccumulates(t *testing.T) {
	f := &fakeCompleter{chunks: []*provider.StreamChunk{
		{Content: "Un acide "},
		{Content: "libère des H⁺."},
		{FinishReason: "stop"},
		{Done: true},
	}}
	tu := New(f, Config{Provider: "openai", Stream: true, Temperature: 0.7}, zap.NewNop())

	got, err := tu.Ask(context.Background(), Question{Message: "C'est quoi un acide ?", Subject: "Chimie", Topic: "Acides"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Un acide libère des H⁺." {
		t.Errorf("got %q", got)
	}
	if f.streamed != 1 || f.lastID != "openai" {
		t.Errorf("expected one streamed call to openai, got %d to %q", f.streamed, f.lastID)
	}
	req := f.last
	if req.Model != "gpt-5-mini" || req.MaxTokens != 500 || req.Temperature != 0.7 {
		t.Errorf("unexpected request settings %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "C'est quoi un acide ?" {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
}

func TestAskWithoutStream(t *testing.T) {
	f := &fakeCompleter{reply: "pH = 7"}
	tu := New(f, Config{Model: "claude-x", MaxTokens: 100}, zap.NewNop())
	got, err := tu.Ask(context.Background(), Question{Message: "pH de l'eau ?"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "pH = 7" || f.streamed != 0 {
		t.Errorf("got %q, streamed %d", got, f.streamed)
	}
	if f.last.Model != "claude-x" || f.last.MaxTokens != 100 {
		t.Errorf("config not applied: %+v", f.last)
	}
}

func TestAskStreamError(t *testing.T) {
	f := &fakeCompleter{chunks: []*provider.StreamChunk{
		{Content: "partial"},
		{Err: errors.New("connection reset")},
	}}
	tu := New(f, Config{Stream: true}, zap.NewNop())
	if _, err := tu.Ask(context.Background(), Question{Message: "?"}); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("expected stream error, got %v", err)
	}
}

func TestAskStreamClosedEarly(t *testing.T) {
	f := &fakeCompleter{chunks: []*provider.StreamChunk{{Content: "half"}}}
	tu := New(f, Config{Stream: true}, zap.NewNop())
	if _, err := tu.Ask(context.Background(), Question{Message: "?"}); err == nil {
		t.Error("expected error when stream ends without completion")
	}
}

func TestBreakerOpens(t *testing.T) {
	f := &fakeCompleter{err: errors.New("upstream 500")}
	tu := New(f, Config{BreakerFailures: 2, BreakerCooldown: time.Hour}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := tu.Ask(ctx, Question{Message: "?"})
		if err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if tu.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", tu.State())
	}
	if _, err := tu.Ask(ctx, Question{Message: "?"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if f.calls != 2 {
		t.Errorf("open breaker must not reach the provider, got %d calls", f.calls)
	}
}

func TestCanceledCallsDoNotTrip(t *testing.T) {
	f := &fakeCompleter{err: context.Canceled}
	tu := New(f, Config{BreakerFailures: 1, BreakerCooldown: time.Hour}, zap.NewNop())
	for i := 0; i < 3; i++ {
		tu.Ask(context.Background(), Question{Message: "?"})
	}
	if tu.State() != gobreaker.StateClosed {
		t.Errorf("expected closed breaker, got %s", tu.State())
	}
}

func TestRateLimitWaitHonorsContext(t *testing.T) {
	f := &fakeCompleter{reply: "ok"}
	tu := New(f, Config{RequestsPerMinute: 1}, zap.NewNop())

	if _, err := tu.Ask(context.Background(), Question{Message: "?"}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := tu.Ask(ctx, Question{Message: "?"}); err == nil {
		t.Fatal("expected the second call to be throttled")
	}
	if f.calls != 1 {
		t.Errorf("throttled call must not reach the provider, got %d calls", f.calls)
	}
	if tu.State() != gobreaker.StateClosed {
		t.Errorf("throttling must not trip the breaker, got %s", tu.State())
	}
}
