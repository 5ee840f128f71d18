package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/biodoia/gocareerflow/internal/ratelimit"
	"github.com/biodoia/gocareerflow/pkg/cache"
	"github.com/biodoia/gocareerflow/pkg/resilience"
)

type scriptedProvider struct {
	name     string
	priority int
	text     string
	failures int // number of calls that fail before succeeding
	alwaysKO bool

	mu    sync.Mutex
	calls int
}

func (s *scriptedProvider) Send(ctx context.Context, prompt string, settings providers.Settings) (*providers.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.alwaysKO || s.calls <= s.failures {
		return nil, errors.New(s.name + " unavailable")
	}
	return &providers.Result{Text: s.text, Confidence: 0.9}, nil
}

func (s *scriptedProvider) Name() string    { return s.name }
func (s *scriptedProvider) Available() bool { return true }
func (s *scriptedProvider) Priority() int   { return s.priority }

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}
}

func newTestGateway(cfg Config, provs []*scriptedProvider, opts ...Option) *Gateway {
	registry := providers.NewRegistry()
	for _, p := range provs {
		_ = registry.Register(p)
	}
	return New(cfg, registry, opts...)
}

func TestFailoverReturnsFirstSuccess(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, text: "from gemini"}
	secondary := &scriptedProvider{name: "mistral", priority: 2, text: "from mistral"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{primary, secondary})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if resp.Text != "from gemini" {
		t.Errorf("expected primary response, got %q", resp.Text)
	}
	if resp.Provider != "gemini" {
		t.Errorf("expected provider gemini, got %s", resp.Provider)
	}
	if secondary.callCount() != 0 {
		t.Errorf("secondary provider should not be called, got %d calls", secondary.callCount())
	}
	if resp.Fallback {
		t.Error("successful response must not be marked fallback")
	}
}

func TestGenerateUsesConfiguredMode(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, text: "generated"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{primary})

	resp := g.Generate(context.Background(), "hello")

	if resp == nil {
		t.Fatal("Generate must never return nil")
	}
	if resp.Text != "generated" {
		t.Errorf("expected provider text, got %q", resp.Text)
	}
	if resp.Mode != ModeFailover {
		t.Errorf("expected configured mode, got %s", resp.Mode)
	}
}

func TestFailoverFallsThroughToNextProvider(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}
	secondary := &scriptedProvider{name: "mistral", priority: 2, text: "from mistral"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{primary, secondary})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if resp.Text != "from mistral" {
		t.Errorf("expected secondary response, got %q", resp.Text)
	}
	if resp.Provider != "mistral" {
		t.Errorf("expected provider mistral, got %s", resp.Provider)
	}
}

func TestPostProcessHookAppliedToResponses(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, text: "raw text"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{primary},
		WithPostProcess(func(resp *Response) {
			resp.Text = "processed: " + resp.Text
		}))

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if resp.Text != "processed: raw text" {
		t.Errorf("expected post-processed text, got %q", resp.Text)
	}
}

func TestPostProcessHookSkipsFallback(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}

	called := false
	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{primary},
		WithPostProcess(func(resp *Response) { called = true }))

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if !resp.Fallback {
		t.Fatal("expected fallback response")
	}
	if called {
		t.Error("post-process hook must not run on fallback responses")
	}
}

func TestFailoverAllDownReturnsFallback(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}
	secondary := &scriptedProvider{name: "mistral", priority: 2, alwaysKO: true}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 2, Retry: fastRetry()},
		[]*scriptedProvider{primary, secondary})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if resp == nil {
		t.Fatal("Dispatch must never return nil")
	}
	if !resp.Fallback {
		t.Error("expected fallback response")
	}
	if resp.Text != DefaultFallbackText {
		t.Errorf("expected fallback text, got %q", resp.Text)
	}
}

func TestRetryBoundPerProvider(t *testing.T) {
	failing := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 3, Retry: fastRetry()},
		[]*scriptedProvider{failing})

	_ = g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if failing.callCount() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", failing.callCount())
	}
}

func TestRetryRecoversWithinBound(t *testing.T) {
	flaky := &scriptedProvider{name: "gemini", priority: 1, text: "recovered", failures: 2}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 3, Retry: fastRetry()},
		[]*scriptedProvider{flaky})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if resp.Text != "recovered" {
		t.Errorf("expected recovery on third attempt, got %q", resp.Text)
	}
	if flaky.callCount() != 3 {
		t.Errorf("expected 3 calls, got %d", flaky.callCount())
	}
}

func TestAggregateJoinsResponses(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, text: "alpha"}
	b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}

	g := newTestGateway(Config{Mode: ModeAggregate, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a, b})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	want := "[GEMINI]: alpha\n[MISTRAL]: beta"
	if resp.Text != want {
		t.Errorf("expected %q, got %q", want, resp.Text)
	}
}

func TestCompareLabelsResponses(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, text: "alpha"}
	b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}

	g := newTestGateway(Config{Mode: ModeCompare, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a, b})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	want := "[GEMINI]: alpha\n---\n[MISTRAL]: beta"
	if resp.Text != want {
		t.Errorf("expected %q, got %q", want, resp.Text)
	}
}

func TestCompareSkipsFailedProviders(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}
	b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}
	c := &scriptedProvider{name: "openai", priority: 3, text: "gamma"}

	g := newTestGateway(Config{Mode: ModeCompare, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a, b, c})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	want := "[MISTRAL]: beta\n---\n[OPENAI]: gamma"
	if resp.Text != want {
		t.Errorf("expected %q, got %q", want, resp.Text)
	}
}

func TestCombinationModesSingleSurvivorIsRaw(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}

	for _, mode := range []CombinationMode{ModeAggregate, ModeCompare} {
		b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}

		g := newTestGateway(Config{Mode: mode, MaxRetries: 1, Retry: fastRetry()},
			[]*scriptedProvider{a, b})

		resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

		if resp.Text != "beta" {
			t.Errorf("mode %s: single survivor must be unlabelled, got %q", mode, resp.Text)
		}
		if resp.Provider != "mistral" {
			t.Errorf("mode %s: expected provider mistral, got %s", mode, resp.Provider)
		}
	}
}

func TestCombinationModesWithNoResponses(t *testing.T) {
	down := &scriptedProvider{name: "gemini", priority: 1, alwaysKO: true}

	for _, mode := range []CombinationMode{ModeAggregate, ModeCompare} {
		g := newTestGateway(Config{Mode: mode, MaxRetries: 1, Retry: fastRetry()},
			[]*scriptedProvider{down})

		resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})
		if resp.Text != NoResponseText {
			t.Errorf("mode %s: expected sentinel text, got %q", mode, resp.Text)
		}
	}
}

func TestStructuredReturnsPerProviderMap(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, text: "alpha"}
	b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}

	g := newTestGateway(Config{Mode: ModeStructured, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a, b})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello"})

	if len(resp.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resp.Responses))
	}
	if resp.Responses["gemini"] != "alpha" || resp.Responses["mistral"] != "beta" {
		t.Errorf("unexpected responses map: %v", resp.Responses)
	}
}

func TestCacheHitSkipsProviderCall(t *testing.T) {
	p := &scriptedProvider{name: "gemini", priority: 1, text: "cached answer"}

	g := newTestGateway(
		Config{Mode: ModeFailover, MaxRetries: 1, CacheEnabled: true, Retry: fastRetry()},
		[]*scriptedProvider{p},
		WithCache(cache.NewMemoryCache(100, 0)),
	)

	ctx := context.Background()

	first := g.Dispatch(ctx, &Request{Prompt: "same prompt"})
	if first.CacheHit {
		t.Error("first dispatch must not be a cache hit")
	}

	second := g.Dispatch(ctx, &Request{Prompt: "same prompt"})
	if !second.CacheHit {
		t.Error("second dispatch should be a cache hit")
	}
	if second.Text != first.Text {
		t.Errorf("cached response differs: %q vs %q", second.Text, first.Text)
	}
	if p.callCount() != 1 {
		t.Errorf("provider should be called once, got %d", p.callCount())
	}
}

func TestDifferentPromptsDoNotShareCache(t *testing.T) {
	p := &scriptedProvider{name: "gemini", priority: 1, text: "answer"}

	g := newTestGateway(
		Config{Mode: ModeFailover, MaxRetries: 1, CacheEnabled: true, Retry: fastRetry()},
		[]*scriptedProvider{p},
		WithCache(cache.NewMemoryCache(100, 0)),
	)

	ctx := context.Background()
	_ = g.Dispatch(ctx, &Request{Prompt: "prompt one"})
	resp := g.Dispatch(ctx, &Request{Prompt: "prompt two"})

	if resp.CacheHit {
		t.Error("different prompt must not hit the cache")
	}
	if p.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.callCount())
	}
}

func TestRateLimitRejectsWithoutQueueing(t *testing.T) {
	p := &scriptedProvider{name: "gemini", priority: 1, text: "ok"}

	limiter := ratelimit.NewSlidingWindowLogLimiter(ratelimit.Config{
		Limit:  1,
		Window: time.Minute,
	})

	g := newTestGateway(
		Config{Mode: ModeFailover, MaxRetries: 3, Retry: fastRetry()},
		[]*scriptedProvider{p},
		WithLimiter(limiter),
	)

	ctx := context.Background()

	first := g.Dispatch(ctx, &Request{Prompt: "a"})
	if first.Fallback {
		t.Fatal("first request should be admitted")
	}

	start := time.Now()
	second := g.Dispatch(ctx, &Request{Prompt: "b"})
	elapsed := time.Since(start)

	if !second.Fallback {
		t.Error("rate limited request with no alternative must degrade to fallback")
	}
	if p.callCount() != 1 {
		t.Errorf("rejected request must never reach the provider, got %d calls", p.callCount())
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("rejection must be immediate, took %v", elapsed)
	}
}

func TestPerRequestModeOverride(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, text: "alpha"}
	b := &scriptedProvider{name: "mistral", priority: 2, text: "beta"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a, b})

	resp := g.Dispatch(context.Background(), &Request{Prompt: "hello", Mode: ModeAggregate})

	if resp.Mode != ModeAggregate {
		t.Errorf("expected aggregate mode, got %s", resp.Mode)
	}
	want := "[GEMINI]: alpha\n[MISTRAL]: beta"
	if resp.Text != want {
		t.Errorf("expected %q, got %q", want, resp.Text)
	}
}

func TestHealthReportsProviders(t *testing.T) {
	a := &scriptedProvider{name: "gemini", priority: 1, text: "alpha"}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{a})

	health := g.Health()
	if health.Mode != ModeFailover {
		t.Errorf("expected failover mode, got %s", health.Mode)
	}
	if len(health.Providers) != 1 || health.Providers[0].Name != "gemini" {
		t.Errorf("unexpected providers: %v", health.Providers)
	}
}

func TestHealthTracksOutcomeTallies(t *testing.T) {
	flaky := &scriptedProvider{name: "gemini", priority: 1, text: "alpha", failures: 1}

	g := newTestGateway(Config{Mode: ModeFailover, MaxRetries: 1, Retry: fastRetry()},
		[]*scriptedProvider{flaky})

	// First dispatch exhausts its single attempt, the second succeeds
	// once the scripted failure has run out.
	_ = g.Dispatch(context.Background(), &Request{Prompt: "first"})
	_ = g.Dispatch(context.Background(), &Request{Prompt: "second"})

	d := g.Health().Providers[0]
	if d.Uses != 2 {
		t.Errorf("expected 2 uses, got %d", d.Uses)
	}
	if d.Successes != 1 || d.Failures != 1 {
		t.Errorf("expected one success and one failure, got successes=%d failures=%d", d.Successes, d.Failures)
	}
}
