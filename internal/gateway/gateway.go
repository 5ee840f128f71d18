package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/biodoia/gocareerflow/internal/ratelimit"
	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/pkg/cache"
	"github.com/biodoia/gocareerflow/pkg/resilience"
	"github.com/rs/zerolog/log"
)

// CombinationMode determina come il gateway combina le risposte dei provider
type CombinationMode string

const (
	// ModeFailover prova i provider in ordine di priorità e si ferma al primo successo
	ModeFailover CombinationMode = "failover"

	// ModeAggregate concatena le risposte di tutti i provider disponibili
	ModeAggregate CombinationMode = "aggregate"

	// ModeCompare affianca le risposte etichettate per provider
	ModeCompare CombinationMode = "compare"

	// ModeStructured restituisce le risposte per provider in forma strutturata
	ModeStructured CombinationMode = "structured"
)

const (
	// NoResponseText è il testo sentinella quando nessun provider ha risposto
	// in modalità di combinazione
	NoResponseText = "No AI provider response available."

	// DefaultFallbackText è la risposta degradata quando il failover esaurisce i provider
	DefaultFallbackText = "Fallback response - API providers unavailable"

	compareSeparator = "\n---\n"
)

// Config configurazione del gateway
type Config struct {
	// Mode modalità di default, sovrascrivibile per richiesta
	Mode CombinationMode

	// MaxRetries numero massimo di tentativi per provider (>= 1)
	MaxRetries int

	// CacheEnabled abilita il response cache
	CacheEnabled bool

	// FallbackText testo della risposta degradata
	FallbackText string

	// Retry politica di backoff condivisa da tutti i provider
	Retry resilience.RetryConfig
}

// Request rappresenta una richiesta di generazione verso il gateway
type Request struct {
	Prompt   string             `json:"prompt"`
	Agent    string             `json:"agent,omitempty"`
	Mode     CombinationMode    `json:"mode,omitempty"`
	Settings providers.Settings `json:"settings,omitempty"`
}

// Response rappresenta la risposta del gateway.
// Dispatch restituisce sempre una risposta non-nil: il fallimento
// totale produce il testo di fallback, mai un errore.
type Response struct {
	Text       string          `json:"text"`
	Provider   string          `json:"provider,omitempty"`
	Confidence float64         `json:"confidence"`
	Mode       CombinationMode `json:"mode"`
	CacheHit   bool            `json:"cache_hit"`
	Fallback   bool            `json:"fallback"`

	// Responses contiene le risposte per provider (modalità structured)
	Responses map[string]string `json:"responses,omitempty"`

	LatencyMs int64 `json:"latency_ms"`
}

// Gateway instrada le richieste di generazione verso i provider registrati
type Gateway struct {
	config    Config
	registry  *providers.Registry
	limiter   ratelimit.Limiter
	cache     cache.Cache
	retry     *resilience.PerProviderRetry
	collector *stats.Collector
	exporter  *stats.PrometheusExporter

	postProcess PostProcessFunc
}

// Option configura il gateway alla creazione
type Option func(*Gateway)

// WithCache imposta il response cache
func WithCache(c cache.Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithLimiter imposta il rate limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithCollector imposta il collector delle statistiche
func WithCollector(c *stats.Collector) Option {
	return func(g *Gateway) { g.collector = c }
}

// WithExporter imposta l'exporter Prometheus
func WithExporter(e *stats.PrometheusExporter) Option {
	return func(g *Gateway) { g.exporter = e }
}

// PostProcessFunc trasforma la risposta combinata prima della restituzione
type PostProcessFunc func(*Response)

// WithPostProcess imposta un hook applicato a ogni risposta non di fallback
func WithPostProcess(fn PostProcessFunc) Option {
	return func(g *Gateway) { g.postProcess = fn }
}

// New crea un nuovo gateway
func New(config Config, registry *providers.Registry, opts ...Option) *Gateway {
	if config.Mode == "" {
		config.Mode = ModeFailover
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.FallbackText == "" {
		config.FallbackText = DefaultFallbackText
	}

	retryCfg := config.Retry
	// Il primo tentativo non conta come retry
	retryCfg.MaxRetries = config.MaxRetries - 1
	retryCfg.RetryableChecker = func(err error) bool {
		return !ratelimit.IsRateLimitError(err)
	}

	g := &Gateway{
		config:   config,
		registry: registry,
		retry:    resilience.NewPerProviderRetry(retryCfg),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate invia un prompt con la modalità e le impostazioni di default.
// Come Dispatch, restituisce sempre una risposta non-nil.
func (g *Gateway) Generate(ctx context.Context, prompt string) *Response {
	return g.Dispatch(ctx, &Request{Prompt: prompt})
}

// Dispatch instrada una richiesta secondo la modalità configurata.
// Restituisce sempre una risposta non-nil.
func (g *Gateway) Dispatch(ctx context.Context, req *Request) *Response {
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = g.config.Mode
	}

	var resp *Response
	switch mode {
	case ModeAggregate:
		resp = g.dispatchAggregate(ctx, req)
	case ModeCompare:
		resp = g.dispatchCompare(ctx, req)
	case ModeStructured:
		resp = g.dispatchStructured(ctx, req)
	default:
		resp = g.dispatchFailover(ctx, req)
	}

	resp.Mode = mode
	resp.LatencyMs = time.Since(start).Milliseconds()

	if g.postProcess != nil && !resp.Fallback {
		g.postProcess(resp)
	}

	return resp
}

// dispatchFailover prova i provider in ordine di priorità
func (g *Gateway) dispatchFailover(ctx context.Context, req *Request) *Response {
	for _, p := range g.registry.ByPriority() {
		result, cacheHit, err := g.callProvider(ctx, p, req)
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", p.Name()).
				Msg("Provider failed, trying next")
			continue
		}

		return &Response{
			Text:       result.Text,
			Provider:   p.Name(),
			Confidence: result.Confidence,
			CacheHit:   cacheHit,
		}
	}

	log.Warn().Str("agent", req.Agent).Msg("All providers exhausted, returning fallback")

	return &Response{
		Text:     g.config.FallbackText,
		Fallback: true,
	}
}

// dispatchAggregate concatena le risposte etichettate di tutti i provider
func (g *Gateway) dispatchAggregate(ctx context.Context, req *Request) *Response {
	return g.dispatchCombined(ctx, req, "\n")
}

// dispatchCompare affianca le risposte etichettate separate per provider
func (g *Gateway) dispatchCompare(ctx context.Context, req *Request) *Response {
	return g.dispatchCombined(ctx, req, compareSeparator)
}

// dispatchCombined interroga tutti i provider e unisce le risposte
// etichettate "[NOME]: testo" con il separatore dato. Con un solo
// provider sopravvissuto restituisce la risposta grezza senza etichetta.
func (g *Gateway) dispatchCombined(ctx context.Context, req *Request, separator string) *Response {
	names, results := g.collectAll(ctx, req)
	if len(results) == 0 {
		return &Response{Text: NoResponseText}
	}

	if len(results) == 1 {
		return &Response{
			Text:       results[0].Text,
			Provider:   names[0],
			Confidence: results[0].Confidence,
		}
	}

	sections := make([]string, len(results))
	var confidence float64
	for i, r := range results {
		sections[i] = "[" + strings.ToUpper(names[i]) + "]: " + r.Text
		confidence += r.Confidence
	}
	confidence /= float64(len(results))

	return &Response{
		Text:       strings.Join(sections, separator),
		Provider:   strings.Join(names, ","),
		Confidence: confidence,
	}
}

// dispatchStructured restituisce le risposte per provider come mappa
func (g *Gateway) dispatchStructured(ctx context.Context, req *Request) *Response {
	names, results := g.collectAll(ctx, req)

	responses := make(map[string]string, len(results))
	var confidence float64
	for i, r := range results {
		responses[names[i]] = r.Text
		confidence += r.Confidence
	}

	if len(results) == 0 {
		return &Response{Text: NoResponseText, Responses: responses}
	}
	confidence /= float64(len(results))

	return &Response{
		Provider:   strings.Join(names, ","),
		Confidence: confidence,
		Responses:  responses,
	}
}

// collectAll interroga tutti i provider disponibili in ordine di priorità
func (g *Gateway) collectAll(ctx context.Context, req *Request) ([]string, []*providers.Result) {
	var names []string
	var results []*providers.Result

	for _, p := range g.registry.ByPriority() {
		result, _, err := g.callProvider(ctx, p, req)
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", p.Name()).
				Msg("Provider failed during combination")
			continue
		}
		names = append(names, p.Name())
		results = append(results, result)
	}

	return names, results
}

// callProvider esegue la pipeline completa per un provider:
// rate limit gate, cache lookup, chiamata con retry, cache write, metriche.
func (g *Gateway) callProvider(ctx context.Context, p providers.Provider, req *Request) (*providers.Result, bool, error) {
	name := p.Name()
	start := time.Now()

	// Rate limit: ammissione secca, una richiesta rifiutata non viene mai accodata
	if g.limiter != nil {
		info, err := g.limiter.Allow(ctx, name)
		if err == nil && !info.Allowed {
			g.recordMetrics(req, name, start, 0, false, false, true, 0, "rate limited")
			if g.exporter != nil {
				g.exporter.RecordRateLimited(name)
			}
			return nil, false, &ratelimit.RateLimitError{Info: info, Key: name}
		}
	}

	// Cache lookup
	cacheKey := cache.ResponseKey(name, req.Prompt)
	if g.cacheReady() {
		if data, err := g.cache.Get(ctx, cacheKey); err == nil {
			var cached providers.Result
			if err := json.Unmarshal(data, &cached); err == nil {
				g.recordMetrics(req, name, start, 1, true, true, false, cached.Confidence, "")
				if g.exporter != nil {
					g.exporter.RecordCacheHit(name)
				}
				return &cached, true, nil
			}
		}
	}

	// Chiamata con retry
	var result *providers.Result
	attempts := 0
	err := g.retry.Execute(ctx, name, func() error {
		attempts++
		r, sendErr := p.Send(ctx, req.Prompt, req.Settings)
		if sendErr != nil {
			return sendErr
		}
		result = r
		return nil
	})

	latency := time.Since(start)

	if err != nil {
		g.registry.RecordOutcome(name, false)
		g.recordMetrics(req, name, start, attempts, false, false, false, 0, err.Error())
		if g.exporter != nil {
			g.exporter.RecordRequest(name, false, float64(latency.Milliseconds()))
		}
		return nil, false, err
	}

	g.registry.RecordOutcome(name, true)
	g.recordMetrics(req, name, start, attempts, true, false, false, result.Confidence, "")
	if g.exporter != nil {
		g.exporter.RecordRequest(name, true, float64(latency.Milliseconds()))
	}

	// Cache write
	if g.cacheReady() {
		if data, err := json.Marshal(result); err == nil {
			_ = g.cache.Set(ctx, cacheKey, data, 0)
		}
	}

	return result, false, nil
}

func (g *Gateway) cacheReady() bool {
	return g.config.CacheEnabled && g.cache != nil
}

func (g *Gateway) recordMetrics(req *Request, provider string, start time.Time, attempts int, success, cacheHit, rateLimited bool, confidence float64, errMsg string) {
	if g.collector == nil {
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = g.config.Mode
	}

	g.collector.Record(&stats.RequestMetrics{
		Provider:     provider,
		Agent:        req.Agent,
		Mode:         string(mode),
		LatencyMs:    time.Since(start).Milliseconds(),
		Attempts:     attempts,
		Success:      success,
		CacheHit:     cacheHit,
		RateLimited:  rateLimited,
		Confidence:   confidence,
		ErrorMessage: errMsg,
	})
}

// HealthStatus rappresenta lo stato corrente del gateway
type HealthStatus struct {
	Mode       CombinationMode        `json:"mode"`
	Providers  []providers.Descriptor `json:"providers"`
	CacheStats *cache.CacheStats      `json:"cache_stats,omitempty"`
}

// Health restituisce lo stato corrente del gateway
func (g *Gateway) Health() *HealthStatus {
	status := &HealthStatus{
		Mode:      g.config.Mode,
		Providers: g.registry.Descriptors(),
	}

	if g.cache != nil {
		cs := g.cache.Stats()
		status.CacheStats = &cs
	}

	return status
}
