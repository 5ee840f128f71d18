package providers

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable indica che il provider non ha credenziali configurate
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrEmptyResponse indica che il provider ha risposto senza contenuto
	ErrEmptyResponse = errors.New("provider returned empty response")
)

// Provider è l'interfaccia base per tutti i provider LLM
type Provider interface {
	// Send invia un prompt e restituisce il testo generato con un
	// confidence hint. Un errore indica un tentativo fallito, mai un panic.
	Send(ctx context.Context, prompt string, settings Settings) (*Result, error)

	// Name restituisce il nome del provider
	Name() string

	// Available indica se il provider è utilizzabile.
	// Viene determinato alla creazione e non cambia durante la vita del processo.
	Available() bool

	// Priority restituisce la priorità di failover (più basso = prima)
	Priority() int
}

// Settings contiene i parametri di generazione per una richiesta
type Settings struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Result rappresenta la risposta di un provider
type Result struct {
	Text string `json:"text"`

	// Confidence è un hint autodichiarato dal provider (0.0-1.0)
	Confidence float64 `json:"confidence"`

	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// Usage rappresenta le statistiche di utilizzo
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// DefaultConfidence è il confidence hint usato quando il provider
// non espone una misura propria
const DefaultConfidence = 0.9

// BaseProvider fornisce funzionalità comuni per i provider
type BaseProvider struct {
	name      string
	baseURL   string
	apiKey    string
	model     string
	timeout   time.Duration
	priority  int
	available bool
}

// NewBaseProvider crea un nuovo BaseProvider.
// Il provider è disponibile solo se la API key è presente.
func NewBaseProvider(name, baseURL, apiKey, model string, priority int) *BaseProvider {
	return &BaseProvider{
		name:      name,
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		timeout:   30 * time.Second,
		priority:  priority,
		available: apiKey != "",
	}
}

// Name restituisce il nome del provider
func (b *BaseProvider) Name() string {
	return b.name
}

// Available indica se il provider è utilizzabile
func (b *BaseProvider) Available() bool {
	return b.available
}

// Priority restituisce la priorità di failover
func (b *BaseProvider) Priority() int {
	return b.priority
}

// SetTimeout imposta il timeout delle richieste
func (b *BaseProvider) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// GetBaseURL restituisce la base URL
func (b *BaseProvider) GetBaseURL() string {
	return b.baseURL
}

// GetAPIKey restituisce la API key
func (b *BaseProvider) GetAPIKey() string {
	return b.apiKey
}

// GetModel restituisce il modello di default
func (b *BaseProvider) GetModel() string {
	return b.model
}

// GetTimeout restituisce il timeout
func (b *BaseProvider) GetTimeout() time.Duration {
	return b.timeout
}

// ResolveModel restituisce il modello dalla richiesta o il default del provider
func (b *BaseProvider) ResolveModel(settings Settings) string {
	if settings.Model != "" {
		return settings.Model
	}
	return b.model
}
