package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Client implementa il provider Gemini (Google Generative Language API)
type Client struct {
	*providers.BaseProvider
	httpClient *resty.Client
}

// NewClient crea un nuovo client Gemini
func NewClient(baseURL, apiKey, model string, priority int, timeout time.Duration) *Client {
	base := providers.NewBaseProvider("gemini", baseURL, apiKey, model, priority)
	if timeout > 0 {
		base.SetTimeout(timeout)
	}

	client := &Client{
		BaseProvider: base,
		httpClient:   resty.New(),
	}

	client.configureHTTPClient()
	return client
}

// configureHTTPClient configura il client HTTP
func (c *Client) configureHTTPClient() {
	c.httpClient.
		SetBaseURL(c.GetBaseURL()).
		SetTimeout(c.GetTimeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.Name()).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Gemini API response")
		return nil
	})
}

// Send invia un prompt a Gemini e restituisce il testo generato
func (c *Client) Send(ctx context.Context, prompt string, settings providers.Settings) (*providers.Result, error) {
	if !c.Available() {
		return nil, providers.ErrProviderUnavailable
	}

	model := c.ResolveModel(settings)

	req := &generateContentRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
	}
	if settings.Temperature > 0 || settings.MaxTokens > 0 {
		req.GenerationConfig = &generationConfig{
			Temperature:     settings.Temperature,
			MaxOutputTokens: settings.MaxTokens,
		}
	}

	var result generateContentResponse
	var errResp errorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.GetAPIKey()).
		SetBody(req).
		SetResult(&result).
		SetError(&errResp).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", model))

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	text := result.firstText()
	if text == "" {
		return nil, providers.ErrEmptyResponse
	}

	return &providers.Result{
		Text:       text,
		Confidence: providers.DefaultConfidence,
		Model:      model,
		Usage: providers.Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// handleErrorResponse gestisce gli errori dalla risposta API
func (c *Client) handleErrorResponse(statusCode int, errResp *errorResponse) error {
	baseErr := fmt.Errorf("API error: status %d", statusCode)
	if errResp.Error.Message != "" {
		baseErr = fmt.Errorf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}

	switch statusCode {
	case 401, 403:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, baseErr)
	case 429:
		return fmt.Errorf("%w: %v", ErrRateLimitExceeded, baseErr)
	case 404:
		return fmt.Errorf("%w: %v", ErrModelNotFound, baseErr)
	case 400:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, baseErr)
	case 503:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, baseErr)
	default:
		return baseErr
	}
}
