package recognize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"batch-transcriber/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 2048

// Config selects and configures a recognizer backend.
// Language is a BCP-47 tag or "auto".
type Config struct {
	Backend  string
	BaseURL  string
	Model    string
	APIKey   string
	Language string
	Timeout  time.Duration
}

// ConfigFromSettings maps run settings to a recognizer config.
func ConfigFromSettings(settings domain.Settings) Config {
	return Config{
		Backend:  settings.Recognizer,
		BaseURL:  settings.RecognizerURL,
		Model:    settings.RecognizerModel,
		APIKey:   settings.APIKey,
		Language: settings.Language,
		Timeout:  time.Duration(settings.RequestTimeoutSec) * time.Second,
	}
}

// Recognizer sends one audio clip to a speech-to-text service. It returns
// domain.ErrUnintelligible when the service heard no speech and
// *domain.ServiceError for failed requests.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, name string) (string, error)
}

// New builds the configured backend.
func New(cfg Config) (Recognizer, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendOpenAI, "":
		return NewOpenAI(cfg, client), nil
	case BackendGoogle:
		return NewGoogle(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Backend)
	}
}

// Backend names accepted by New.
const (
	BackendOpenAI = "openai"
	BackendGoogle = "google"
)

// statusError converts a non-2xx response into a ServiceError.
func statusError(resp *http.Response, backend string) *domain.ServiceError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.ServiceError{
		StatusCode: resp.StatusCode,
		Retryable:  retryableStatus(resp.StatusCode),
		Message:    fmt.Sprintf("%s: %s", backend, strings.TrimSpace(string(body))),
	}
}

// transportError wraps a request that never produced a response.
func transportError(ctx context.Context, err error, backend string) error {
	if ctx.Err() != nil {
		return &domain.ServiceError{Message: backend + " request cancelled", Err: ctx.Err()}
	}
	return &domain.ServiceError{
		Retryable: retryableTransport(err),
		Message:   backend + " request failed",
		Err:       err,
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryableTransport(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "eof", "broken pipe"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
