package recognize

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"batch-transcriber/internal/domain"
)

const (
	googleDefaultBaseURL  = "http://www.google.com/speech-api/v2/recognize"
	googleDefaultLanguage = "en-US"
)

// Google calls the Web Speech v2 endpoint with raw 16-bit PCM.
type Google struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
}

type googleResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
}

// NewGoogle creates a client. "auto" maps to en-US since the endpoint has
// no language detection.
func NewGoogle(cfg Config, client *http.Client) *Google {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" || strings.EqualFold(lang, "auto") {
		lang = googleDefaultLanguage
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{baseURL: baseURL, apiKey: cfg.APIKey, language: lang, client: client}
}

// Recognize posts the clip's PCM samples and returns the first non-empty
// transcript alternative.
func (g *Google) Recognize(ctx context.Context, audio []byte, name string) (string, error) {
	pcm, err := decodeWAV(audio)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}

	query := url.Values{}
	query.Set("client", "chromium")
	query.Set("lang", g.language)
	query.Set("pFilter", "0")
	if g.apiKey != "" {
		query.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"?"+query.Encode(), bytes.NewReader(pcm.samples))
	if err != nil {
		return "", fmt.Errorf("build google request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", pcm.sampleRate))

	resp, err := g.client.Do(req)
	if err != nil {
		return "", transportError(ctx, err, "google")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp, "google")
	}

	// the body is one JSON object per line; the first is usually empty
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var parsed googleResponse
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			return "", &domain.ServiceError{StatusCode: resp.StatusCode, Message: "google: decode response", Err: err}
		}
		for _, result := range parsed.Result {
			for _, alt := range result.Alternative {
				if text := strings.TrimSpace(alt.Transcript); text != "" {
					return text, nil
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", transportError(ctx, err, "google")
	}
	return "", domain.ErrUnintelligible
}
