package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"batch-transcriber/internal/domain"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible /audio/transcriptions endpoint.
type OpenAI struct {
	baseURL  string
	model    string
	apiKey   string
	language string
	client   *http.Client
}

type openAIResponse struct {
	Text string `json:"text"`
}

// NewOpenAI creates a client. An empty base URL targets api.openai.com.
func NewOpenAI(cfg Config, client *http.Client) *OpenAI {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{
		baseURL:  baseURL,
		model:    model,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		client:   client,
	}
}

// Recognize uploads one WAV clip and returns the recognized text.
func (o *OpenAI) Recognize(ctx context.Context, audio []byte, name string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", o.model); err != nil {
		return "", err
	}
	if lang := openAILanguage(o.language); lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return "", err
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", transportError(ctx, err, "openai")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp, "openai")
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.ServiceError{StatusCode: resp.StatusCode, Message: "openai: decode response", Err: err}
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", domain.ErrUnintelligible
	}
	return text, nil
}

// openAILanguage reduces a BCP-47 tag to the ISO-639-1 code the endpoint
// accepts. "auto" leaves detection to the service.
func openAILanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}
