package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetprocessor/internal/config"
)

const (
	TaskTranscriptions = "transcriptions"
	TaskTranslations   = "translations"
)

// OpenAIBackend posts audio to an OpenAI-compatible /audio endpoint.
type OpenAIBackend struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

func NewOpenAIBackend(cfg config.TranscriptionConfig, httpClient *http.Client) *OpenAIBackend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultOpenAIBaseURL
	}
	task := cfg.Task
	if task != TaskTranslations {
		task = TaskTranscriptions
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultTranscriptionModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Minute}
	}
	return &OpenAIBackend{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   baseURL + "/audio/" + task,
		httpClient: httpClient,
	}
}

type openAIResp struct {
	Text string `json:"text"`
}

func (o *OpenAIBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", o.model); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var or openAIResp
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	return or.Text, nil
}
