package client

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
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/config"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/monitoring"
)

// VoiceClient 语音识别协作方。
type VoiceClient struct {
	analyzeURL string
	apiKey     string
	http       *http.Client
}

func NewVoiceClient(cfg *config.VoiceConfig) *VoiceClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VoiceClient{
		analyzeURL: cfg.AnalyzeURL,
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: timeout},
	}
}

// Analyze 上传录音并返回识别文本，瞬时失败重试1次。
// 识别结果为空串表示服务未能识别内容，不视为错误。
func (c *VoiceClient) Analyze(ctx context.Context, wavPath string) (string, error) {
	start := time.Now()
	defer func() {
		monitoring.TranscriptionDuration.Observe(time.Since(start).Seconds())
	}()

	var transcription string

	err := doWithRetry(ctx, "voice.analyze", 2, time.Second, func() error {
		body, contentType, err := buildAudioForm(wavPath)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzeURL, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("voice analyze error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var payload struct {
			Transcription string `json:"transcription"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return err
		}
		transcription = payload.Transcription
		return nil
	})

	if err != nil {
		return "", err
	}
	return transcription, nil
}

func buildAudioForm(wavPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", filepath.Base(wavPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
