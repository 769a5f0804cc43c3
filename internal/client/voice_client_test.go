package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sidhuiwnl/lordminds-sub000/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0644))
	return path
}

func newVoice(t *testing.T, handler http.Handler) *VoiceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewVoiceClient(&config.VoiceConfig{AnalyzeURL: srv.URL, APIKey: "voice-key", TimeoutSec: 5})
}

func TestAnalyze(t *testing.T) {
	wav := writeTempWav(t)

	voice := newVoice(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer voice-key", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "answer.wav", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"transcription": "Paris"})
	}))

	text, err := voice.Analyze(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "Paris", text)
}

func TestAnalyzeEmptyTranscriptionIsNotError(t *testing.T) {
	wav := writeTempWav(t)

	voice := newVoice(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"transcription": ""})
	}))

	text, err := voice.Analyze(context.Background(), wav)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAnalyzeRetriesOnce(t *testing.T) {
	wav := writeTempWav(t)

	var calls int32
	voice := newVoice(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"transcription": "hello"})
	}))

	text, err := voice.Analyze(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnalyzeFailsAfterRetries(t *testing.T) {
	wav := writeTempWav(t)

	var calls int32
	voice := newVoice(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := voice.Analyze(context.Background(), wav)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnalyzeMissingFile(t *testing.T) {
	voice := newVoice(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be reached")
	}))

	_, err := voice.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
