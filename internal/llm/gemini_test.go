package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerate(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      string
		wantErr   bool
		wantEmpty bool
	}{
		{
			name:   "joins text parts of first candidate",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"role":"model","parts":[{"text":"The report "},{"text":"covers Q3."}]},"finishReason":"STOP"}]}`,
			want:   "The report covers Q3.",
		},
		{
			name:    "api error status",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"code":429,"message":"quota exceeded"}}`,
			wantErr: true,
		},
		{
			name:      "no candidates",
			status:    http.StatusOK,
			body:      `{"candidates":[]}`,
			wantErr:   true,
			wantEmpty: true,
		},
		{
			name:      "blocked prompt",
			status:    http.StatusOK,
			body:      `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr:   true,
			wantEmpty: true,
		},
		{
			name:      "candidate without text",
			status:    http.StatusOK,
			body:      `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`,
			wantErr:   true,
			wantEmpty: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq geminiRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &gotReq)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewGeminiClientWithEndpoint("test-key", "", srv.URL)
			require.NoError(t, err)

			got, err := client.Generate(context.Background(), "Question: what is covered?")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantEmpty, errors.Is(err, ErrEmptyResponse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.Len(t, gotReq.Contents, 1)
			assert.Equal(t, "user", gotReq.Contents[0].Role)
			assert.Equal(t, "Question: what is covered?", gotReq.Contents[0].Parts[0].Text)
		})
	}
}

func TestGeminiGenerateNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client, err := NewGeminiClientWithEndpoint("test-key", "", endpoint)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewGeminiClient(t *testing.T) {
	_, err := NewGeminiClient("", "")
	assert.Error(t, err)

	client, err := NewGeminiClient("key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, client.model)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent", client.endpoint)
}
