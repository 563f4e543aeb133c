package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/domain/services"
	"cortex/internal/generation"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider("test-key", option.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return p
}

func request() *services.GenerateRequest {
	return &services.GenerateRequest{
		Model:    "claude-haiku-4-5",
		System:   "You are helpful.",
		Messages: []services.ProviderMessage{{Role: "user", Content: "Hello"}},
	}
}

func TestGenerateResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Hi "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	})

	resp, err := p.GenerateResponse(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
}

func TestGenerateResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		upstream int
		want     int
	}{
		{529, http.StatusServiceUnavailable},
		{429, http.StatusTooManyRequests},
		{400, http.StatusBadRequest},
	}
	for _, tt := range tests {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.upstream)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
		})

		_, err := p.GenerateResponse(context.Background(), request())
		require.Error(t, err)
		assert.Equal(t, tt.want, generation.StatusOf(err), "upstream %d", tt.upstream)
	}
}

func TestGenerateResponse_RejectsForeignModel(t *testing.T) {
	p, err := NewProvider("k")
	require.NoError(t, err)

	req := request()
	req.Model = "lorem-fast"
	_, err = p.GenerateResponse(context.Background(), req)
	assert.Equal(t, http.StatusBadRequest, generation.StatusOf(err))
}

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider("")
	assert.Error(t, err)
}
