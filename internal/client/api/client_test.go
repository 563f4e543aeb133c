package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/domain/models"
)

func TestCreateChatSendsTokenAndDecodesChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["title"])
		assert.Nil(t, body["mode"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"chat":{"id":"c1","title":"Hello","mode":null,"isFavorite":false,"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","messages":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	chat, err := c.CreateChat(context.Background(), "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", chat.ID)
	assert.Nil(t, chat.Mode)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), chat.CreatedAt.UTC())
}

func TestErrorsCarryStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetChat(context.Background(), "c1")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode())
	assert.Equal(t, "Unauthorized", apiErr.Message)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsNotFound(err))
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).ListChats(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
}

func TestUpdateChatSendsOnlyPresentFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/chats/c1", r.URL.Path)
		got = map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"chat":{"id":"c1","title":"t","mode":null}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	fav := true
	_, err := c.UpdateChat(context.Background(), "c1", ChatUpdate{IsFavorite: &fav})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isFavorite": true}, got)

	_, err = c.UpdateChat(context.Background(), "c1", ChatUpdate{Mode: models.Clear[string]()})
	require.NoError(t, err)
	v, present := got["mode"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestGenerateDecodesDegradedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c1", req.ChatID)
		assert.Equal(t, "Hi", req.Message)
		w.Write([]byte(`{"response":"sorry","messageId":"m9","degraded":true}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).Generate(context.Background(), GenerateRequest{ChatID: "c1", Message: "Hi"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "m9", res.MessageID)
}

func TestDeleteChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/api/chats/gone" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"chat not found"}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	assert.NoError(t, c.DeleteChat(context.Background(), "c1"))
	assert.True(t, IsNotFound(c.DeleteChat(context.Background(), "gone")))
}

func TestSetTokenSwapsAuthorization(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{"chats":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	for _, token := range []string{"", "tok", ""} {
		c.SetToken(token)
		_, err := c.ListChats(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"", "Bearer tok", ""}, seen)
}
