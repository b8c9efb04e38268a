package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"bare":   {`{"a":1}`, `{"a":1}`, true},
		"fenced": {"```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		"prose":  {"Sure! {\"a\":1} hope that helps", `{"a":1}`, true},
		"none":   {"no json here", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChatJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatPath, r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auto", req.Agent)
		_ = json.NewEncoder(w).Encode(chatResponse{Agent: "mock", Output: "```json\n{\"title\":\"Hi\"}\n```"})
	}))
	defer srv.Close()

	var out struct{ Title string }
	err := NewClient(srv.URL).ChatJSON(context.Background(), "write", &out)
	require.NoError(t, err)
	assert.Equal(t, "Hi", out.Title)
}

func TestChatRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Output: "ok"})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, WithAttempts(2)).Chat(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatJSONWithoutObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Output: "I cannot help with that"})
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := NewClient(srv.URL).ChatJSON(context.Background(), "x", &out)
	assert.ErrorIs(t, err, ErrNoJSON)
}
