package excuse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelServer answers generateContent with the given candidate text.
func modelServer(t *testing.T, status int, candidateText string) (*Client, *[]generateRequest) {
	t.Helper()
	var seen []generateRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1beta/models/test-model:generateContent", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seen = append(seen, req)
		if status != http.StatusOK {
			http.Error(w, `{"error":{"message":"boom"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": candidateText}}},
				"finishReason": "STOP",
			}},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return New(server.URL+"/", "secret", "test-model", 5*time.Second, false), &seen
}

func TestAssessValid(t *testing.T) {
	client, seen := modelServer(t, http.StatusOK, `{"isValid": true, "explanation": "Medical appointments are common."}`)

	verdict, err := client.Assess(context.Background(), "Had a doctor appointment.")
	require.NoError(t, err)
	assert.Equal(t, Verdict{IsValid: true, Explanation: "Medical appointments are common."}, verdict)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
	assert.Equal(t, "OBJECT", req.GenerationConfig.ResponseSchema["type"])
	require.Len(t, req.Contents, 1)
	assert.Contains(t, req.Contents[0].Parts[0].Text, "Absence reason: Had a doctor appointment.")
}

func TestAssessFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		text      string
		malformed bool
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "not json", status: http.StatusOK, text: "Sure! It looks fine.", malformed: true},
		{name: "missing explanation", status: http.StatusOK, text: `{"isValid": true}`, malformed: true},
		{name: "blank explanation", status: http.StatusOK, text: `{"isValid": false, "explanation": "  "}`, malformed: true},
		{name: "wrong type", status: http.StatusOK, text: `{"isValid": "yes", "explanation": "ok"}`, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := modelServer(t, tt.status, tt.text)
			_, err := client.Assess(context.Background(), "Overslept")
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedOutput), err.Error())
		})
	}
}

func TestAssessNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := New(server.URL, "k", "m", time.Second, false)
	_, err := client.Assess(context.Background(), "Sick")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestAssessUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(url, "k", "m", time.Second, false)
	_, err := client.Assess(context.Background(), "Sick")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "excuse: model request failed"))
}

func TestAssessSkip(t *testing.T) {
	client := New("http://127.0.0.1:1", "", "m", time.Second, true)
	verdict, err := client.Assess(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, verdict.IsValid)
	assert.NotEmpty(t, verdict.Explanation)
}

func TestRenderPromptKeepsReasonVerbatim(t *testing.T) {
	prompt, err := renderPrompt(`Family <wedding> & "travel"`)
	require.NoError(t, err)
	assert.Contains(t, prompt, `Absence reason: Family <wedding> & "travel"`)
}
