package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcastera/mailer/internal/email"
)

func testMessage() *email.Message {
	return &email.Message{
		To:      []string{"alice@example.com"},
		Bcc:     []string{"hidden@example.com"},
		From:    "Sender<sender@example.com>",
		Subject: "Report",
		Headers: "From: Sender<sender@example.com>\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Bcc: hidden@example.com\r\n",
		Body: "--b\r\n",
	}
}

// setupTestServers returns a token endpoint and a sendMail endpoint driven
// by sendHandler.
func setupTestServers(t *testing.T, tokenCalls *atomic.Int32, sendHandler http.HandlerFunc) *GraphProvider {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	}))
	t.Cleanup(tokenSrv.Close)

	sendSrv := httptest.NewServer(sendHandler)
	t.Cleanup(sendSrv.Close)

	cfg := GraphProviderConfig{ClientID: "cid", ClientSecret: "secret", Sender: "sender@example.com"}
	return newWithOverrides(cfg, sendSrv.URL, tokenSrv.URL, sendSrv.Client())
}

func TestSend_PostsBase64MIME(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int32
	var got []byte
	p := setupTestServers(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got, err = base64.StdEncoding.DecodeString(string(body))
		require.NoError(t, err)

		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, p.Send(context.Background(), testMessage()))

	raw := string(got)
	assert.True(t, strings.HasPrefix(raw, "To: alice@example.com\r\nSubject: Report\r\n"))
	assert.Contains(t, raw, "Bcc: hidden@example.com\r\n")
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestSend_RefreshesTokenOnceOn401(t *testing.T) {
	t.Parallel()

	var tokenCalls, sendCalls atomic.Int32
	p := setupTestServers(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if sendCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"expired"}}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, p.Send(context.Background(), testMessage()))
	assert.Equal(t, int32(2), sendCalls.Load())
	assert.Equal(t, int32(2), tokenCalls.Load())
}

func TestSend_Persistent401(t *testing.T) {
	t.Parallel()

	var tokenCalls, sendCalls atomic.Int32
	p := setupTestServers(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		sendCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := p.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, int32(2), sendCalls.Load())
}

func TestSend_ErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":"ErrorInvalidRecipients","message":"bad recipient"}}`, "ErrorInvalidRecipients"},
		{"throttled", http.StatusTooManyRequests, `slow down`, "HTTP 429"},
		{"server error", http.StatusInternalServerError, ``, "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var tokenCalls, sendCalls atomic.Int32
			p := setupTestServers(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
				sendCalls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := p.Send(context.Background(), testMessage())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, int32(1), sendCalls.Load())

			var se *sendError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.statusCode)
		})
	}
}

func TestSend_TokenFailure(t *testing.T) {
	t.Parallel()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	var sendCalls atomic.Int32
	sendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendCalls.Add(1)
	}))
	defer sendSrv.Close()

	p := newWithOverrides(GraphProviderConfig{}, sendSrv.URL, tokenSrv.URL, sendSrv.Client())

	err := p.Send(context.Background(), testMessage())
	assert.ErrorContains(t, err, "access token")
	assert.Equal(t, int32(0), sendCalls.Load())
}

func TestName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "msgraph", New(GraphProviderConfig{Sender: "s@example.com"}).Name())
}
