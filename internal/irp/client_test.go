package irp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/credentials"
)

type staticCreds struct {
	user, pass string
	err        error
}

func (s staticCreds) Get() (credentials.Credentials, error) {
	if s.err != nil {
		return credentials.Credentials{}, s.err
	}
	return credentials.Credentials{Username: s.user, Password: s.pass}, nil
}

func (s staticCreds) Set(credentials.Credentials) error { return nil }

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:      serverURL,
		AuthPath:     "/eivital/v1.04/auth",
		GeneratePath: "/eicore/v1.03/Invoice",
		UserGSTIN:    "29AABCT1332L000",
	}, staticCreds{user: "apiuser", pass: "apipass"}, zap.NewNop())
}

func validSEK() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestAuthenticateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "29AABCT1332L000", r.Header.Get("Gstin"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AUTH", req["action"])
		assert.Equal(t, "apiuser", req["username"])

		json.NewEncoder(w).Encode(map[string]any{
			"Status": 1,
			"Data": map[string]any{
				"AuthToken":   "tok-42",
				"Sek":         validSEK(),
				"TokenExpiry": 360,
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	require.NoError(t, c.Authenticate(context.Background()))

	assert.True(t, c.session.Valid(time.Now()))
	assert.Equal(t, "tok-42", c.session.Token())
	assert.Len(t, c.session.SEK(), 32)
}

func TestAuthenticateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Status": 0,
			"ErrorDetails": []map[string]string{
				{"ErrorCode": "1005", "ErrorMessage": "Invalid password"},
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.Authenticate(context.Background())

	require.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "Code 1005: Invalid password")
	assert.False(t, c.session.Valid(time.Now()))
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, staticCreds{err: credentials.ErrNotSet}, zap.NewNop())

	err := c.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestAuthenticateRejectsBadSEK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Status": 1,
			"Data": map[string]any{
				"AuthToken": "tok",
				"Sek":       base64.StdEncoding.EncodeToString([]byte("short")),
			},
		})
	}))
	defer server.Close()

	err := testClient(t, server.URL).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestSubmitSendsSessionHeaders(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/eivital/v1.04/auth" {
			sawAuth = true
			json.NewEncoder(w).Encode(map[string]any{
				"Status": 1,
				"Data":   map[string]any{"AuthToken": "tok-7", "Sek": validSEK(), "TokenExpiry": 60},
			})
			return
		}
		assert.Equal(t, "tok-7", r.Header.Get("authtoken"))
		assert.Equal(t, "apiuser", r.Header.Get("user_name"))
		assert.Equal(t, "29AABCT1332L000", r.Header.Get("Gstin"))
		w.Write([]byte(`{"Status":1,"Data":{"Irn":"new-irn"}}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	body := c.Submit(context.Background(), []byte(`{"Data":"payload"}`))

	assert.True(t, sawAuth)
	assert.Contains(t, body, "new-irn")
}

func TestSubmitSkipsAuthWhenSessionValid(t *testing.T) {
	var authCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/eivital/v1.04/auth" {
			authCalls++
			return
		}
		w.Write([]byte(`{"Status":1,"Data":{"Irn":"x"}}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.session.Set("tok", make([]byte, 32), time.Now().Add(time.Hour))

	c.Submit(context.Background(), []byte(`{}`))
	assert.Zero(t, authCalls)
}

func TestSubmitTransportFailureIsSynthetic(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1")
	c.session.Set("tok", make([]byte, 32), time.Now().Add(time.Hour))

	body := c.Submit(context.Background(), []byte(`{}`))

	res := NewInterpreter(zap.NewNop()).Interpret(body)
	assert.Contains(t, res.ErrorMsg, "NET_ERROR")
}

func TestSubmitAuthFailureIsSynthetic(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1")

	body := c.Submit(context.Background(), []byte(`{}`))

	res := NewInterpreter(zap.NewNop()).Interpret(body)
	assert.Contains(t, res.ErrorMsg, "AUTH_ERROR")
}

func TestSubmitReturnsErrorBodyOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"Status":0,"ErrorDetails":[{"ErrorCode":"2150","ErrorMessage":"Duplicate IRN"}]}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.session.Set("tok", make([]byte, 32), time.Now().Add(time.Hour))

	body := c.Submit(context.Background(), []byte(`{}`))
	assert.Contains(t, body, "Duplicate IRN")
}

func TestDecodeResponseDecryptsDataField(t *testing.T) {
	sek := make([]byte, 32)
	plaintext := []byte(`{"Irn":"decrypted-irn","AckNo":"55"}`)
	encrypted, err := EncryptPayload(plaintext, sek)
	require.NoError(t, err)

	c := testClient(t, "http://unused")
	c.session.Set("tok", sek, time.Now().Add(time.Hour))

	raw, err := json.Marshal(map[string]any{"Status": 1, "Data": encrypted})
	require.NoError(t, err)

	decoded := c.DecodeResponse(string(raw))

	res := NewInterpreter(zap.NewNop()).Interpret(decoded)
	assert.Equal(t, "decrypted-irn", res.IRN)
}

func TestDecodeResponsePassesThroughPlainBodies(t *testing.T) {
	c := testClient(t, "http://unused")

	plain := `{"Status":1,"Data":{"Irn":"plain"}}`
	assert.Equal(t, plain, c.DecodeResponse(plain))

	garbage := "not json at all"
	assert.Equal(t, garbage, c.DecodeResponse(garbage))
}
