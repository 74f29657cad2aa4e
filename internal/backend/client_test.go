package backend

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

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// fakeBackend mimics the auth and simulation services on one server.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/brownie/request-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":[{"msg":"field required"}]}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "OTP sent to " + body["email"] + ". Check your inbox."})
	})
	mux.HandleFunc("/api/brownie/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["otp_code"] != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Invalid OTP"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "ok", "user_id": 7, "email": body["email"]})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		w.Write([]byte(`{"user":{"id":7,"email":"judge@example.com"}}`))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/simulate", func(w http.ResponseWriter, r *http.Request) {
		var req SimulationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(SimulationResult{Status: "started", Points: req.Duration})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *Client {
	c, err := New(url, url+"/", time.Second)
	require.NoError(t, err)
	return c
}

func TestLoginFlowKeepsSessionCookie(t *testing.T) {
	srv := fakeBackend(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	msg, err := c.RequestOTP(ctx, "judge@example.com")
	require.NoError(t, err)
	assert.Contains(t, msg, "judge@example.com")

	res, err := c.VerifyOTP(ctx, "judge@example.com", " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, telemetry.User{ID: 7, Email: "judge@example.com"}, res.User())

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestErrorsCarryBackendDetail(t *testing.T) {
	srv := fakeBackend(t)
	c := newClient(t, srv.URL)

	_, err := c.VerifyOTP(context.Background(), "judge@example.com", "000000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid OTP", apiErr.Detail)

	_, err = c.RequestOTP(context.Background(), "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Detail, "field required")
}

func TestTriggerSimulationAndHealth(t *testing.T) {
	srv := fakeBackend(t)
	c := newClient(t, srv.URL)

	res, err := c.TriggerSimulation(context.Background(), SimulationRequest{Type: "X", Duration: 60})
	require.NoError(t, err)
	assert.Equal(t, SimulationResult{Status: "started", Points: 60}, res)
	assert.NoError(t, c.Health(context.Background()))
}

func TestUnreachableBackend(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1")
	err := c.Health(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
