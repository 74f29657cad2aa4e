// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// ErrNoSession is returned by Me when the backend has no session for us.
var ErrNoSession = errors.New("no backend session")

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// SimulationRequest asks the backend to play a synthetic event.
type SimulationRequest struct {
	Type      string `json:"type"`
	Duration  int    `json:"duration"`
	EventType string `json:"event_type,omitempty"`
}

// SimulationResult is the backend's acknowledgement of a simulation.
type SimulationResult struct {
	Status string `json:"status"`
	Points int    `json:"points"`
}

// VerifyResult is returned after a successful OTP check.
type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
}

// User returns the verified operator.
func (v VerifyResult) User() telemetry.User {
	return telemetry.User{ID: v.UserID, Email: v.Email}
}

// Client talks to the auth and simulation backends. It keeps the backend's
// session cookie in its own jar, so one Client represents one operator.
type Client struct {
	authURL string
	simURL  string
	h       *http.Client
}

func New(authURL, simulationURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		authURL: strings.TrimRight(authURL, "/"),
		simURL:  strings.TrimRight(simulationURL, "/"),
		h:       &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// RequestOTP asks the backend to email a one-time code to email.
func (c *Client) RequestOTP(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, c.authURL+"/api/brownie/request-otp", map[string]string{"email": email}, &out)
	return out.Message, err
}

// VerifyOTP checks code for email; on success the backend session cookie
// is stored in the client's jar.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (VerifyResult, error) {
	var out VerifyResult
	body := map[string]string{"email": email, "otp_code": strings.TrimSpace(code)}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/api/brownie/verify-otp", body, &out); err != nil {
		return VerifyResult{}, err
	}
	if !out.Success {
		return VerifyResult{}, &APIError{Status: http.StatusBadRequest, Detail: out.Message}
	}
	return out, nil
}

// Me returns the operator the backend session belongs to.
func (c *Client) Me(ctx context.Context) (telemetry.User, error) {
	var out struct {
		User *telemetry.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, c.authURL+"/api/auth/me", nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return telemetry.User{}, ErrNoSession
	}
	if err != nil {
		return telemetry.User{}, err
	}
	if out.User == nil {
		return telemetry.User{}, ErrNoSession
	}
	return *out.User, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.authURL+"/api/auth/logout", nil, nil)
}

// TriggerSimulation starts a synthetic event on the backend feed.
func (c *Client) TriggerSimulation(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	var out SimulationResult
	err := c.do(ctx, http.MethodPost, c.simURL+"/simulate", req, &out)
	return out, err
}

// Health checks that the simulation backend answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.simURL+"/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Detail: detail(b)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

// detail extracts the error text from a {"detail": "..."} body, falling
// back to the raw body.
func detail(b []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(b, &env) == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s
		}
		return string(env.Detail)
	}
	return strings.TrimSpace(string(b))
}
