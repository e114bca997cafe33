// Package api is the single outbound request pipeline. Every call gets the
// current access token attached; a 401 triggers the token refresh protocol
// and exactly one re-dispatch of the original request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"esnafpanel-core/internal/model"
)

// genericErrorMessage is shown when the backend gives no usable message.
const genericErrorMessage = "Bir hata oluştu. Lütfen tekrar deneyin."

const defaultTimeout = 30 * time.Second

// ErrNoRefreshToken means a 401 arrived while no refresh token was held;
// there is nothing to exchange and the session is over.
var ErrNoRefreshToken = errors.New("no refresh token held")

// ErrSessionReplaced means a refresh completed but the session it was
// started for is gone (logout or re-login happened meanwhile); the
// refreshed tokens were discarded.
var ErrSessionReplaced = errors.New("session no longer active")

// Error carries the HTTP status and the human-readable message extracted
// from the backend response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Session is the slice of the credential store the gateway needs. Tokens
// are always read through it, never from durable storage, so concurrent
// refreshes can never serve stale values.
type Session interface {
	AccessToken() string
	RefreshToken() string
	CommitRefreshedTokens(oldRefresh string, pair model.TokenPair) bool
	ForceLogout()
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu               sync.Mutex
	session          Session
	onSessionExpired func()

	refreshMu       sync.Mutex
	refreshInflight *inflight
}

// inflight is the shared outcome of one token exchange; concurrent 401
// handlers wait on it instead of racing their own exchanges.
type inflight struct {
	done chan struct{}
	err  error
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// BindSession attaches the credential store. The store also drives this
// client for login/logout, so the two are wired after construction.
func (c *Client) BindSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// SetOnSessionExpired registers the navigation hook fired when a refresh
// fails terminally. Keeping the redirect here gives every screen the same
// expiry behavior.
func (c *Client) SetOnSessionExpired(fn func()) {
	c.mu.Lock()
	c.onSessionExpired = fn
	c.mu.Unlock()
}

// request describes one logical API call. The body is kept as bytes so a
// retried dispatch can rebuild its reader.
type request struct {
	method string
	path   string
	body   []byte
	auth   bool
}

// attempt wraps a request with its retry state so "retried at most once"
// is enforced structurally.
type attempt struct {
	req     request
	retried bool
}

func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	at := attempt{req: req}
	for {
		resp, err := c.send(ctx, at.req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || !at.req.auth {
			return resp, nil
		}
		if at.retried {
			// Second 401 in a row is terminal; the caller sees it as-is.
			return resp, nil
		}

		_ = resp.Body.Close()
		if err := c.refreshTokens(ctx); err != nil {
			return nil, err
		}
		// The new access token is committed before this point; only now
		// may the original request go out again.
		at.retried = true
	}
}

func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, err
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth {
		if token := c.currentSession().AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.http.Do(httpReq)
}

// refreshTokens runs at most one token exchange at a time; late callers
// share the in-flight outcome.
func (c *Client) refreshTokens(ctx context.Context) error {
	c.refreshMu.Lock()
	if fl := c.refreshInflight; fl != nil {
		c.refreshMu.Unlock()
		select {
		case <-fl.done:
			return fl.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	c.refreshInflight = fl
	c.refreshMu.Unlock()

	fl.err = c.exchangeRefreshToken(ctx)

	c.refreshMu.Lock()
	c.refreshInflight = nil
	c.refreshMu.Unlock()
	close(fl.done)
	return fl.err
}

func (c *Client) exchangeRefreshToken(ctx context.Context) error {
	sess := c.currentSession()
	oldRefresh := sess.RefreshToken()
	if oldRefresh == "" {
		c.expireSession()
		return ErrNoRefreshToken
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": oldRefresh})
	if err != nil {
		return err
	}
	// The exchange itself is unauthenticated; the refresh token is the
	// credential.
	resp, err := c.send(ctx, request{method: http.MethodPost, path: "/auth/token-yenile", body: payload})
	if err != nil {
		c.expireSession()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := c.errorFrom(resp)
		c.log.Warn("token refresh rejected", zap.Int("status", resp.StatusCode))
		c.expireSession()
		return apiErr
	}

	var pair model.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		c.expireSession()
		return err
	}

	if !sess.CommitRefreshedTokens(oldRefresh, pair) {
		// Logout won the race; the fresh pair must not resurrect the
		// session.
		return ErrSessionReplaced
	}
	return nil
}

// expireSession performs the one navigation side effect infrastructure
// code is allowed: full local logout plus redirect to the login entry.
func (c *Client) expireSession() {
	c.currentSession().ForceLogout()
	c.mu.Lock()
	fn := c.onSessionExpired
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) currentSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// doJSON dispatches and decodes, converting non-2xx responses into *Error
// with the backend's message.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}

	resp, err := c.do(ctx, request{method: method, path: path, body: body, auth: auth})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorFrom extracts the human-readable message from an error body,
// falling back to a generic localized message.
func (c *Client) errorFrom(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode, Message: genericErrorMessage}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Mesaj   string `json:"mesaj"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	switch {
	case body.Error != "":
		apiErr.Message = body.Error
	case body.Message != "":
		apiErr.Message = body.Message
	case body.Mesaj != "":
		apiErr.Message = body.Mesaj
	}
	return apiErr
}

// GetJSON performs an authenticated GET; 401 handling is transparent.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, true)
}

// PostJSON performs an authenticated POST; 401 handling is transparent.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out, true)
}
