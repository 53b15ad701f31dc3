package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/studykit/pkg/logger"
	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

const (
	headerSession   = "Study-Session"
	headerRequestID = "X-Request-ID"
)

// Client implements studyauth.NetworkTransport against the study server's
// REST API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *slog.Logger

	mu       sync.RWMutex
	sessions map[string]cachedSession
}

var _ studyauth.NetworkTransport = (*Client)(nil)

type cachedSession struct {
	studyID string
	session *studyauth.Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger for request diagnostics. Logging is discarded
// by default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a transport for the server named in cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.ClientInfo,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        logger.NewDiscard(),
		sessions:   make(map[string]cachedSession),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// --- auth operations ---

func (c *Client) SignUp(ctx context.Context, signUp studyauth.SignUp) error {
	return c.do(ctx, http.MethodPost, "/v3/auth/signUp", "", signUp, nil)
}

func (c *Client) SignIn(ctx context.Context, studyID, email, password string) (*studyauth.Session, error) {
	body := map[string]any{"study": studyID, "email": email, "password": password}
	return c.signIn(ctx, "/v3/auth/signIn", studyID, body)
}

func (c *Client) SignInViaEmailLink(ctx context.Context, studyID, email, token string) (*studyauth.Session, error) {
	body := map[string]any{"study": studyID, "email": email, "token": token}
	return c.signIn(ctx, "/v3/auth/email/signIn", studyID, body)
}

func (c *Client) SignInViaPhoneLink(ctx context.Context, studyID string, phone studyauth.Phone, token string) (*studyauth.Session, error) {
	body := map[string]any{"study": studyID, "phone": phone, "token": token}
	return c.signIn(ctx, "/v3/auth/phone/signIn", studyID, body)
}

// signIn posts the request and captures the issued session, including the one
// attached to a consent-required rejection, so later session queries can be
// answered from cache.
func (c *Client) signIn(ctx context.Context, path, studyID string, body any) (*studyauth.Session, error) {
	var session studyauth.Session
	err := c.do(ctx, http.MethodPost, path, "", body, &session)
	if err != nil {
		if consentErr, ok := studyauth.AsConsentRequired(err); ok {
			c.capture(studyID, consentErr.Session)
		}
		return nil, err
	}
	c.capture(studyID, &session)
	return &session, nil
}

func (c *Client) SignOut(ctx context.Context, session *studyauth.Session) error {
	if session == nil {
		return ErrNilSession
	}
	c.evict(session)
	return c.do(ctx, http.MethodPost, "/v3/auth/signOut", session.Token, nil, nil)
}

func (c *Client) RequestResetPassword(ctx context.Context, studyID, email string) error {
	body := map[string]any{"study": studyID, "email": email}
	return c.do(ctx, http.MethodPost, "/v3/auth/requestResetPassword", "", body, nil)
}

func (c *Client) ResendEmailVerification(ctx context.Context, studyID, email string) error {
	body := map[string]any{"study": studyID, "email": email}
	return c.do(ctx, http.MethodPost, "/v3/auth/resendEmailVerification", "", body, nil)
}

func (c *Client) RequestEmailSignIn(ctx context.Context, studyID, email string) error {
	body := map[string]any{"study": studyID, "email": email}
	return c.do(ctx, http.MethodPost, "/v3/auth/email", "", body, nil)
}

func (c *Client) RequestPhoneSignIn(ctx context.Context, studyID string, phone studyauth.Phone) error {
	body := map[string]any{"study": studyID, "phone": phone}
	return c.do(ctx, http.MethodPost, "/v3/auth/phone", "", body, nil)
}

func (c *Client) CachedSession(studyID string, creds studyauth.Credentials) (*studyauth.Session, bool) {
	key := identityKey(creds.Email, creds.Phone)
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.sessions[key]
	if !ok || entry.studyID != studyID {
		return nil, false
	}
	return entry.session, true
}

func (c *Client) ParticipantClient(session *studyauth.Session) studyauth.ParticipantAPI {
	return &participantClient{client: c, session: session}
}

// capture remembers a session under its identity so CachedSession can serve
// it later.
func (c *Client) capture(studyID string, session *studyauth.Session) {
	if session == nil {
		return
	}
	key := identityKey(session.Email, session.Phone)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[key] = cachedSession{studyID: studyID, session: session}
}

// recapture refreshes an already-cached identity with a reissued session,
// keeping the study association of the original entry.
func (c *Client) recapture(session *studyauth.Session) {
	if session == nil {
		return
	}
	key := identityKey(session.Email, session.Phone)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.sessions[key]; ok {
		entry.session = session
		c.sessions[key] = entry
	}
}

func (c *Client) evict(session *studyauth.Session) {
	key := identityKey(session.Email, session.Phone)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
}

func identityKey(email string, phone *studyauth.Phone) string {
	if email != "" {
		return "email:" + email
	}
	if phone != nil {
		return "phone:" + phone.RegionCode + phone.Number
	}
	return ""
}

// --- wire plumbing ---

func (c *Client) do(ctx context.Context, method, path, sessionToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set(headerSession, sessionToken)
	}

	c.log.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("path", path),
		logger.RequestID(requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := c.decodeError(resp)
		c.log.DebugContext(ctx, "api error response",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			logger.RequestID(requestID),
		)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusPreconditionFailed:
		// The server rejects the sign-in but still issues a session; it
		// rides along in the response body.
		var session studyauth.Session
		if err := json.Unmarshal(data, &session); err != nil || session.Token == "" {
			return &studyauth.ConsentRequiredError{}
		}
		return &studyauth.ConsentRequiredError{Session: &session}
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", studyauth.ErrNotAuthenticated, serverMessage(data))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", studyauth.ErrEntityNotFound, serverMessage(data))
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(data)}
	}
}

func serverMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return "request failed"
}

func queryInt(name string, value int) url.Values {
	q := url.Values{}
	q.Set(name, fmt.Sprintf("%d", value))
	return q
}
