package uploads

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/studykit/pkg/async"
	"github.com/dmitrymomot/studykit/pkg/logger"
	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

const archiveContentType = "application/zip"

// Sink delivers archive bytes to the storage destination named by an upload
// grant.
type Sink interface {
	Deliver(ctx context.Context, grant *studyauth.UploadSession, name, contentMD5 string, data []byte) error
}

// Manager runs the three-step upload protocol: request a grant, deliver the
// bytes, confirm completion. It is safe for concurrent use.
type Manager struct {
	api        studyauth.ParticipantAPI
	sink       Sink
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSink replaces the delivery sink. The default PUTs to the grant's
// pre-signed URL.
func WithSink(sink Sink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithHTTPClient replaces the HTTP client used by the default pre-signed
// sink. It has no effect on a sink installed via WithSink.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(m *Manager) {
		if httpClient != nil {
			m.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates an upload manager on top of the given participant API. Pass the
// authentication manager's proxy so uploads keep working across re-binds.
func New(api studyauth.ParticipantAPI, opts ...Option) (*Manager, error) {
	if api == nil {
		return nil, ErrNilAPI
	}

	m := &Manager{
		api:        api,
		httpClient: http.DefaultClient,
		log:        logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sink == nil {
		m.sink = &presignedSink{httpClient: m.httpClient}
	}
	return m, nil
}

// Upload delivers one archive and returns the server's upload identifier.
// The archive bytes are hashed so storage can verify integrity on receipt.
func (m *Manager) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if len(data) == 0 {
		return "", ErrEmptyArchive
	}

	sum := md5.Sum(data)
	contentMD5 := base64.StdEncoding.EncodeToString(sum[:])

	grant, err := m.api.RequestUploadSession(ctx, name, int64(len(data)), contentMD5)
	if err != nil {
		return "", fmt.Errorf("request upload grant: %w", err)
	}

	m.log.DebugContext(ctx, "upload grant issued",
		logger.UploadID(grant.ID),
		slog.String("name", name),
		slog.Int("size", len(data)),
	)

	if err := m.sink.Deliver(ctx, grant, name, contentMD5, data); err != nil {
		return "", fmt.Errorf("deliver archive: %w", err)
	}

	if err := m.api.CompleteUpload(ctx, grant.ID); err != nil {
		return "", fmt.Errorf("complete upload %s: %w", grant.ID, err)
	}

	m.log.InfoContext(ctx, "archive uploaded", logger.UploadID(grant.ID), slog.String("name", name))
	return grant.ID, nil
}

// UploadAsync runs Upload in the background and returns a future resolving to
// the upload identifier.
func (m *Manager) UploadAsync(ctx context.Context, name string, data []byte) *async.Future[string] {
	return async.Async(ctx, name, func(ctx context.Context, name string) (string, error) {
		return m.Upload(ctx, name, data)
	})
}

// presignedSink PUTs the archive to the grant's pre-signed URL.
type presignedSink struct {
	httpClient *http.Client
}

func (s *presignedSink) Deliver(ctx context.Context, grant *studyauth.UploadSession, _, contentMD5 string, data []byte) error {
	if grant == nil || grant.URL == "" {
		return ErrInvalidGrant
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", archiveContentType)
	req.Header.Set("Content-MD5", contentMD5)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}
	return nil
}
