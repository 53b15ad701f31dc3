package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

// participantClient is the consented-user API surface bound to one session.
// It is intentionally cheap to construct; the authentication manager creates
// a fresh one whenever the bound session changes.
type participantClient struct {
	client  *Client
	session *studyauth.Session
}

var _ studyauth.ParticipantAPI = (*participantClient)(nil)

func (p *participantClient) token() string {
	if p.session == nil {
		return ""
	}
	return p.session.Token
}

func (p *participantClient) CreateConsentSignature(ctx context.Context, signature studyauth.ConsentSignature) error {
	path := fmt.Sprintf("/v3/subpopulations/%s/consents/signature", url.PathEscape(signature.SubpopulationGUID))
	body := map[string]any{
		"name":          signature.Name,
		"birthdate":     signature.Birthdate,
		"imageData":     signature.ImageData,
		"imageMimeType": signature.ImageMimeType,
		"scope":         signature.Scope,
	}
	return p.client.do(ctx, http.MethodPost, path, p.token(), body, nil)
}

func (p *participantClient) ConsentSignature(ctx context.Context, subpopulationGUID string) (*studyauth.ConsentSignature, error) {
	path := fmt.Sprintf("/v3/subpopulations/%s/consents/signature", url.PathEscape(subpopulationGUID))
	var payload struct {
		Name          string                 `json:"name"`
		Birthdate     string                 `json:"birthdate"`
		ImageData     []byte                 `json:"imageData"`
		ImageMimeType string                 `json:"imageMimeType"`
		Scope         studyauth.SharingScope `json:"scope"`
	}
	if err := p.client.do(ctx, http.MethodGet, path, p.token(), nil, &payload); err != nil {
		return nil, err
	}
	return &studyauth.ConsentSignature{
		SubpopulationGUID: subpopulationGUID,
		Name:              payload.Name,
		Birthdate:         payload.Birthdate,
		ImageData:         payload.ImageData,
		ImageMimeType:     payload.ImageMimeType,
		Scope:             payload.Scope,
	}, nil
}

func (p *participantClient) WithdrawAllConsents(ctx context.Context, reason string) error {
	return p.client.do(ctx, http.MethodPost, "/v3/consents/withdraw", p.token(), map[string]any{"reason": reason}, nil)
}

func (p *participantClient) WithdrawConsent(ctx context.Context, subpopulationGUID, reason string) error {
	path := fmt.Sprintf("/v3/subpopulations/%s/consents/signature/withdraw", url.PathEscape(subpopulationGUID))
	return p.client.do(ctx, http.MethodPost, path, p.token(), map[string]any{"reason": reason}, nil)
}

func (p *participantClient) RefreshSession(ctx context.Context) (*studyauth.Session, error) {
	var session studyauth.Session
	if err := p.client.do(ctx, http.MethodGet, "/v3/participants/self/session", p.token(), nil, &session); err != nil {
		return nil, err
	}
	p.client.recapture(&session)
	return &session, nil
}

func (p *participantClient) Participant(ctx context.Context) (*studyauth.Participant, error) {
	var participant studyauth.Participant
	if err := p.client.do(ctx, http.MethodGet, "/v3/participants/self", p.token(), nil, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (p *participantClient) UpdateParticipant(ctx context.Context, participant *studyauth.Participant) (*studyauth.Session, error) {
	var session studyauth.Session
	if err := p.client.do(ctx, http.MethodPost, "/v3/participants/self", p.token(), participant, &session); err != nil {
		return nil, err
	}
	p.client.recapture(&session)
	return &session, nil
}

func (p *participantClient) RequestUploadSession(ctx context.Context, name string, contentLength int64, contentMD5 string) (*studyauth.UploadSession, error) {
	body := map[string]any{
		"name":          name,
		"contentLength": contentLength,
		"contentMd5":    contentMD5,
		"contentType":   "application/zip",
	}
	var upload studyauth.UploadSession
	if err := p.client.do(ctx, http.MethodPost, "/v3/uploads", p.token(), body, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (p *participantClient) CompleteUpload(ctx context.Context, uploadID string) error {
	path := fmt.Sprintf("/v3/uploads/%s/complete", url.PathEscape(uploadID))
	return p.client.do(ctx, http.MethodPost, path, p.token(), nil, nil)
}

func (p *participantClient) ScheduledActivities(ctx context.Context, daysAhead int) ([]*studyauth.ScheduledActivity, error) {
	path := "/v3/activities?" + queryInt("daysAhead", daysAhead).Encode()
	var payload struct {
		Items []*studyauth.ScheduledActivity `json:"items"`
	}
	if err := p.client.do(ctx, http.MethodGet, path, p.token(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (p *participantClient) UpdateScheduledActivities(ctx context.Context, activities []*studyauth.ScheduledActivity) error {
	return p.client.do(ctx, http.MethodPost, "/v3/activities", p.token(), activities, nil)
}
