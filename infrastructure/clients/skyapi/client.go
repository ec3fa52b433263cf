package skyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/logger"

	"github.com/golang-jwt/jwt"
	"github.com/google/go-querystring/query"
)

// Config holds the remote service endpoint and limits.
type Config struct {
	ServiceURL string
	HTTPClient *http.Client
}

// Client talks XRPC over HTTP to the remote publish API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a remote API client.
func NewClient(cfg *Config) repository.ISocial {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.ServiceURL, "/"),
		http:    hc,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type sessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

func (c *Client) Login(ctx context.Context, identifier, secret string) (*model.Session, model.AccountStatus, error) {
	body := map[string]string{"identifier": identifier, "password": secret}
	var out sessionResponse
	if err := c.postJSON(ctx, "com.atproto.server.createSession", "", body, &out); err != nil {
		status := model.StatusPlatformOutage
		var re *model.RemoteError
		if errors.As(err, &re) {
			status = loginStatus(re)
		}
		return nil, status, err
	}
	return &model.Session{
		DID:        out.DID,
		Handle:     out.Handle,
		AccessJWT:  out.AccessJwt,
		RefreshJWT: out.RefreshJwt,
	}, model.StatusOk, nil
}

// loginStatus narrows a typed login failure into an account status. Credential
// rejections on createSession come back as AuthenticationRequired or a 401
// with no recognized code.
func loginStatus(re *model.RemoteError) model.AccountStatus {
	switch re.Code {
	case "AccountTakedown":
		return model.StatusTakenDown
	case "AuthenticationRequired", "InvalidRequest":
		return model.StatusInvalidCredentials
	}
	msg := strings.ToLower(re.Msg)
	switch {
	case strings.Contains(msg, "suspended"):
		return model.StatusSuspended
	case strings.Contains(msg, "deactivated"):
		return model.StatusDeactivated
	case strings.Contains(msg, "password"), strings.Contains(msg, "identifier"):
		return model.StatusInvalidCredentials
	}
	return re.Status
}

type createRecordRequest struct {
	Repo       string      `json:"repo"`
	Collection string      `json:"collection"`
	Record     interface{} `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (c *Client) SubmitPost(ctx context.Context, s *model.Session, post *model.OutboundPost) (*model.RecordRef, error) {
	rec, err := buildPostRecord(post)
	if err != nil {
		return nil, err
	}
	req := createRecordRequest{Repo: s.DID, Collection: collectionPost, Record: rec}
	var out createRecordResponse
	if err := c.postJSON(ctx, "com.atproto.repo.createRecord", s.AccessJWT, req, &out); err != nil {
		return nil, err
	}
	return &model.RecordRef{URI: out.URI, CID: out.CID}, nil
}

type uploadBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

func (c *Client) UploadBlob(ctx context.Context, s *model.Session, data []byte, mimeType string) (model.BlobRef, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mimeType)
	httpReq.Header.Set("Authorization", "Bearer "+s.AccessJWT)

	var out uploadBlobResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return model.BlobRef(out.Blob), nil
}

func (c *Client) Repost(ctx context.Context, s *model.Session, subject model.RecordRef) (*model.RecordRef, error) {
	rec := repostRecord{
		Type:      typeRepost,
		Subject:   recordRef{URI: subject.URI, CID: subject.CID},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	req := createRecordRequest{Repo: s.DID, Collection: collectionRepost, Record: rec}
	var out createRecordResponse
	if err := c.postJSON(ctx, "com.atproto.repo.createRecord", s.AccessJWT, req, &out); err != nil {
		return nil, err
	}
	return &model.RecordRef{URI: out.URI, CID: out.CID}, nil
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}

func (c *Client) UndoRepost(ctx context.Context, s *model.Session, uri string) error {
	repo, collection, rkey, err := SplitRecordURI(uri)
	if err != nil {
		return err
	}
	req := deleteRecordRequest{Repo: repo, Collection: collection, RKey: rkey}
	return c.postJSON(ctx, "com.atproto.repo.deleteRecord", s.AccessJWT, req, nil)
}

type resolveHandleParams struct {
	Handle string `url:"handle"`
}

type resolveHandleResponse struct {
	DID string `json:"did"`
}

func (c *Client) ResolveHandle(ctx context.Context, s *model.Session, handle string) (string, error) {
	var out resolveHandleResponse
	err := c.getJSON(ctx, "com.atproto.identity.resolveHandle", s.AccessJWT, resolveHandleParams{Handle: handle}, &out)
	if err != nil {
		return "", err
	}
	return out.DID, nil
}

type getRecordParams struct {
	Repo       string `url:"repo"`
	Collection string `url:"collection"`
	RKey       string `url:"rkey"`
}

type getRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (c *Client) GetRecordCID(ctx context.Context, s *model.Session, repo, collection, rkey string) (string, error) {
	var out getRecordResponse
	params := getRecordParams{Repo: repo, Collection: collection, RKey: rkey}
	if err := c.getJSON(ctx, "com.atproto.repo.getRecord", s.AccessJWT, params, &out); err != nil {
		return "", err
	}
	return out.CID, nil
}

// SplitRecordURI splits at://repo/collection/rkey.
func SplitRecordURI(uri string) (repo, collection, rkey string, err error) {
	trimmed := strings.TrimPrefix(uri, "at://")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 || trimmed == uri {
		return "", "", "", fmt.Errorf("malformed record uri: %s", uri)
	}
	return parts[0], parts[1], parts[2], nil
}

// SessionExpired reports whether the session's access token has passed its
// expiry claim. The token is inspected without signature verification; only
// the server can verify it, we just avoid reusing a token we know is dead.
func SessionExpired(s *model.Session) bool {
	if s == nil || s.AccessJWT == "" {
		return true
	}
	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(s.AccessJWT, claims); err != nil {
		return true
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return false
	}
	return time.Now().After(time.Unix(int64(exp), 0))
}

func (c *Client) postJSON(ctx context.Context, method, accessJWT string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/xrpc/"+method, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if accessJWT != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessJWT)
	}
	return c.do(httpReq, out)
}

func (c *Client) getJSON(ctx context.Context, method, accessJWT string, params, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/xrpc/"+method+"?"+values.Encode(), nil)
	if err != nil {
		return err
	}
	if accessJWT != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessJWT)
	}
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return &model.RemoteError{Status: model.StatusPlatformOutage, Msg: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &model.RemoteError{Status: model.StatusPlatformOutage, Msg: err.Error()}
	}
	if res.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		re := classify(res.StatusCode, eb)
		logger.GetLogger().
			WithField("status", res.StatusCode).
			WithField("code", eb.Error).
			WithField("method", req.URL.Path).
			Debug("Remote call failed")
		return re
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// classify maps a remote error response onto the pipeline's status taxonomy.
func classify(httpStatus int, eb errorBody) *model.RemoteError {
	status := model.StatusUnhandled
	switch {
	case eb.Error == "AccountTakedown":
		status = model.StatusTakenDown
	case eb.Error == "AuthenticationRequired" || eb.Error == "ExpiredToken" || eb.Error == "InvalidToken":
		status = model.StatusInvalidCredentials
	case eb.Error == "BlobTooLarge" || eb.Error == "PayloadTooLarge" || httpStatus == http.StatusRequestEntityTooLarge:
		status = model.StatusMediaTooLarge
	case httpStatus >= 500 || httpStatus == http.StatusTooManyRequests:
		status = model.StatusPlatformOutage
	}
	return &model.RemoteError{Status: status, Code: eb.Error, Msg: eb.Message}
}
