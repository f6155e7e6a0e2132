package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jyothri/mailpilot/model"
)

var ErrUnauthenticated = errors.New("not authenticated; run `mailpilot login`")

// APIError is a non-2xx answer from the mailpilot server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// API is a thin client of the mailpilot REST surface, authenticated with a
// session key.
type API struct {
	baseUrl    string
	sessionKey string
	httpClient *http.Client
}

func NewAPI(baseUrl, sessionKey string) *API {
	return &API{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		sessionKey: sessionKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *API) BaseUrl() string    { return a.baseUrl }
func (a *API) SessionKey() string { return a.sessionKey }

type ListParams struct {
	Label      string
	Query      string
	MaxResults int64
	PageToken  string
}

type Page struct {
	Messages      []model.EmailSummary `json:"messages"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type SendResult struct {
	Id       string `json:"id"`
	ThreadId string `json:"threadId"`
}

type WatchResult struct {
	Topic      string `json:"topic,omitempty"`
	HistoryId  string `json:"historyId"`
	Expiration string `json:"expiration"`
}

type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (a *API) ListMessages(ctx context.Context, params ListParams) (Page, error) {
	query := url.Values{}
	if params.Label != "" {
		query.Set("label", params.Label)
	}
	if params.Query != "" {
		query.Set("q", params.Query)
	}
	if params.MaxResults > 0 {
		query.Set("maxResults", strconv.FormatInt(params.MaxResults, 10))
	}
	if params.PageToken != "" {
		query.Set("pageToken", params.PageToken)
	}
	var page Page
	if err := a.do(ctx, http.MethodGet, "/api/gmail/messages?"+query.Encode(), nil, &page); err != nil {
		return Page{}, err
	}
	if page.Messages == nil {
		page.Messages = []model.EmailSummary{}
	}
	return page, nil
}

func (a *API) GetMessage(ctx context.Context, id string) (model.EmailDetail, error) {
	var detail model.EmailDetail
	err := a.do(ctx, http.MethodGet, "/api/gmail/messages/"+url.PathEscape(id), nil, &detail)
	return detail, err
}

func (a *API) Send(ctx context.Context, draft model.ComposeData) (SendResult, error) {
	var result SendResult
	err := a.do(ctx, http.MethodPost, "/api/gmail/send", draft, &result)
	return result, err
}

func (a *API) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	body := map[string][]string{"addLabelIds": add, "removeLabelIds": remove}
	return a.do(ctx, http.MethodPost, "/api/gmail/messages/"+url.PathEscape(id)+"/modify", body, nil)
}

func (a *API) Watch(ctx context.Context, topic string) (WatchResult, error) {
	var result WatchResult
	err := a.do(ctx, http.MethodPost, "/api/gmail/watch", map[string]string{"topic": topic}, &result)
	return result, err
}

// WatchStatus returns the subscription the server last recorded. A mailbox
// that was never watched answers with a NOT_FOUND APIError.
func (a *API) WatchStatus(ctx context.Context) (WatchResult, error) {
	var result WatchResult
	err := a.do(ctx, http.MethodGet, "/api/gmail/watch", nil, &result)
	return result, err
}

func (a *API) Me(ctx context.Context) (Identity, error) {
	var identity Identity
	err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, &identity)
	return identity, err
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (a *API) do(ctx context.Context, method string, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseUrl+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.sessionKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.sessionKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope errorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, path, err)
	}
	return nil
}
