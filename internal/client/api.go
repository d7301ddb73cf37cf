package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"unisell/server/internal/models"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the messaging API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("messaging api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("messaging api: %s (status %d)", e.Message, e.StatusCode)
}

// Unauthorized reports whether the session must be re-established
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Transport is the subset of the messaging API the Messenger drives
type Transport interface {
	Send(ctx context.Context, receiverID, content, clientID string) (*models.Message, error)
	Thread(ctx context.Context, counterpartID string) ([]models.Message, *models.Account, error)
	Conversations(ctx context.Context) ([]models.Conversation, error)
	MarkRead(ctx context.Context, counterpartID string) (int64, error)
}

// API talks to the messaging endpoints over HTTP
type API struct {
	http *resty.Client
}

// NewAPI creates a client for baseURL authenticating with a session token
func NewAPI(baseURL, token string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &API{http: c}
}

type errorBody struct {
	Message string `json:"message"`
}

func (a *API) do(ctx context.Context, method, path string, body, result interface{}) error {
	var apiErr errorBody
	req := a.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	return nil
}

func (a *API) Send(ctx context.Context, receiverID, content, clientID string) (*models.Message, error) {
	var out struct {
		Data models.Message `json:"data"`
	}
	req := models.SendMessageRequest{ReceiverID: receiverID, Content: content, ClientID: clientID}
	if err := a.do(ctx, http.MethodPost, "/api/messages", req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (a *API) Thread(ctx context.Context, counterpartID string) ([]models.Message, *models.Account, error) {
	var out struct {
		Messages    []models.Message `json:"messages"`
		Counterpart *models.Account  `json:"counterpart"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(counterpartID), nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Messages, out.Counterpart, nil
}

func (a *API) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (a *API) MarkRead(ctx context.Context, counterpartID string) (int64, error) {
	var out struct {
		Data struct {
			UpdatedCount int64 `json:"updatedCount"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodPut, "/api/messages/read/"+url.PathEscape(counterpartID), nil, &out); err != nil {
		return 0, err
	}
	return out.Data.UpdatedCount, nil
}
