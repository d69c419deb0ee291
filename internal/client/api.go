package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardsync/internal/model"
	"boardsync/internal/order"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func IsConflict(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// API is a thin REST client for the board server.
type API struct {
	base *url.URL
	http *http.Client
}

func NewAPI(serverURL string) (*API, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return nil, errors.New("client: empty server url")
	}
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("client: server url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &API{base: u, http: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (a *API) BaseURL() string { return a.base.String() }

// PlanResult mirrors the body of the plan, move and reindex routes.
type PlanResult struct {
	Plan     *order.Plan    `json:"plan,omitempty"`
	Entities []model.Entity `json:"entities"`
}

func (a *API) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	u := *a.base
	u.Path += path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(b, &e) != nil {
			e.Error = strings.TrimSpace(string(b))
		}
		return resp.StatusCode, APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

func (a *API) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var s model.Snapshot
	_, err := a.do(ctx, http.MethodGet, "/api/data", nil, &s)
	return s, err
}

func (a *API) CreateItem(ctx context.Context, in model.NewItem) (model.Item, error) {
	var it model.Item
	_, err := a.do(ctx, http.MethodPost, "/api/item", in, &it)
	return it, err
}

func (a *API) UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error) {
	var it model.Item
	_, err := a.do(ctx, http.MethodPut, "/api/item/"+url.PathEscape(id), p, &it)
	return it, err
}

func (a *API) DeleteItem(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodDelete, "/api/item/"+url.PathEscape(id), nil, nil)
	return err
}

func (a *API) CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error) {
	var f model.Folder
	_, err := a.do(ctx, http.MethodPost, "/api/folder", in, &f)
	return f, err
}

func (a *API) UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error) {
	var f model.Folder
	_, err := a.do(ctx, http.MethodPut, "/api/folder/"+url.PathEscape(id), p, &f)
	return f, err
}

func (a *API) DeleteFolder(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodDelete, "/api/folder/"+url.PathEscape(id), nil, nil)
	return err
}

// SubmitPlan sends a locally computed plan. The canonical result arrives as
// broadcasts, not in the response.
func (a *API) SubmitPlan(ctx context.Context, plan order.Plan) error {
	if plan.IsNoop() {
		return nil
	}
	_, err := a.do(ctx, http.MethodPost, "/api/plan", plan, nil)
	return err
}

// Move asks the server to plan and apply a drop against its latest state.
// ok is false when the server judged the drop a no-op.
func (a *API) Move(ctx context.Context, draggedID, overID string) (PlanResult, bool, error) {
	var res PlanResult
	status, err := a.do(ctx, http.MethodPost, "/api/move", map[string]string{"draggedId": draggedID, "overId": overID}, &res)
	if err != nil {
		return res, false, err
	}
	return res, status != http.StatusNoContent, nil
}

func (a *API) Reindex(ctx context.Context) (PlanResult, error) {
	var res PlanResult
	_, err := a.do(ctx, http.MethodPost, "/api/reindex", nil, &res)
	return res, err
}

type Health struct {
	OK          bool `json:"ok"`
	Subscribers int  `json:"subscribers"`
}

func (a *API) Health(ctx context.Context) (Health, error) {
	var h Health
	_, err := a.do(ctx, http.MethodGet, "/healthz", nil, &h)
	return h, err
}

// streamURL is the websocket endpoint derived from the base url.
func (a *API) streamURL() string {
	u := *a.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String()
}
