package ledgersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
)

var _ change.Ledger = (*Client)(nil)

type (
	// Client talks to the remote change-request ledger over HTTP. The session
	// is injected; the client never reads ambient credential storage.
	Client struct {
		baseURL string
		client  *http.Client
		sess    core.Session
	}

	pendingResponse struct {
		Count    int                    `json:"count"`
		Requests []change.ChangeRequest `json:"pending_requests"`
	}
	approvedResponse struct {
		Requests []change.ChangeRequest `json:"approved_requests"`
	}
	rejectedResponse struct {
		Requests []change.ChangeRequest `json:"rejected_requests"`
	}
	errorResponse struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
)

func NewClient(conf *core.Config, sess core.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.Ledger.BaseURL, "/"),
		client:  &http.Client{Timeout: conf.Ledger.RequestTimeout},
		sess:    sess,
	}
}

func (c *Client) ListPending(ctx context.Context, types ...change.ModelType) ([]change.ChangeRequest, error) {
	var res pendingResponse
	if err := c.get(ctx, "/v1/change-requests/pending/", typeQuery(types, nil), &res); err != nil {
		return nil, err
	}
	return res.Requests, nil
}

func (c *Client) ListApproved(ctx context.Context, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	var res approvedResponse
	if err := c.get(ctx, "/v1/change-requests/approved/", typeQuery(types, &since), &res); err != nil {
		return nil, err
	}
	return res.Requests, nil
}

func (c *Client) ListRejected(ctx context.Context, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	var res rejectedResponse
	if err := c.get(ctx, "/v1/change-requests/rejected/", typeQuery(types, &since), &res); err != nil {
		return nil, err
	}
	return res.Requests, nil
}

// Submit posts a new change request. The ledger's supersede rule applies
// server-side; a 409 maps to core.ConflictError for callers that care.
func (c *Client) Submit(ctx context.Context, ncr change.NewChangeRequest) (change.ChangeRequest, error) {
	body, err := json.Marshal(ncr)
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/change-requests/", bytes.NewReader(body))
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return change.ChangeRequest{}, core.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return change.ChangeRequest{}, decodeError(resp)
	}
	var cr change.ChangeRequest
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "decoding response")
	}
	return cr, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return core.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	}
}

func typeQuery(types []change.ModelType, since *change.Cursor) url.Values {
	q := make(url.Values)
	for _, mt := range types {
		q.Add("model_type", string(mt))
	}
	if since != nil && since.Seq > 0 {
		q.Set("since", strconv.FormatInt(since.Seq, 10))
	}
	return q
}

func decodeError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusConflict:
		return core.NewConflictError(errors.New(nonEmpty(body.Error, "change request conflict")))
	case http.StatusBadRequest:
		flds := make([]core.FieldError, 0, len(body.Fields))
		for name, msg := range body.Fields {
			flds = append(flds, core.FieldError{Field: name, Error: msg})
		}
		return core.NewValidationError(errors.New(nonEmpty(body.Error, "invalid request")), flds...)
	}
	return errors.Errorf("ledger returned %s: %s", resp.Status, body.Error)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
