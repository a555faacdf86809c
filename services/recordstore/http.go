package recordsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

var _ record.Store = (*Client)(nil)

type (
	// Client reads committed records from the remote store. Entities may
	// arrive with server-computed overlay hints; they are passed through
	// untouched for the merger to honor.
	Client struct {
		baseURL string
		client  *http.Client
		sess    core.Session
	}

	listResponse struct {
		Results []record.Entity `json:"results"`
	}
)

func NewClient(conf *core.Config, sess core.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.Ledger.RecordsBaseURL, "/"),
		client:  &http.Client{Timeout: conf.Ledger.RequestTimeout},
		sess:    sess,
	}
}

func (c *Client) GetEntity(ctx context.Context, mt change.ModelType, id string) (record.Entity, error) {
	u := fmt.Sprintf("%s/v1/records/%s/%s/", c.baseURL, url.PathEscape(string(mt)), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return record.Entity{}, errors.Wrap(err, "building request")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return record.Entity{}, core.NewNetworkError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return record.Entity{}, record.ErrNotFound
	default:
		return record.Entity{}, errors.Errorf("record store returned %s", resp.Status)
	}

	var ent record.Entity
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return record.Entity{}, errors.Wrap(err, "decoding entity")
	}
	if ent.Type == "" {
		ent.Type = mt
	}
	return ent, nil
}

func (c *Client) ListEntities(ctx context.Context, mt change.ModelType, q record.ScopeQuery) ([]record.Entity, error) {
	query := make(url.Values)
	if q.ClassID > 0 {
		query.Set("class_id", strconv.Itoa(q.ClassID))
	}
	if q.Gender != "" {
		query.Set("gender", q.Gender)
	}
	u := fmt.Sprintf("%s/v1/records/%s/", c.baseURL, url.PathEscape(string(mt)))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("record store returned %s", resp.Status)
	}
	var res listResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.Wrap(err, "decoding entities")
	}
	for i := range res.Results {
		if res.Results[i].Type == "" {
			res.Results[i].Type = mt
		}
	}
	return res.Results, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	}
}
