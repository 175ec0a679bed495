package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bind-labs/backend/internal/application/server"
	"github.com/bind-labs/backend/internal/discovery"
	"github.com/bind-labs/backend/internal/entity"
)

const (
	feedsCRUDPath    string = "/feeds"
	refreshFeedsPath string = "/refreshFeeds"
)

// TODO: WithTimeout?
// New creates Feeds API http client
func New(baseURL string) (*client, error) {
	url, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &client{
		baseURL: url,
		httpClient: &http.Client{
			Timeout: time.Minute,
		}}, nil
}

// TODO: add logger
type client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func (c *client) GetFeedByID(ctx context.Context, id int64) (entity.Feed, error) {
	rel := &url.URL{Path: fmt.Sprintf("%s/%d", feedsCRUDPath, id)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return entity.Feed{}, err
	}
	req = req.WithContext(ctx)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return entity.Feed{}, err
	}
	if res != nil {
		defer func() {
			ce := res.Body.Close()
			if ce != nil {
				err = ce
			}
		}()
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusBadRequest {
		var errRes server.ErrResponseBody
		if err = json.NewDecoder(res.Body).Decode(&errRes); err == nil {
			return entity.Feed{}, errors.New(errRes.ErrorText)
		}

		return entity.Feed{}, fmt.Errorf("unknown error, status code: %d", res.StatusCode)
	}
	feed := entity.Feed{}
	if err = json.NewDecoder(res.Body).Decode(&feed); err != nil {
		return entity.Feed{}, err
	}
	return feed, nil
}

func (c *client) GetAllFeeds(ctx context.Context) ([]entity.Feed, error) {
	rel := &url.URL{Path: feedsCRUDPath}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusBadRequest {
		var errRes server.ErrResponseBody
		if err = json.NewDecoder(res.Body).Decode(&errRes); err == nil {
			return nil, errors.New(errRes.ErrorText)
		}

		return nil, fmt.Errorf("unknown error, status code: %d", res.StatusCode)
	}
	feeds := []entity.Feed{}
	if err = json.NewDecoder(res.Body).Decode(&feeds); err != nil {
		return []entity.Feed{}, err
	}
	return feeds, nil
}

// CreateFeed bootstraps a new feed from its link and returns the stored record
func (c *client) CreateFeed(ctx context.Context, feedURL string) (entity.Feed, error) {
	body, err := json.Marshal(server.CreateFeedRequestBody{Link: feedURL})
	if err != nil {
		return entity.Feed{}, err
	}
	rel := &url.URL{Path: feedsCRUDPath}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return entity.Feed{}, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return entity.Feed{}, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusCreated {
		feed := entity.Feed{}
		if err = json.NewDecoder(res.Body).Decode(&feed); err != nil {
			return entity.Feed{}, err
		}
		return feed, nil
	}
	// handle error
	var errRes server.ErrResponseBody
	if err = json.NewDecoder(res.Body).Decode(&errRes); err == nil {
		return entity.Feed{}, errors.New(errRes.ErrorText)
	}
	return entity.Feed{}, fmt.Errorf("unknown error, status code: %d, message: %v", res.StatusCode, res.Status)
}

// DiscoverFeeds returns feed links advertised by an HTML page
func (c *client) DiscoverFeeds(ctx context.Context, pageURL string) ([]discovery.FeedInformation, error) {
	body, err := json.Marshal(server.DiscoverFeedsRequestBody{Link: pageURL})
	if err != nil {
		return nil, err
	}
	rel := &url.URL{Path: feedsCRUDPath + "/discover"}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusBadRequest {
		var errRes server.ErrResponseBody
		if err = json.NewDecoder(res.Body).Decode(&errRes); err == nil {
			return nil, errors.New(errRes.ErrorText)
		}
		return nil, fmt.Errorf("unknown error, status code: %d", res.StatusCode)
	}
	feeds := []discovery.FeedInformation{}
	if err = json.NewDecoder(res.Body).Decode(&feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// RefreshFeed requests an immediate refresh of single feed
func (c *client) RefreshFeed(ctx context.Context, id int64) error {
	rel := &url.URL{Path: fmt.Sprintf("%s/%d", refreshFeedsPath, id)}
	return c.refresh(ctx, rel)
}

// RefreshAllFeeds requests refresh of all feeds
func (c *client) RefreshAllFeeds(ctx context.Context) error {
	rel := &url.URL{Path: refreshFeedsPath}
	return c.refresh(ctx, rel)
}

func (c *client) refresh(ctx context.Context, rel *url.URL) error {
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequest("PUT", u.String(), nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNoContent {
		return nil
	}
	// handle error
	var errRes server.ErrResponseBody
	if err = json.NewDecoder(res.Body).Decode(&errRes); err == nil {
		return errors.New(errRes.ErrorText)
	}
	return fmt.Errorf("unknown error, status code: %d, message: %v", res.StatusCode, res.Status)
}
