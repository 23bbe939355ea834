package gcs

import (
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

	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/storage"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	pingTimeout     = 5 * time.Second
	listPageSize    = 1000
)

// Client talks to the GCS JSON API for a single bucket.
type Client struct {
	httpClient    *http.Client
	defaultBucket string
	endpoint      string
	tokenSource   *tokenSource
}

var _ storage.Store = (*Client)(nil)

type objectResource struct {
	Name        string    `json:"name"`
	Size        string    `json:"size"`
	ContentType string    `json:"contentType"`
	ETag        string    `json:"etag"`
	Updated     time.Time `json:"updated"`
}

func (o objectResource) info() storage.ObjectInfo {
	size, _ := strconv.ParseInt(o.Size, 10, 64)
	return storage.ObjectInfo{
		Key:         o.Name,
		Size:        size,
		ContentType: o.ContentType,
		ETag:        o.ETag,
		UploadedAt:  o.Updated,
	}
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	// No client-wide timeout: media downloads stream for as long as the
	// caller keeps reading. Header waits are bounded by the transport.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}
	httpClient := &http.Client{Transport: transport}

	ts, err := newTokenSource(httpClient, gcp)
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:    httpClient,
		defaultBucket: cfg.BucketName,
		endpoint:      defaultEndpoint,
		tokenSource:   ts,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}

	return client, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.objectsURL()+"?maxResults=1", nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check failed", resp)
	}
	return nil
}

// Put uploads body as a single media request, replacing any existing object.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", key)
	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.endpoint, url.PathEscape(c.defaultBucket), q.Encode())

	resp, err := c.do(ctx, http.MethodPost, u, body, func(req *http.Request) {
		req.Header.Set("Content-Type", contentType)
		if size >= 0 {
			req.ContentLength = size
		}
	})
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return storage.ObjectInfo{}, statusError("gcs upload failed", resp)
	}
	var obj objectResource
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("decode upload response: %w", err)
	}
	return obj.info(), nil
}

func (c *Client) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(key), nil, nil)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	default:
		return storage.ObjectInfo{}, statusError("gcs stat failed", resp)
	}
	var obj objectResource
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("decode object metadata: %w", err)
	}
	return obj.info(), nil
}

// Open streams object bytes. The caller closes the returned body.
func (c *Client) Open(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(key)+"?alt=media", nil, func(req *http.Request) {
		if offset > 0 || length >= 0 {
			req.Header.Set("Range", byteRange(offset, length))
		}
	})
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, storage.ErrObjectNotFound
	default:
		defer resp.Body.Close()
		return nil, statusError("gcs download failed", resp)
	}
}

func (c *Client) List(ctx context.Context, limit int) ([]storage.ObjectInfo, error) {
	var (
		out       []storage.ObjectInfo
		pageToken string
	)
	for {
		pageSize := listPageSize
		if limit > 0 && limit-len(out) < pageSize {
			pageSize = limit - len(out)
		}
		q := url.Values{}
		q.Set("maxResults", strconv.Itoa(pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		page, err := c.listPage(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			out = append(out, item.info())
		}
		pageToken = page.NextPageToken
		if pageToken == "" || (limit > 0 && len(out) >= limit) {
			break
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type listResponse struct {
	Items         []objectResource `json:"items"`
	NextPageToken string           `json:"nextPageToken"`
}

func (c *Client) listPage(ctx context.Context, q url.Values) (*listResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectsURL()+"?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("gcs list failed", resp)
	}
	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return &page, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.objectURL(key), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusError("gcs delete failed", resp)
	}
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, mutate func(*http.Request)) (*http.Response, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if mutate != nil {
		mutate(req)
	}
	return c.httpClient.Do(req)
}

func (c *Client) objectsURL() string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o", c.endpoint, url.PathEscape(c.defaultBucket))
}

func (c *Client) objectURL(key string) string {
	return c.objectsURL() + "/" + url.PathEscape(key)
}

func byteRange(offset, length int64) string {
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

func statusError(prefix string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("%s: %s: %s", prefix, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("%s: %s", prefix, resp.Status)
}
