// Package fieldapi talks to the dispatch backend: login, load lists and
// delivery details. Photo batches go through internal/upload.
package fieldapi

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
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fieldops/internal/model"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "fieldops-client"

	// LoginSuccessMessage is the only message the backend sends for accepted credentials.
	LoginSuccessMessage = "Login successful"
	fetchConcurrency    = 3
)

var (
	ErrBadCredentials     = errors.New("incorrect username or password")
	ErrUnexpectedResponse = errors.New("unexpected server response")
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s failed (%d)", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed (%d): %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if raw == "" {
		return nil, errors.New("server url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// Endpoint resolves a backend path such as "/photos" against the base URL.
func (c *Client) Endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string   `json:"message"`
	DriverID  model.ID `json:"drv_Id"`
	CarrierID model.ID `json:"carrId"`
}

// Login exchanges credentials for the driver and carrier identifiers.
func (c *Client) Login(ctx context.Context, username, password string) (model.Driver, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return model.Driver{}, errors.New("username and password are required")
	}
	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/login", nil, loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return model.Driver{}, ErrBadCredentials
		}
		return model.Driver{}, err
	}
	if resp.Message != LoginSuccessMessage {
		return model.Driver{}, ErrBadCredentials
	}
	driver := model.Driver{DriverID: resp.DriverID, CarrierID: resp.CarrierID}
	if !driver.Valid() {
		return model.Driver{}, fmt.Errorf("%w: login response missing driver or carrier id", ErrUnexpectedResponse)
	}
	c.logger.Info("driver logged in", zap.String("driver", driver.DriverID.String()), zap.String("carrier", driver.CarrierID.String()))
	return driver, nil
}

// Loads lists the driver's loads in one status.
func (c *Client) Loads(ctx context.Context, driver model.Driver, status model.LoadStatus) ([]model.Load, error) {
	if !driver.Valid() {
		return nil, errors.New("not logged in")
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid load status %d", int(status))
	}
	q := url.Values{}
	q.Set("status", status.String())
	q.Set("drv_Id", driver.DriverID.String())
	q.Set("carrId", driver.CarrierID.String())

	var loads []model.Load
	if err := c.doJSON(ctx, http.MethodGet, "/loads", q, nil, &loads); err != nil {
		return nil, fmt.Errorf("fetch %s loads: %w", status, err)
	}
	if loads == nil {
		loads = []model.Load{}
	}
	return loads, nil
}

// LoadsByStatus fetches several status lists concurrently. The first failure
// cancels the remaining requests.
func (c *Client) LoadsByStatus(ctx context.Context, driver model.Driver, statuses []model.LoadStatus) (map[model.LoadStatus][]model.Load, error) {
	out := make(map[model.LoadStatus][]model.Load, len(statuses))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, status := range statuses {
		status := status
		g.Go(func() error {
			loads, err := c.Loads(gctx, driver, status)
			if err != nil {
				return err
			}
			mu.Lock()
			out[status] = loads
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delivery returns the delivery contacts recorded for a load.
func (c *Client) Delivery(ctx context.Context, loadID model.ID) ([]model.DeliveryDetail, error) {
	if strings.TrimSpace(loadID.String()) == "" {
		return nil, errors.New("load id is required")
	}
	q := url.Values{}
	q.Set("loadid", loadID.String())

	var details []model.DeliveryDetail
	if err := c.doJSON(ctx, http.MethodGet, "/delivery", q, nil, &details); err != nil {
		return nil, fmt.Errorf("fetch delivery details for load %s: %w", loadID, err)
	}
	if details == nil {
		details = []model.DeliveryDetail{}
	}
	return details, nil
}

// Ping checks that the server answers HTTP at all; any status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.Endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnexpectedResponse, path, err)
	}
	return nil
}
