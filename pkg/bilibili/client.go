// Package bilibili implements the HTTP transport for bilibili's web API:
// request execution with cookie auth, steady-state pacing, throttle
// accounting, and classification of transport vs. application errors.
package bilibili

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bililottery/pkg/auth"
	"bililottery/pkg/config"
	"bililottery/pkg/errors"
	"bililottery/pkg/logger"
	"bililottery/pkg/throttle"
)

// Client executes API requests. Every execution, success or failure,
// reports exactly one request to the throttle controller.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	endpoints  Endpoints
	pacer      *rate.Limiter
	throttle   *throttle.Controller
	log        logger.Logger
}

// New creates a client. session may be nil for unauthenticated use; ctrl
// is the shared throttle controller all harvests draw from.
func New(cfg *config.APIConfig, session *auth.Session, ctrl *throttle.Controller, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if ctrl == nil {
		ctrl = throttle.NewController(nil, log)
	}

	headers := map[string]string{
		"User-Agent": cfg.UserAgent,
		"Referer":    "https://www.bilibili.com/",
		"Accept":     "application/json, text/plain, */*",
	}
	if session.Valid() {
		var cookies []string
		cookies = append(cookies, "SESSDATA="+session.SessData)
		if session.BiliJct != "" {
			cookies = append(cookies, "bili_jct="+session.BiliJct)
		}
		if session.Buvid3 != "" {
			cookies = append(cookies, "buvid3="+session.Buvid3)
		}
		headers["Cookie"] = strings.Join(cookies, "; ")
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers:    headers,
		endpoints:  DefaultEndpoints(),
		pacer:      rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		throttle:   ctrl,
		log:        log,
	}
}

// SetHeader sets a custom header on every subsequent request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetEndpoints overrides the API URLs. Tests point these at a local server.
func (c *Client) SetEndpoints(e Endpoints) {
	c.endpoints = e
}

// Endpoints returns the URLs currently in use.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Throttle returns the shared throttle controller.
func (c *Client) Throttle() *throttle.Controller {
	return c.throttle
}

// Execute performs one API request. GET requests encode params into the
// query string, any other method sends them as a JSON body. With raw set,
// the body is returned untouched; otherwise the standard envelope is
// decoded, a non-zero code becomes an application error, and the inner
// data document is returned.
func (c *Client) Execute(ctx context.Context, method, rawURL string, params map[string]string, raw bool) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.buildRequest(ctx, method, rawURL, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.log.DebugWithFields("sending API request", map[string]interface{}{
		"method": method,
		"url":    req.URL.String(),
	})

	resp, doErr := c.httpClient.Do(req)

	// One throttle report per execution, success or failure. The report
	// may itself suspend us when a pause rule fires.
	if recErr := c.throttle.Record(ctx); recErr != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, recErr
	}

	if doErr != nil {
		c.log.ErrorWithFields("API request failed", map[string]interface{}{
			"method":   method,
			"url":      req.URL.String(),
			"error":    doErr.Error(),
			"duration": time.Since(start),
		})
		return nil, fmt.Errorf("request failed: %w", doErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.DebugWithFields("API request completed", map[string]interface{}{
		"method":   method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Transport(resp.StatusCode, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, req.URL.Host))
	}

	if raw {
		return body, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Code != 0 {
		msg := env.errorMessage()
		if msg == "" {
			msg = fmt.Sprintf("platform returned code %d", env.Code)
		}
		return nil, errors.Application(env.Code, msg)
	}
	return env.Data, nil
}

// GetJSON executes a GET request and decodes the envelope's data document
// into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params map[string]string, out interface{}) error {
	data, err := c.Execute(ctx, http.MethodGet, rawURL, params, false)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func (c *Client) buildRequest(ctx context.Context, method, rawURL string, params map[string]string) (*http.Request, error) {
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			query := url.Values{}
			for k, v := range params {
				query.Set(k, v)
			}
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL = rawURL + sep + query.Encode()
		}
	} else {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
