package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	backoffStart  = 600 * time.Millisecond
	backoffFactor = 1.7
	jitterMax     = 400 * time.Millisecond
)

// Client единственный примитив общения с CRM: POST JSON на base/method.
// Один клиент обслуживает много параллельных вызовов.
type Client struct {
	base        string
	httpc       *http.Client
	maxAttempts int
	log         *slog.Logger
}

func NewClient(webhookBase string, maxAttempts int, callTimeout time.Duration, log *slog.Logger) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if callTimeout <= 0 {
		callTimeout = 40 * time.Second
	}
	return &Client{
		base: strings.TrimRight(webhookBase, "/"),
		httpc: &http.Client{
			Timeout: callTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		maxAttempts: maxAttempts,
		log:         log,
	}
}

type apiReply struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Call вызывает метод CRM с повторами. 429/502/503/504 повторяются всегда,
// 400 только на первой попытке — CRM изредка отдаёт 400 на гонке
// "читаем сразу после записи".
func (c *Client) Call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	const op = "storage.crm.client.Call"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var lastStatus int
	var lastDesc string

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt - 1)
			c.log.Warn("повтор вызова CRM",
				slog.String("method", method),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, status, desc, err := c.once(ctx, method, body)
		if err == nil && status == 0 {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		lastStatus, lastDesc = status, desc
		if err != nil {
			lastDesc = err.Error()
		}

		if !retryable(status, attempt) {
			break
		}
	}

	return nil, &TransportError{Method: method, Status: lastStatus, Description: lastDesc}
}

// once одна HTTP-попытка. status==0 означает успех.
func (c *Client) once(ctx context.Context, method string, body []byte) (json.RawMessage, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// сетевые ошибки считаем повторяемыми, статус 502 условный
		return nil, http.StatusBadGateway, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, http.StatusBadGateway, "", err
	}

	var reply apiReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, resp.StatusCode, "invalid JSON reply", nil
	}

	if resp.StatusCode == http.StatusOK && reply.Error == "" {
		return reply.Result, 0, "", nil
	}

	desc := reply.ErrorDescription
	if desc == "" {
		desc = reply.Error
	}
	return nil, resp.StatusCode, desc, nil
}

func retryable(status, attempt int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case http.StatusBadRequest:
		return attempt == 1
	}
	return false
}

func backoffDelay(n int) time.Duration {
	d := float64(backoffStart)
	for i := 1; i < n; i++ {
		d *= backoffFactor
	}
	return time.Duration(d) + time.Duration(rand.Int63n(int64(jitterMax)))
}
