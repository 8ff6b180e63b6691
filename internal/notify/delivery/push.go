// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
)

// PushGateway sends multicast pushes through an HTTP gateway that fronts
// the mobile push provider. Calls are wrapped in a circuit breaker so a
// provider outage fails fast instead of tying up workers.
type PushGateway struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*PushResult]
}

// NewPushGateway creates a push adapter for the given gateway URL.
func NewPushGateway(url string, timeout time.Duration) *PushGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings := gobreaker.Settings{
		Name:    "push-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Push circuit breaker state change")
		},
	}
	return &PushGateway{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*PushResult](settings),
	}
}

// multicastRequest is the gateway wire format.
type multicastRequest struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

type multicastResponse struct {
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	Results      []perTokenResult `json:"results"`
}

type perTokenResult struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// tokenUnregistered is the provider's code for a permanently dead token.
const tokenUnregistered = "registration-token-not-registered"

// SendMulticast delivers one notification to a batch of tokens. Tokens the
// provider reports as unregistered come back in InvalidTokens.
func (g *PushGateway) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error) {
	if len(tokens) == 0 {
		return &PushResult{}, nil
	}

	return g.breaker.Execute(func() (*PushResult, error) {
		payload, err := json.Marshal(multicastRequest{
			Tokens: tokens,
			Title:  title,
			Body:   body,
			Data:   data,
		})
		if err != nil {
			return nil, fmt.Errorf("encode multicast request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/v1/multicast", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build multicast request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("push gateway: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read multicast response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, respBody)
		}

		var mr multicastResponse
		if err := json.Unmarshal(respBody, &mr); err != nil {
			return nil, fmt.Errorf("decode multicast response: %w", err)
		}

		result := &PushResult{
			SuccessCount: mr.SuccessCount,
			FailureCount: mr.FailureCount,
		}
		for _, r := range mr.Results {
			if r.Error == tokenUnregistered {
				result.InvalidTokens = append(result.InvalidTokens, r.Token)
			}
		}
		return result, nil
	})
}
