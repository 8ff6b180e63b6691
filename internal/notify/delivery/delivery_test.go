// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"permanent marker", ErrPermanent, false},
		{"connection refused", errors.New("failed to connect to SMTP server: connection refused"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"rate limited", errors.New("450 rate limit exceeded"), true},
		{"unknown defaults transient", errors.New("mysterious failure"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientWrappedPermanent(t *testing.T) {
	err := errors.Join(errors.New("invalid recipient"), ErrPermanent)
	if IsTransient(err) {
		t.Error("wrapped ErrPermanent classified as transient")
	}
}

func TestPushResultMerge(t *testing.T) {
	r := &PushResult{SuccessCount: 2, FailureCount: 1, InvalidTokens: []string{"a"}}
	r.Merge(&PushResult{SuccessCount: 3, FailureCount: 2, InvalidTokens: []string{"b", "c"}})
	r.Merge(nil)

	if r.SuccessCount != 5 || r.FailureCount != 3 {
		t.Errorf("merged = %+v", r)
	}
	if len(r.InvalidTokens) != 3 {
		t.Errorf("invalid tokens = %v", r.InvalidTokens)
	}
}

func TestPushGatewaySendMulticast(t *testing.T) {
	var got multicastRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(multicastResponse{
			SuccessCount: 2,
			FailureCount: 1,
			Results: []perTokenResult{
				{Token: "t1"},
				{Token: "t2"},
				{Token: "t3", Error: tokenUnregistered},
			},
		})
	}))
	defer srv.Close()

	g := NewPushGateway(srv.URL, time.Second)
	res, err := g.SendMulticast(context.Background(), []string{"t1", "t2", "t3"},
		"New follower", "Someone followed you", map[string]string{"type": "new_follower"})
	if err != nil {
		t.Fatalf("SendMulticast: %v", err)
	}

	if res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.InvalidTokens) != 1 || res.InvalidTokens[0] != "t3" {
		t.Errorf("invalid tokens = %v", res.InvalidTokens)
	}
	if len(got.Tokens) != 3 || got.Title != "New follower" {
		t.Errorf("request = %+v", got)
	}
}

func TestPushGatewayEmptyTokensSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := NewPushGateway(srv.URL, time.Second)
	res, err := g.SendMulticast(context.Background(), nil, "t", "b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.SuccessCount != 0 || called {
		t.Error("gateway called for empty token list")
	}
}

func TestPushGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewPushGateway(srv.URL, time.Second)
	if _, err := g.SendMulticast(context.Background(), []string{"t1"}, "t", "b", nil); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestRenderEmail(t *testing.T) {
	html, err := RenderEmail("Donation received", "You received $25 from <anonymous>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<h2>Donation received</h2>") {
		t.Error("title missing from body")
	}
	if strings.Contains(html, "<anonymous>") {
		t.Error("message not HTML-escaped")
	}
	if !strings.Contains(html, "SacredConnect") {
		t.Error("branding missing")
	}
}

func TestEmailSubject(t *testing.T) {
	if got := EmailSubject(models.NotificationSystem, "Maintenance"); got != "SacredConnect: Maintenance" {
		t.Errorf("system subject = %q", got)
	}
	if got := EmailSubject(models.NotificationNewFollower, "New follower"); got != "New follower" {
		t.Errorf("subject = %q", got)
	}
}

func TestSMTPBuildMessage(t *testing.T) {
	e := NewSMTPEmail(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		From: "noreply@sacredconnect.app", FromName: "SacredConnect",
	})
	msg := e.buildMessage("user@example.com", "Hello", "<p>Hi</p>")

	for _, want := range []string{
		"From: SacredConnect <noreply@sacredconnect.app>\r\n",
		"To: user@example.com\r\n",
		"Subject: Hello\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing header %q", want)
		}
	}
	if !strings.HasSuffix(msg, "<p>Hi</p>") {
		t.Error("body not at end of message")
	}
}

func TestSMTPSendRejectsBadRecipient(t *testing.T) {
	e := NewSMTPEmail(config.SMTPConfig{Host: "localhost", Port: 2525})
	err := e.Send(context.Background(), "not-an-address", "s", "b")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("err = %v, want ErrPermanent", err)
	}
}
