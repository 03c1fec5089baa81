package httpc

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHttpc_Insecure_AllowsSelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	if _, err := (&Httpc{}).New().R().Get(srv.URL); err == nil {
		t.Fatalf("expected error without insecure TLS, got nil")
	}
	resp, err := (&Httpc{Insecure: true}).New().R().Get(srv.URL)
	if err != nil || resp.StatusCode() != 200 {
		t.Fatalf("expected 200 with insecure, got err=%v", err)
	}
}

func TestHttpc_TLSBounds(t *testing.T) {
	c := (&Httpc{MinTLSVersion: "1.3", MaxTLSVersion: "tls1.3"}).New()
	tr, _ := c.GetClient().Transport.(*http.Transport)
	if tr == nil || tr.TLSClientConfig == nil {
		t.Fatalf("expected TLSClientConfig")
	}
	if tr.TLSClientConfig.MinVersion != tls.VersionTLS13 || tr.TLSClientConfig.MaxVersion != tls.VersionTLS13 {
		t.Fatalf("expected TLS1.3 only, got Min=%v Max=%v", tr.TLSClientConfig.MinVersion, tr.TLSClientConfig.MaxVersion)
	}
}

func TestWait_SucceedsWhenStatusMatches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := (&Httpc{}).Wait(context.Background(), WaitConfig{URL: srv.URL, Timeout: 2 * time.Second, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", hits.Load())
	}
}

func TestWait_HeadAndCustomStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wc := WaitConfig{URL: srv.URL, Method: "head", Status: http.StatusNoContent, Timeout: time.Second, Interval: 10 * time.Millisecond}
	if err := (&Httpc{}).Wait(context.Background(), wc); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWait_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := (&Httpc{}).Wait(context.Background(), WaitConfig{URL: srv.URL, Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond})
	if err == nil || !strings.Contains(err.Error(), "last=500") {
		t.Fatalf("expected timeout with last status, got %v", err)
	}
}

func TestWait_EmptyURLAndCancel(t *testing.T) {
	if err := (&Httpc{}).Wait(context.Background(), WaitConfig{}); err != nil {
		t.Fatalf("empty URL should be a no-op: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&Httpc{}).Wait(ctx, WaitConfig{URL: srv.URL, Timeout: time.Minute, Interval: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
