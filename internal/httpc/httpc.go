// Package httpc builds resty clients and polls HTTP readiness endpoints.
package httpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
)

// Httpc holds client TLS options. The zero value uses resty defaults.
type Httpc struct {
	Insecure      bool
	MinTLSVersion string
	MaxTLSVersion string
}

// New returns a resty.Client configured with the receiver's TLS settings.
func (h *Httpc) New() *resty.Client {
	c := resty.New()
	if h == nil {
		return c
	}
	minV := parseTLSVersion(h.MinTLSVersion)
	maxV := parseTLSVersion(h.MaxTLSVersion)
	if !h.Insecure && minV == 0 && maxV == 0 {
		return c
	}
	// #nosec G402 -- InsecureSkipVerify is opt-in for self-signed probe targets
	cfg := &tls.Config{InsecureSkipVerify: h.Insecure, MinVersion: minV, MaxVersion: maxV}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	c.SetTLSClientConfig(cfg)
	return c
}

func parseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "1.0", "10":
		return tls.VersionTLS10
	case "1.1", "11":
		return tls.VersionTLS11
	case "1.2", "12":
		return tls.VersionTLS12
	case "1.3", "13":
		return tls.VersionTLS13
	}
	return 0
}

// WaitConfig describes an endpoint to poll. Zero fields take the defaults:
// GET, status 200, 60s timeout, 2s interval.
type WaitConfig struct {
	URL      string
	Method   string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

func (wc WaitConfig) withDefaults() WaitConfig {
	wc.URL = strings.TrimSpace(wc.URL)
	wc.Method = strings.ToUpper(strings.TrimSpace(wc.Method))
	if wc.Method != http.MethodHead {
		wc.Method = constants.DefaultWaitMethod
	}
	if wc.Status == 0 {
		wc.Status = constants.DefaultWaitStatus
	}
	if wc.Timeout <= 0 {
		wc.Timeout = constants.DefaultWaitTimeout
	}
	if wc.Interval <= 0 {
		wc.Interval = constants.DefaultWaitInterval
	}
	return wc
}

// Wait polls wc.URL until it answers wc.Status, the timeout elapses or ctx
// is done. An empty URL returns immediately.
func (h *Httpc) Wait(ctx context.Context, wc WaitConfig) error {
	wc = wc.withDefaults()
	if wc.URL == "" {
		return nil
	}
	logger := common.GetLogger().WithComponent("wait")
	logger.Info("waiting for endpoint", "method", wc.Method, "url", wc.URL,
		"status", wc.Status, "timeout", wc.Timeout, "interval", wc.Interval)

	client := h.New()
	deadline := time.Now().Add(wc.Timeout)
	var lastStatus int
	var lastErr error
	for {
		req := client.R().SetContext(ctx)
		var resp *resty.Response
		if wc.Method == http.MethodHead {
			resp, lastErr = req.Head(wc.URL)
		} else {
			resp, lastErr = req.Get(wc.URL)
		}
		if resp != nil {
			lastStatus = resp.StatusCode()
		}
		if lastErr == nil && lastStatus == wc.Status {
			logger.Info("wait condition met", "status", lastStatus)
			return nil
		}
		logger.Debug("endpoint not ready", "status", lastStatus, "error", lastErr)
		if time.Now().Add(wc.Interval).After(deadline) {
			if lastErr != nil {
				return fmt.Errorf("wait: timeout waiting for %s to return %d: %w", wc.URL, wc.Status, lastErr)
			}
			return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d)", wc.URL, wc.Status, lastStatus)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait: %w", ctx.Err())
		case <-time.After(wc.Interval):
		}
	}
}
