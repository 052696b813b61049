package osm

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/NERVsystems/osmread/pkg/core"
)

// MonitoringHooks defines hooks for observing decoding and Overpass requests
type MonitoringHooks struct {
	// OnElement is called for every element a Decoder yields
	OnElement func(elementType string)

	// OnDefault is called when an optional field falls back to its default
	OnDefault func(field string)

	// OnDecodeError is called when a decode pass aborts
	OnDecodeError func(code string)

	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when a rate limit is encountered
	OnRateLimit func(service string, waitTime time.Duration)

	// OnCache is called on every response cache lookup
	OnCache func(hit bool, size int)

	// OnError is called when a request error occurs
	OnError func(service, errorType string)
}

var (
	// Global monitoring hooks
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

// getMonitoringHooks returns the current monitoring hooks
func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

func reportElement(t ElementType) {
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnElement != nil {
		hooks.OnElement(t.String())
	}
}

func reportDefault(field string) {
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnDefault != nil {
		hooks.OnDefault(field)
	}
}

func reportDecodeError(err error) {
	hooks := getMonitoringHooks()
	if hooks == nil || hooks.OnDecodeError == nil {
		return
	}
	code := core.CodeOf(err)
	if code == "" {
		code = core.ErrInternalError
	}
	hooks.OnDecodeError(string(code))
}

func reportCache(hit bool, size int) {
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnCache != nil {
		hooks.OnCache(hit, size)
	}
}

// MonitoredDoRequest performs an HTTP request with rate limiting and monitoring
func (c *Client) MonitoredDoRequest(ctx context.Context, req *http.Request, operation string) (*http.Response, error) {
	service := serviceOverpass

	hooks := getMonitoringHooks()
	if hooks != nil && hooks.OnRequest != nil {
		hooks.OnRequest(service, operation)
	}

	start := time.Now()

	if err := c.waitForRateLimit(ctx); err != nil {
		if hooks != nil && hooks.OnError != nil {
			hooks.OnError(service, "rate_limit_wait_error")
		}
		return nil, err
	}

	// Only track significant waits
	waitTime := time.Since(start)
	if waitTime > 100*time.Millisecond {
		if hooks != nil && hooks.OnRateLimit != nil {
			hooks.OnRateLimit(service, waitTime)
		}
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(requestStart)

	success := err == nil && resp != nil && resp.StatusCode < 400

	if hooks != nil && hooks.OnResponse != nil {
		hooks.OnResponse(service, operation, duration, success)
	}

	if err != nil && hooks != nil && hooks.OnError != nil {
		hooks.OnError(service, "request_error")
	}

	return resp, err
}
