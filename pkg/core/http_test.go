package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetryFactorySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	factory := func() (*http.Request, error) {
		return http.NewRequest(http.MethodPost, server.URL, strings.NewReader("data=x"))
	}

	resp, err := WithRetryFactory(context.Background(), factory, server.Client(), fastRetry)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestWithRetryFactoryGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	factory := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, server.URL, nil)
	}

	_, err := WithRetryFactory(context.Background(), factory, server.Client(), fastRetry)
	if CodeOf(err) != ErrServiceTimeout {
		t.Fatalf("Expected SERVICE_TIMEOUT, got %v", err)
	}
	if !strings.Contains(err.Error(), "Maximum retry attempts reached") {
		t.Errorf("Expected retry guidance, got %q", err.Error())
	}
	if calls.Load() != int32(fastRetry.MaxAttempts) {
		t.Errorf("Expected %d attempts, got %d", fastRetry.MaxAttempts, calls.Load())
	}
}

func TestWithRetryFactoryFactoryError(t *testing.T) {
	factory := func() (*http.Request, error) {
		return nil, errors.New("bad url")
	}

	_, err := WithRetryFactory(context.Background(), factory, nil, fastRetry)
	if CodeOf(err) != ErrInternalError {
		t.Fatalf("Expected INTERNAL_ERROR, got %v", err)
	}
}

func TestWithRetryFactoryCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	factory := func() (*http.Request, error) {
		cancel()
		return http.NewRequest(http.MethodGet, server.URL, nil)
	}

	options := fastRetry
	options.InitialDelay = time.Hour
	options.MaxDelay = time.Hour

	start := time.Now()
	_, err := WithRetryFactory(ctx, factory, server.Client(), options)
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Cancellation did not interrupt the backoff")
	}
}
