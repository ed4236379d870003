package paymentgateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// ScriptFetcher retrieves the gateway's inline script.
type ScriptFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create script request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("script request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("script host returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("script host returned an empty body")
	}
	return body, nil
}

// ScriptLoader loads the gateway script at most once per process. Concurrent
// callers share one in-flight fetch and see the same result. A failed fetch
// puts the loader back to unloaded so the next caller tries again.
type ScriptLoader struct {
	url     string
	fetcher ScriptFetcher
	logger  *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	state  LoadState
	script []byte
}

func NewScriptLoader(url string, fetcher ScriptFetcher, logger *slog.Logger) *ScriptLoader {
	return &ScriptLoader{
		url:     url,
		fetcher: fetcher,
		logger:  logger,
	}
}

func (l *ScriptLoader) State() LoadState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Script returns the loaded script body, or nil before a successful load.
func (l *ScriptLoader) Script() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.script
}

func (l *ScriptLoader) URL() string {
	return l.url
}

// Load returns once the script is available. ctx only bounds how long this
// caller waits; the shared fetch keeps going for the others.
func (l *ScriptLoader) Load(ctx context.Context) error {
	if l.State() == StateLoaded {
		return nil
	}

	ch := l.group.DoChan("script", func() (interface{}, error) {
		l.mu.Lock()
		if l.state == StateLoaded {
			l.mu.Unlock()
			return nil, nil
		}
		l.state = StateLoading
		l.mu.Unlock()

		l.logger.Info("loading payment gateway script", "url", l.url)
		body, err := l.fetcher.Fetch(context.WithoutCancel(ctx), l.url)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = StateUnloaded
			l.logger.Error("payment gateway script failed to load", "url", l.url, "error", err)
			return nil, err
		}
		l.script = body
		l.state = StateLoaded
		l.logger.Info("payment gateway script loaded", "url", l.url, "bytes", len(body))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
