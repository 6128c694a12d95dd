package claimsapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

// Client talks to the claims backend REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func newExecutorIfNil(executor *resilience.Executor, cfg resilience.Config) *resilience.Executor {
	if executor != nil {
		return executor
	}
	return resilience.NewExecutor(cfg)
}

func normalizePath(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
