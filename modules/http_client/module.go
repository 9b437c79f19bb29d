// Package http_client provides methods for making HTTP requests from class
// resources through a shared, pooled client.
package http_client

import (
	"net/http"
	"time"

	"github.com/vk/classkit/internal/registry"
)

// Module implements the registry.Module interface. It's the main entrypoint
// for the http_client module.
type Module struct {
	// Client is shared by every request. A pooled client with
	// DefaultTimeout is created on registration when nil.
	Client *http.Client
}

// DefaultTimeout applies when neither the call nor the instance sets one.
const DefaultTimeout = 30 * time.Second

func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Register registers the HTTP methods with the library.
func (m *Module) Register(l *registry.Library) {
	if m.Client == nil {
		m.Client = newClient()
	}
	l.RegisterMethod("http.Request", m.Request)
}
