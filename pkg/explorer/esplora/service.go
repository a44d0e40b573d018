// Package esplora implements the explorer.Service interface against the
// esplora HTTP API.
package esplora

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/httputil"
)

type esplora struct {
	apiURL string
	client *httputil.Client
}

// NewService returns a new esplora service as an explorer.Service interface
func NewService(apiURL string, requestTimeout time.Duration) (explorer.Service, error) {
	service := &esplora{
		apiURL: apiURL,
		client: httputil.NewClient(requestTimeout),
	}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) healthCheck() error {
	url := fmt.Sprintf("%s/blocks/tip/height", e.apiURL)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s", resp)
	}
	return nil
}
