package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/utils"
)

// maxPayloadSize bounds a single response body.
var maxPayloadSize int64 = 64 << 20

type Client struct {
	UserAgent string
}

func NewClient(userAgent string) *Client {
	if userAgent == "" {
		userAgent = "opsy/" + model.Version
	}
	return &Client{UserAgent: userAgent}
}

// Fetch GETs every resource below the base URL of cfg concurrently. It
// returns once all requests succeeded, or with the first failure, which
// cancels the others.
func (c *Client) Fetch(ctx context.Context, cfg model.BackendConfig, resources []string) (map[string][]byte, error) {
	client := utils.NewHTTPClient(utils.HTTPClientOptions{
		VerifySSL: cfg.VerifySSL,
		Timeout:   cfg.RequestTimeout(),
	})
	defer client.CloseIdleConnections()

	base := cfg.BaseURL()
	payloads := make(map[string][]byte, len(resources))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, resource := range resources {
		resource := resource
		g.Go(func() error {
			body, err := c.get(ctx, client, cfg, utils.JoinURL(base, resource))
			if err != nil {
				return err
			}
			mu.Lock()
			payloads[resource] = body
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, cfg model.BackendConfig, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if cfg.Username != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize+1))
	if err != nil {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > maxPayloadSize {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, maxPayloadSize)}
	}
	return body, nil
}

// Poll fetches the resources of b and decodes them.
func (c *Client) Poll(ctx context.Context, b Backend, cfg model.BackendConfig) (*Batch, error) {
	payloads, err := c.Fetch(ctx, cfg, b.Resources())
	if err != nil {
		return nil, err
	}
	return b.Decode(payloads)
}
