package swob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

// Client fetches the latest SWOB-ML report per buoy over HTTP. It implements
// supervisor.Fetcher.
type Client struct {
	urlTemplate string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a SWOB client. urlTemplate must contain a single %s that
// is replaced by the buoy ID, e.g.
// "https://dd.weather.gc.ca/observations/swob-ml/latest/%s.xml".
func NewClient(urlTemplate string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		urlTemplate: urlTemplate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchLatest retrieves and parses the buoy's latest report. The per-call
// deadline comes from the supervisor's context; the client timeout is only a
// backstop.
func (c *Client) FetchLatest(ctx context.Context, buoyID string) ([]domain.RawBuoyRecord, error) {
	if strings.Count(c.urlTemplate, "%s") != 1 {
		return nil, fmt.Errorf("swob url template %q must contain exactly one %%s", c.urlTemplate)
	}
	u := fmt.Sprintf(c.urlTemplate, buoyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch buoy %s: %w", buoyID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("swob feed error for buoy %s: status %d: %s", buoyID, resp.StatusCode, body)
	}

	records, err := ParseReport(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched swob report", "buoy_id", buoyID, "records", len(records))
	return records, nil
}
