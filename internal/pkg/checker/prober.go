package checker

import (
	"context"
	"net/http"
	"time"

	"github.com/vigilohq/vigilo/app/models"
)

const probeTimeout = 30 * time.Second

// ProbeResult is the outcome of a single HTTP check.
type ProbeResult struct {
	Status     string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Prober issues the actual HTTP request against a monitor target.
type Prober struct {
	client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: probeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Probe performs one check. Any transport error or a status code of 400 or
// above counts as down.
func (p *Prober) Probe(ctx context.Context, url string) ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Status: models.MonitorStatusDown, Duration: time.Since(start), Err: err}
	}
	req.Header.Set("User-Agent", "vigilo-checker/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Status: models.MonitorStatusDown, Duration: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	result := ProbeResult{
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
	}
	if resp.StatusCode >= 400 {
		result.Status = models.MonitorStatusDown
	} else {
		result.Status = models.MonitorStatusUp
	}
	return result
}
