package broker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clubledger/objectgate"
)

// DefaultTimeout bounds a single call to the sidecar.
const DefaultTimeout = 10 * time.Second

type options struct {
	now        func() time.Time
	httpClient *http.Client
}

// Option configures a broker driver.
type Option func(*options)

// WithClock sets the time source used to compute relative expiries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithHTTPClient sets a custom HTTP client. Only Sidecar uses it.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ttl returns the whole number of seconds between now and the requested
// expiry. Expiries in the past are rejected.
func ttl(req objectgate.SignRequest, now time.Time) (time.Duration, error) {
	d := req.ExpiresAt.Sub(now).Round(time.Second)
	if d <= 0 {
		return 0, fmt.Errorf("%w: expiry %s is not in the future", objectgate.ErrInvalidInput, req.ExpiresAt.Format(time.RFC3339))
	}
	return d, nil
}
