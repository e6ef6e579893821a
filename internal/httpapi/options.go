package httpapi

import (
	"net/http"
	"time"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// ConvertTimeout is the hard upper bound for a single conversion request
	// (fetch + parse + compile + render).
	ConvertTimeout time.Duration

	// FetchTimeout is the per-HTTP-request timeout used when fetching
	// subscriptions.
	FetchTimeout time.Duration

	// MaxSubs caps the number of sub= URLs per request.
	MaxSubs int

	// Catalog is the pattern/rule catalog; nil means the embedded default.
	Catalog *catalog.Catalog

	// RateLimit and RateBurst bound conversion requests per client IP.
	// A zero RateLimit uses the default; rate.Inf disables limiting.
	RateLimit rate.Limit
	RateBurst int

	// Transport is used for upstream fetches; nil means http.DefaultTransport.
	Transport http.RoundTripper

	Logger *logrus.Logger
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.MaxSubs <= 0 {
		o.MaxSubs = 16
	}
	if o.Catalog == nil {
		o.Catalog = catalog.Default()
	}
	if o.RateLimit == 0 {
		o.RateLimit = rate.Every(500 * time.Millisecond)
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 10
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
