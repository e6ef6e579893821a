package httpapi

import (
	"net/http"

	"github.com/John-Robertt/clash-override/internal/fetch"
)

type server struct {
	opt     Options
	fetcher *fetch.Group
	limiter *clientLimiter
}

func NewMux() *http.ServeMux {
	return NewMuxWithOptions(Options{})
}

func NewMuxWithOptions(opt Options) *http.ServeMux {
	opt = opt.withDefaults()
	s := &server{
		opt: opt,
		fetcher: &fetch.Group{Options: fetch.Options{
			Timeout:   opt.FetchTimeout,
			Transport: opt.Transport,
		}},
		limiter: newClientLimiter(opt.RateLimit, opt.RateBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /metrics", handleMetrics)
	mux.HandleFunc("GET /sub", s.limiter.wrap(s.handleSub))
	mux.HandleFunc("POST /api/convert", s.limiter.wrap(s.handleConvert))
	return mux
}
