package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/clash-override/internal/catalog"
	"github.com/John-Robertt/clash-override/internal/fetch"
	"github.com/John-Robertt/clash-override/internal/httpapi"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

type config struct {
	listen            string
	readHeaderTimeout time.Duration
	convertTimeout    time.Duration
	fetchTimeout      time.Duration
	shutdownTimeout   time.Duration
	maxSubs           int
	rate              float64
	burst             int
	catalog           string

	healthcheck bool

	// offline conversion
	input    string
	output   string
	explain  bool
	target   string
	provider string
	userinfo string
	noInfo   bool
	noStamp  bool
	lb       bool
	landing  bool
	ipv6     bool
	full     bool
	keep     bool
}

func main() {
	_ = godotenv.Load()

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func newFlagSet(cfg *config, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("clash-override", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  clash-override [flags]                  serve the HTTP API")
		fmt.Fprintln(stderr, "  clash-override -i sub.yaml [-o out]     convert a local subscription")
		fmt.Fprintln(stderr, "  clash-override --healthcheck            probe a running server")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	fs.StringVarP(&cfg.listen, "listen", "l", envOr("LISTEN", "127.0.0.1:25500"), "HTTP 监听地址 (env LISTEN)")
	fs.DurationVar(&cfg.readHeaderTimeout, "read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout（请求头读取超时）")
	fs.DurationVar(&cfg.convertTimeout, "convert-timeout", 60*time.Second, "单次转换的总超时（包含远程拉取）")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", 15*time.Second, "单次远程拉取的超时（每个 URL 一次请求）")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")
	fs.IntVar(&cfg.maxSubs, "max-subs", 16, "单次请求允许的 sub 数量上限")
	fs.Float64Var(&cfg.rate, "rate", 2, "每个客户端 IP 每秒允许的转换请求数，0 表示不限制")
	fs.IntVar(&cfg.burst, "burst", 10, "每个客户端 IP 的突发请求数")
	fs.StringVar(&cfg.catalog, "catalog", os.Getenv("CATALOG"), "catalog 覆盖文件路径或 http(s) URL (env CATALOG)")

	fs.BoolVar(&cfg.healthcheck, "healthcheck", false, "请求 --listen 对应的 /healthz 并以退出码报告结果")

	fs.StringVarP(&cfg.input, "input", "i", "", "离线转换：订阅文件路径，- 表示 stdin")
	fs.StringVarP(&cfg.output, "output", "o", "", "离线转换：输出文件路径，默认 stdout")
	fs.BoolVar(&cfg.explain, "explain", false, "离线转换：输出每个策略组解析后的成员，而不是配置")
	fs.StringVarP(&cfg.target, "target", "t", "clash", "输出格式：clash | json")
	fs.StringVar(&cfg.provider, "provider", "", "节点名前缀 [provider]")
	fs.StringVar(&cfg.userinfo, "userinfo", "", "subscription-userinfo 头的值，用于生成流量信息节点")
	fs.BoolVar(&cfg.noInfo, "no-info", false, "不生成 Info- 流量信息节点")
	fs.BoolVar(&cfg.noStamp, "no-stamp", false, "不生成更新时间节点")
	fs.BoolVar(&cfg.lb, "loadbalance", false, "地区组使用 load-balance")
	fs.BoolVar(&cfg.landing, "landing", false, "生成前置代理/落地节点组")
	fs.BoolVar(&cfg.ipv6, "ipv6", false, "启用 IPv6")
	fs.BoolVar(&cfg.full, "full", false, "输出完整配置（包含端口、模式等运行参数）")
	fs.BoolVar(&cfg.keep, "keepalive", false, "保留 TCP keep-alive（仅 --full）")
	return fs
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cfg config
	fs := newFlagSet(&cfg, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	if cfg.healthcheck {
		u, err := deriveHealthzURL(cfg.listen)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		if err := runHealthcheck(u, 3*time.Second); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(ctx, cfg.catalog)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if cfg.input != "" {
		if err := convertFile(cfg, cat, stdin, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	limit := rate.Limit(cfg.rate)
	switch {
	case cfg.rate < 0:
		fmt.Fprintln(stderr, "--rate must not be negative")
		return 2
	case cfg.rate == 0:
		limit = rate.Inf
	}

	if err := serve(ctx, cfg, httpapi.Options{
		ConvertTimeout: cfg.convertTimeout,
		FetchTimeout:   cfg.fetchTimeout,
		MaxSubs:        cfg.maxSubs,
		Catalog:        cat,
		RateLimit:      limit,
		RateBurst:      cfg.burst,
	}); err != nil {
		logrus.WithError(err).Error("server stopped")
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config, opt httpapi.Options) error {
	srv := &http.Server{
		Addr:              cfg.listen,
		Handler:           httpapi.NewHandlerWithOptions(opt),
		ReadHeaderTimeout: cfg.readHeaderTimeout,
	}

	logrus.Infof("listening on http://%s", cfg.listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logrus.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logrus.WithError(err).Warn("graceful shutdown failed")
			_ = srv.Close()
		}

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// loadCatalog returns the embedded catalog when src is empty, otherwise the
// override at src (a file path or an http(s) URL) merged on top of it.
func loadCatalog(ctx context.Context, src string) (*catalog.Catalog, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return catalog.Default(), nil
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		body, err := fetch.FetchText(ctx, fetch.KindCatalog, src)
		if err != nil {
			return nil, err
		}
		return catalog.Parse(src, body)
	default:
		return catalog.LoadFile(src)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
