package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yuuzone/yuuzone/appview"
	"github.com/yuuzone/yuuzone/util/cliutil"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "yuuzone",
		Usage:   "community feed server",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://data/yuuzone/yuuzone.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection string for the popular-threads cache; empty disables redis",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the HTTP API",
			Value:   ":5000",
			EnvVars: []string{"YUUZONE_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Value:   ":5100",
			EnvVars: []string{"YUUZONE_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "symmetric secret for session tokens",
			EnvVars: []string{"YUUZONE_JWT_SECRET"},
		},
		&cli.IntFlag{
			Name:    "popular-thread-count",
			Usage:   "number of threads behind the /all feed",
			Value:   25,
			EnvVars: []string{"YUUZONE_POPULAR_THREAD_COUNT"},
		},
		&cli.Int64Flag{
			Name:    "rate-limit",
			Usage:   "requests allowed per IP per second; zero disables limiting",
			EnvVars: []string{"YUUZONE_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"YUUZONE_LOG_LEVEL"},
		},
	}

	app.Action = runServer
	return app.Run(args)
}

func runServer(cctx *cli.Context) error {
	log := cliutil.SetupSlog(cliutil.ParseLogLevel(cctx.String("log-level")))

	db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return err
	}

	srv, err := appview.NewServer(db, appview.Config{
		JWTSecret:          []byte(cctx.String("jwt-secret")),
		RedisURL:           cctx.String("redis-url"),
		PopularThreadCount: cctx.Int("popular-thread-count"),
		RateLimit:          cctx.Int64("rate-limit"),
	}, log)
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	g, ctx := errgroup.WithContext(context.Background())

	// metrics live on their own listener so the API bind can sit
	// behind a public proxy
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		return http.ListenAndServe(cctx.String("metrics-listen"), mux)
	})

	g.Go(func() error {
		return srv.RunAPI(cctx.String("bind"))
	})

	g.Go(func() error {
		select {
		case <-signals:
			log.Info("received shutdown signal")
		case <-ctx.Done():
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	log.Info("startup complete", "version", versioninfo.Short())
	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
