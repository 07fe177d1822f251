package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/batchupload/applications/server"
	"github.com/donmikel/batchupload/applications/server/adapters/antivirus"
	"github.com/donmikel/batchupload/applications/server/adapters/filesystem"
	"github.com/donmikel/batchupload/applications/server/adapters/inmemory"
	"github.com/donmikel/batchupload/applications/server/adapters/s3"
	"github.com/donmikel/batchupload/applications/server/config"
	"github.com/donmikel/batchupload/applications/server/handlers/http"
	"github.com/donmikel/batchupload/applications/server/interfaces"
	"github.com/donmikel/batchupload/applications/server/metrics"
	"github.com/donmikel/batchupload/applications/server/services"
	"github.com/donmikel/batchupload/applications/server/workerpool"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

// Kubernetes (rolling update) doesn't wait until a pod is out of rotation before sending SIGTERM,
// and external LB could still route traffic to a non-existing pod resulting in a surge of 50x API errors.
// It's recommended to wait for 5 seconds before terminating the program; see references
// https://github.com/kubernetes-retired/contrib/issues/1140, https://youtu.be/me5iyiheOC8?t=1797.
const preStopWait = 5 * time.Second

// Shutdown timeout for http servers.
const shutdownTimeout = 5 * time.Second

// Time given to in-flight batches after the http server stopped.
const poolDrainTimeout = 30 * time.Second

const storageInitTimeout = 30 * time.Second

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return exitSuccess
	}
	if err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		if version == "" {
			level.Error(logger).Log("msg", "version not set")
		} else {
			level.Info(logger).Log("version", version)
		}

		return exitSuccess
	}

	if _, err = os.Stat(".env"); err == nil {
		if err = godotenv.Load(); err != nil {
			logger.Log("msg", "cannot load .env", "err", err)
			return exitFailure
		}
	}

	logger.Log("configPath", *configPath)

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logger.Log("msg", "cannot parse service config", "err", err)
		return exitFailure
	}

	err = cfg.Validate()
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	logger = level.NewFilter(logger, levelOption(cfg.Log.Level))

	// It's nice to be able to see panics in Logs, hence we monitor for panics after
	// logger has been bootstrapped.
	defer monitorPanic(logger)
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var observer metrics.Observer
	{
		observer, err = metrics.NewPrometheusObserver("", registry)
		if err != nil {
			level.Error(logger).Log("msg", "can't register metrics", "err", err)
			return exitFailure
		}
	}

	var storage interfaces.Storage
	{
		storage, err = newStorage(ctx, cfg.Storage, logger)
		if err != nil {
			level.Error(logger).Log("msg", "can't initialize storage", "err", err)
			return exitFailure
		}
		level.Info(logger).Log("msg", "storage ready", "url", storage.GetStorageURL())
	}

	var scanner interfaces.Scanner
	{
		scanner = antivirus.NewSimulatedScanner(cfg.Scanner.Latency, cfg.Scanner.ClearRatio, logger)
	}

	pool := workerpool.New(cfg.Pool.Workers, cfg.Pool.QueueSize, logger)
	if err = pool.Start(); err != nil {
		level.Error(logger).Log("msg", "can't start worker pool", "err", err)
		return exitFailure
	}

	var uploadService server.FileUploadService
	{
		uploadService = services.NewService(storage, scanner, pool, observer, logger)
	}

	hServer := http.NewHTTPServer(cfg.API, uploadService, registry, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, s))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		level.Info(logger).Log("msg", "listening", "addr", cfg.API.HTTPAddr)
		if err := hServer.ListenAndServe(); err != nil {
			return fmt.Errorf("listen and server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		level.Info(logger).Log("msg", "draining worker pool")
		drainCtx, drainCancel := context.WithTimeout(context.Background(), poolDrainTimeout)
		defer drainCancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			return err
		}

		return ctx.Err()
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

func newStorage(ctx context.Context, conf config.Storage, logger log.Logger) (interfaces.Storage, error) {
	switch conf.Backend {
	case config.BackendMemory:
		return inmemory.NewStorage("memory", conf.Capacity, logger), nil
	case config.BackendS3:
		initCtx, cancel := context.WithTimeout(ctx, storageInitTimeout)
		defer cancel()
		return s3.NewStorage(initCtx, conf.S3.Endpoint, conf.S3.AccessKey, conf.S3.SecretKey, conf.S3.Bucket, logger,
			s3.Region(conf.S3.Region),
		)
	default:
		return filesystem.NewStorage(conf.UploadDir, logger)
	}
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
