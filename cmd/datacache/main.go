package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goforj/datacache"
	"github.com/goforj/datacache/internal/config"
	"github.com/goforj/datacache/internal/logging"
	"github.com/goforj/datacache/internal/version"
)

type cliOptions struct {
	configPath  string
	objectType  string
	objectID    string
	url         string
	strategy    string
	wait        time.Duration
	invalidate  bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run resolves one object and prints it as JSON, or drops cached entries when
// -invalidate is set. The return value is the exit code.
func run(opts cliOptions) int {
	if opts.showVersion {
		fmt.Fprintln(stdOut, version.Full())
		return 0
	}
	if opts.invalidate {
		if opts.objectID != "" && opts.objectType == "" {
			fmt.Fprintln(stdErr, "-id needs -type when invalidating")
			return 2
		}
	} else if opts.objectType == "" || opts.objectID == "" || opts.url == "" {
		fmt.Fprintln(stdErr, "-type, -id and -url are required")
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}
	if opts.strategy != "" {
		cfg.Coordinator.Strategy = opts.strategy
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "init logger: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeStore, err := buildStore(ctx, cfg.Store)
	if err != nil {
		logger.WithFields(logging.BaseFields("build_store", opts.configPath)).WithError(err).Error("store unavailable")
		fmt.Fprintf(stdErr, "build store: %v\n", err)
		return 1
	}
	defer closeStore()

	if opts.invalidate {
		return runInvalidate(ctx, logger, opts, datacache.NewKeyedStore[json.RawMessage](store), cfg.Store.Driver)
	}

	track := newTracker()
	client := &http.Client{Timeout: cfg.Coordinator.FetchTimeout.DurationValue()}
	coord, err := datacache.NewWith(
		datacache.Strategy(cfg.Coordinator.Strategy),
		datacache.NewKeyedStore[json.RawMessage](store),
		opts.objectType,
		opts.objectID,
		httpFetch(client, opts.url),
		datacache.WithFetchTimeout[json.RawMessage](cfg.Coordinator.FetchTimeout.DurationValue()),
		datacache.WithStoreTimeout[json.RawMessage](cfg.Coordinator.StoreTimeout.DurationValue()),
		datacache.WithStaleAfter[json.RawMessage](cfg.Coordinator.StaleAfter.DurationValue()),
		datacache.WithDebug[json.RawMessage](cfg.Coordinator.Debug),
		datacache.WithLogger[json.RawMessage](logger),
		datacache.WithObserver[json.RawMessage](track),
		datacache.WithEmptyCheck[json.RawMessage](isEmptyJSON),
		datacache.WithOnError[json.RawMessage](func(err error, sev datacache.Severity) {
			entry := logger.WithFields(logging.BaseFields("retrieve", opts.configPath)).WithError(err)
			if sev == datacache.SeverityError {
				entry.Error("retrieve step failed")
				return
			}
			entry.Warn("retrieve step recovered")
		}),
		datacache.WithOnRefreshed[json.RawMessage](func(value json.RawMessage) {
			logger.WithFields(logging.BaseFields("refresh", opts.configPath)).WithField("bytes", len(value)).Info("background refresh stored a new value")
		}),
	)
	if err != nil {
		fmt.Fprintf(stdErr, "configure retrieval: %v\n", err)
		return 1
	}

	start := time.Now()
	value, err := coord.Retrieve(ctx)
	fields := logging.RetrieveFields(cfg.Coordinator.Strategy, opts.objectType, opts.objectID, cfg.Store.Driver, time.Since(start).Milliseconds())
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("retrieve failed")
		fmt.Fprintf(stdErr, "retrieve: %v\n", err)
		if errors.Is(err, datacache.ErrNoData) {
			return 3
		}
		return 1
	}
	fmt.Fprintln(stdOut, string(value))

	// Writes run in the background; keep the process alive until they land.
	track.wait(cfg.Coordinator.StoreTimeout.DurationValue()+cfg.Coordinator.FetchTimeout.DurationValue(), opts.wait)
	logger.WithFields(fields).WithFields(logrus.Fields{
		"refreshed": track.refreshed(),
		"version":   version.Full(),
	}).Info("retrieve finished")
	return 0
}

// runInvalidate drops one entry, every entry of a type, or the whole namespace.
func runInvalidate(ctx context.Context, logger *logrus.Logger, opts cliOptions, entries *datacache.KeyedStore[json.RawMessage], driver string) int {
	var err error
	scope := "all"
	switch {
	case opts.objectID != "":
		scope = "entry"
		err = entries.Delete(ctx, opts.objectType, opts.objectID)
	default:
		if opts.objectType != "" {
			scope = "type"
		}
		err = entries.Invalidate(ctx, opts.objectType)
	}
	entry := logger.WithFields(logging.BaseFields("invalidate", opts.configPath)).WithFields(logrus.Fields{
		"scope":       scope,
		"object_type": opts.objectType,
		"object_id":   opts.objectID,
		"driver":      driver,
	})
	if err != nil {
		entry.WithError(err).Error("invalidate failed")
		fmt.Fprintf(stdErr, "invalidate: %v\n", err)
		return 1
	}
	entry.Info("invalidate finished")
	fmt.Fprintf(stdOut, "invalidated %s\n", scope)
	return 0
}

// parseCLIFlags parses args; DATACACHE_CONFIG supplies the config path when -config is absent.
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("datacache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string
	fs.StringVar(&configFlag, "config", "", "config file path (default ./datacache.toml, overridden by DATACACHE_CONFIG)")
	fs.StringVar(&opts.objectType, "type", "", "object type, e.g. company")
	fs.StringVar(&opts.objectID, "id", "", "object id")
	fs.StringVar(&opts.url, "url", "", "URL that returns the object as JSON")
	fs.StringVar(&opts.strategy, "strategy", "", "api_first or cache_first (overrides the config file)")
	fs.DurationVar(&opts.wait, "wait", 0, "how long to wait for a background refresh before exiting")
	fs.BoolVar(&opts.invalidate, "invalidate", false, "drop cached entries: the -type/-id entry, all of -type, or everything")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse flags: %w", err)
	}

	path := os.Getenv("DATACACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "datacache.toml"
	}
	opts.configPath = path
	return opts, nil
}
