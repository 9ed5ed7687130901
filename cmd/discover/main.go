package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mindtastic/discovery"
	"github.com/mindtastic/discovery/log"
	"github.com/mindtastic/discovery/store/localfile"
	"github.com/mindtastic/discovery/store/rediscache"
)

const usage = `usage: discover [flags] <command> [args]

commands:
  hash <userID>                   print the record ID derived from userID
  register <userID> <storageURL>  publish storageURL for userID
  retrieve <userID>               resolve the storage URL of userID
  forget <userID>                 drop the cached storage URL of userID

flags:
`

var errUsage = errors.New("invalid usage")

type config struct {
	central  string
	auth     string
	def      string
	cache    string
	redis    string
	timeout  time.Duration
	logLevel string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			log.Errorf("%v", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var cfg config
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.central, "central", "", "Central repository URL, record IDs are appended to it")
	fs.StringVar(&cfg.auth, "auth", "", "Authorization header sent to the central repository")
	fs.StringVar(&cfg.def, "default", "", "Storage URL used by retrieve if the user has no record")
	fs.StringVar(&cfg.cache, "cache", defaultCachePath(), "File the local cache is persisted to, empty to keep it in memory")
	fs.StringVar(&cfg.redis, "redis", "", "Comma separated Redis URLs, replaces the local cache file if set")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "Timeout of a single request to the central repository")
	fs.StringVar(&cfg.logLevel, "log-level", "warning", "Log level (debug, info, warning, error)")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	logger, err := log.New(cfg.logLevel, stderr)
	if err != nil {
		return err
	}
	log.Set(logger)

	cmd := fs.Args()
	if len(cmd) == 0 {
		fs.Usage()
		return errUsage
	}

	want := map[string]int{"hash": 2, "register": 3, "retrieve": 2, "forget": 2}
	n, ok := want[cmd[0]]
	if !ok || len(cmd) != n {
		fs.Usage()
		return errUsage
	}

	if cmd[0] == "hash" {
		fmt.Fprintln(stdout, discovery.DeriveRecordID(cmd[1]))
		return nil
	}

	if cfg.central == "" {
		return errors.New("-central is required")
	}

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Errorf("error closing cache: %v", err)
		}
	}()

	r := discovery.New(&http.Client{Timeout: cfg.timeout}, cache)
	headers := discovery.Headers{}
	if cfg.auth != "" {
		headers[discovery.AuthorizationHeader] = cfg.auth
	}

	ctx := context.Background()
	var result string
	switch cmd[0] {
	case "register":
		result, err = r.Register(ctx, cmd[1], cfg.central, headers, cmd[2])
	case "retrieve":
		result, err = r.Retrieve(ctx, cmd[1], cfg.central, headers, cfg.def)
	case "forget":
		return r.Forget(cfg.central, cmd[1])
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, result)
	return nil
}

func openCache(cfg config) (discovery.Cache, func() error, error) {
	if cfg.redis != "" {
		c, err := rediscache.NewFromURL(cfg.redis)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}

	lfs := localfile.New()
	if err := lfs.InitializePersistence(cfg.cache); err != nil {
		return nil, nil, fmt.Errorf("error opening cache: %w", err)
	}
	return lfs, lfs.Shutdown, nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "discovery", "cache.json")
}
