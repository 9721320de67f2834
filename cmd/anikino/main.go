package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/nav"
	"github.com/mmcdole/anikino/internal/scraper"
	"github.com/mmcdole/anikino/internal/service"
	"github.com/mmcdole/anikino/internal/store"
	"github.com/mmcdole/anikino/internal/task"
	"github.com/mmcdole/anikino/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		keyword     string
		clearCache  bool
		writeConfig bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&keyword, "search", "", "search for `keyword`, print the results and exit")
	flag.BoolVar(&clearCache, "clear-cache", false, "remove cached images and search history")
	flag.BoolVar(&writeConfig, "write-config", false, "write the effective configuration to the config file")
	flag.Parse()

	if showVersion {
		fmt.Printf("anikino %s\n", Version)
		return
	}

	if err := run(keyword, clearCache, writeConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(keyword string, clearCache, writeConfig bool) error {
	// Load configuration
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if writeConfig {
		if err := adapter.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("✓ Configuration saved")
		return nil
	}
	if clearCache {
		if err := clearCacheStore(cfg.Cache.Dir, cfg.Server.BaseURL); err != nil {
			return err
		}
		fmt.Println("✓ Cache cleared")
		return nil
	}

	// Setup logger
	logger, closeLog, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, closeLog = adapter.NullLogger(), func() error { return nil }
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting anikino", "version", Version)

	a, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer a.store.Close()

	headless := keyword != "" || !term.IsTerminal(int(os.Stdout.Fd()))
	if headless {
		if strings.TrimSpace(keyword) == "" {
			return errors.New("-search is required when stdout is not a terminal")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runHeadless(ctx, a, keyword, os.Stdout)
	}
	return runTUI(a)
}

// app holds the collaborators shared by both front ends
type app struct {
	cfg      *adapter.Config
	logger   *slog.Logger
	store    *store.CacheStore
	catalog  *service.CatalogService
	thumbs   *service.ImageService
	posters  *service.ImageService
	launcher *adapter.Launcher
}

func wire(cfg *adapter.Config, logger *slog.Logger) (*app, error) {
	cache, err := store.NewCacheStore(cfg.Cache.Dir, cfg.Server.BaseURL)
	if err != nil {
		logger.Warn("cache unavailable, using memory only", "dir", cfg.Cache.Dir, "error", err)
		cache, _ = store.NewCacheStore("", "")
	}

	client, err := scraper.New(scraper.Options{
		BaseURL:     cfg.Server.BaseURL,
		Referer:     cfg.Server.Referer,
		UserAgent:   cfg.Server.UserAgent,
		RateLimit:   cfg.Network.RateLimit,
		DownloadDir: cfg.Download.Dir,
		Logger:      adapter.Component(logger, "scraper"),
	})
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	images := func(cols, rows int) *service.ImageService {
		// Half-block cells hold two pixel rows each
		return service.NewImageService(cache, service.ImageOptions{
			Referer:   cfg.Server.Referer,
			UserAgent: cfg.Server.UserAgent,
			MaxWidth:  cols,
			MaxHeight: rows * 2,
			Logger:    adapter.Component(logger, "images"),
		})
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    cache,
		catalog:  service.NewCatalogService(client, cache, adapter.Component(logger, "catalog")),
		thumbs:   images(cfg.UI.ThumbWidth, cfg.UI.ThumbHeight),
		posters:  images(cfg.UI.PosterWidth, cfg.UI.PosterHeight),
		launcher: adapter.NewLauncher(cfg.Player.Command, cfg.Player.Args, adapter.Component(logger, "player")),
	}, nil
}

// clearCacheStore empties the cached images and search history kept for
// serverURL
func clearCacheStore(cacheDir, serverURL string) error {
	if cacheDir == "" {
		return nil
	}
	cache, err := store.NewCacheStore(cacheDir, serverURL)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := cache.InvalidateAll(); err != nil {
		cache.Close()
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return cache.Close()
}

func (a *app) timeouts() nav.Timeouts {
	n := a.cfg.Network
	return nav.Timeouts{
		Search: n.SearchTimeout,
		Detail: n.DetailTimeout,
		Image:  n.ImageTimeout,
		Video:  n.VideoTimeout,
	}
}

func runTUI(a *app) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := tui.NewBridge()
	defer bridge.Close()

	taskLogger := adapter.Component(a.logger, "tasks")
	router := task.NewRouter(bridge, taskLogger)
	pool := task.NewPool(a.cfg.Workers.Count, router, taskLogger)
	pool.Start(ctx)
	defer pool.Stop()

	opts := nav.Options{
		Catalog:  a.catalog,
		Posters:  a.posters,
		Player:   a.launcher,
		Autoplay: a.cfg.Player.Autoplay,
		Timeouts: a.timeouts(),
		Logger:   adapter.Component(a.logger, "nav"),
	}
	if a.cfg.UI.Thumbnails {
		opts.Thumbs = a.thumbs
	}
	ctrl := nav.NewController(pool, opts)

	model := tui.NewModel(ctrl, bridge, tui.Options{
		Thumbnails:   a.cfg.UI.Thumbnails,
		ThumbWidth:   a.cfg.UI.ThumbWidth,
		ThumbHeight:  a.cfg.UI.ThumbHeight,
		PosterWidth:  a.cfg.UI.PosterWidth,
		PosterHeight: a.cfg.UI.PosterHeight,
		Suggester:    a.catalog,
		Stats:        pool.Stats,
		Logger:       adapter.Component(a.logger, "tui"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	a.logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	a.logger.Info("shutting down",
		"stats", pool.Stats().String(),
		"generation", ctrl.Generation())
	return nil
}

// runHeadless searches once on a task loop and prints the result list
func runHeadless(ctx context.Context, a *app, keyword string, out io.Writer) error {
	taskLogger := adapter.Component(a.logger, "tasks")

	loop := task.NewLoop(taskLogger)
	loop.Start(ctx)
	defer loop.Stop()

	router := task.NewRouter(loop, taskLogger)
	pool := task.NewPool(a.cfg.Workers.Count, router, taskLogger)
	pool.Start(ctx)
	defer pool.Stop()

	return searchAndPrint(ctx, loop, pool, a.catalog, a.timeouts(), a.logger, keyword, out)
}

// searchAndPrint drives one search through a controller and writes the
// rows and final status to out
func searchAndPrint(ctx context.Context, loop *task.Loop, submit nav.Submitter, catalog nav.Catalog,
	timeouts nav.Timeouts, logger *slog.Logger, keyword string, out io.Writer) error {

	done := make(chan struct{})
	var ctrl *nav.Controller
	ctrl = nav.NewController(submit, nav.Options{
		Catalog:  catalog,
		Timeouts: timeouts,
		Logger:   adapter.Component(logger, "nav"),
		Observer: func(c nav.Change) {
			if c.Kind == nav.ChangeStatus && !ctrl.Busy() {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	})

	var submitErr error
	if !loop.Do(func() { submitErr = ctrl.SubmitSearch(keyword) }) {
		return errors.New("task loop stopped")
	}
	if submitErr != nil {
		return submitErr
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var (
		rows   []nav.Row
		status string
		failed bool
	)
	loop.Do(func() {
		rows = ctrl.Search().Rows()
		status, failed = ctrl.Status()
	})

	for i, row := range rows {
		fmt.Fprintf(out, "%3d. %s  [%s]\n", i+1, row.Label, row.ID)
	}
	if failed {
		return fmt.Errorf("search failed: %s", status)
	}
	fmt.Fprintln(out, status)
	return nil
}
