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
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/mangashelf/internal/config"
	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/library"
	"github.com/mmcdole/mangashelf/internal/log"
	"github.com/mmcdole/mangashelf/internal/opener"
	"github.com/mmcdole/mangashelf/internal/remote"
	"github.com/mmcdole/mangashelf/internal/search"
	"github.com/mmcdole/mangashelf/internal/store"
	"github.com/mmcdole/mangashelf/internal/tui"
	"github.com/mmcdole/mangashelf/internal/tui/styles"
	"github.com/mmcdole/mangashelf/internal/view"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

type options struct {
	syncOnly    bool
	plain       bool
	sort        string
	category    string
	favorites   bool
	unread      bool
	clearCache  bool
	writeConfig bool
}

func main() {
	var showVersion bool
	var opts options
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.syncOnly, "sync", false, "sync the catalog and exit")
	flag.BoolVar(&opts.plain, "plain", false, "print the catalog instead of starting the browser")
	flag.StringVar(&opts.sort, "sort", "", "initial order: year_asc, score_asc, score_desc, popularity_asc, popularity_desc")
	flag.StringVar(&opts.category, "category", "", "only list titles in the closest matching category (plain mode)")
	flag.BoolVar(&opts.favorites, "favorites", false, "only list favorites (plain mode)")
	flag.BoolVar(&opts.unread, "unread", false, "only list titles not yet read (plain mode)")
	flag.BoolVar(&opts.clearCache, "clear-cache", false, "delete the local catalog and exit")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "write the effective configuration and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mangashelf %s\n", Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.writeConfig {
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("✓ Configuration saved")
		return nil
	}

	if opts.clearCache {
		if err := cfg.ClearCache(); err != nil {
			return err
		}
		fmt.Printf("✓ Cleared %s\n", cfg.Store.Path)
		return nil
	}

	// Setup logger
	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting mangashelf", "version", Version, "remote", cfg.Remote.URL, "driver", cfg.Store.Driver)

	sortType := cfg.Browse.Sort()
	if opts.sort != "" {
		if sortType, err = domain.ParseSortType(opts.sort); err != nil {
			return err
		}
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path, cfg.Remote.URL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client := remote.NewClient(cfg.Remote.URL, remote.Options{
		Timeout:     cfg.Remote.Timeout,
		MinInterval: cfg.Remote.MinInterval,
		UserAgent:   cfg.Remote.UserAgent,
	}, logger)

	lib := library.NewService(client, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))

	if opts.syncOnly {
		outcome := syncWithSpinner(ctx, lib, cfg.Remote.Timeout, interactive)
		return reportOutcome(os.Stdout, outcome)
	}

	if opts.plain || !interactive || opts.category != "" || opts.favorites || opts.unread {
		return runPlain(ctx, lib, cfg.Remote.Timeout, sortType, opts, interactive)
	}

	model := tui.NewModel(lib, search.NewService(logger), tui.Options{
		Sort:             sortType,
		PageSize:         cfg.Browse.PageSize,
		PrefetchDistance: cfg.Browse.PrefetchDistance,
		SyncTimeout:      cfg.Remote.Timeout,
		Opener:           opener.New(cfg.Viewer.Command, cfg.Viewer.Args, logger),
	}, logger)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runPlain syncs once and prints the catalog as a table
func runPlain(ctx context.Context, lib *library.Service, timeout time.Duration, sortType domain.SortType, opts options, interactive bool) error {
	outcome := syncWithSpinner(ctx, lib, timeout, interactive)
	if msg := domain.OutcomeMessage(outcome); msg != "" {
		return errors.New(msg)
	}
	if domain.IsOffline(outcome) {
		fmt.Fprintln(os.Stderr, "Showing cached catalog: remote unavailable")
	}

	v, err := lib.BuildView(sortType)
	if err != nil {
		return err
	}

	filter, err := plainFilter(v, opts)
	if err != nil {
		return err
	}
	return printCatalog(os.Stdout, v.Apply(filter))
}

// plainFilter turns the listing flags into a view filter
func plainFilter(v view.View, opts options) (view.Filter, error) {
	filter := view.Filter{FavoritesOnly: opts.favorites, UnreadOnly: opts.unread}
	if opts.category != "" {
		matches := search.Categories(v.Categories(), opts.category)
		if len(matches) == 0 {
			return view.Filter{}, fmt.Errorf("no category matches %q", opts.category)
		}
		filter.Category = matches[0]
	}
	return filter, nil
}

func printCatalog(w io.Writer, v view.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tSCORE\tPOPULARITY\tCATEGORY\tFLAGS\tTITLE")
	for _, item := range v.Ordered {
		flags := ""
		if item.Manga.IsFavorite {
			flags += styles.FavoriteChar
		}
		if item.Manga.IsRead {
			flags += styles.ReadChar
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			item.Year, item.Manga.FormattedScore(), item.Manga.Popularity,
			item.Manga.Category, flags, item.Manga.Title)
	}
	return tw.Flush()
}

func reportOutcome(w io.Writer, outcome domain.FetchOutcome) error {
	switch o := outcome.(type) {
	case domain.Success:
		fmt.Fprintf(w, "✓ Synced %d titles (%d new)\n", o.Fetched, o.Inserted)
	case domain.DatabaseOnly:
		fmt.Fprintf(w, "! Remote unavailable, %d titles cached (%s)\n", o.Cached, o.Reason)
	default:
		return errors.New(domain.OutcomeMessage(outcome))
	}
	return nil
}

// syncWithSpinner runs one sync, animating a spinner on a terminal
func syncWithSpinner(ctx context.Context, lib *library.Service, timeout time.Duration, interactive bool) domain.FetchOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan domain.FetchOutcome, 1)
	go func() {
		resultCh <- lib.Sync(ctx)
	}()

	if !interactive {
		return <-resultCh
	}

	frame := 0
	fmt.Printf("\r%s Syncing catalog...", styles.SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case outcome := <-resultCh:
			fmt.Print(clearSpinnerLine)
			return outcome
		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Syncing catalog...", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])
		}
	}
}
