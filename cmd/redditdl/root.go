package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/EmmEff/RedditImageGrab/pkg/config"
	"github.com/EmmEff/RedditImageGrab/pkg/fetcher"
	"github.com/EmmEff/RedditImageGrab/pkg/logger"
	"github.com/EmmEff/RedditImageGrab/pkg/reddit"
	"github.com/EmmEff/RedditImageGrab/pkg/resolver"
	"github.com/EmmEff/RedditImageGrab/pkg/retry"
	"github.com/EmmEff/RedditImageGrab/pkg/storage"
	"github.com/EmmEff/RedditImageGrab/pkg/ui"
	"github.com/EmmEff/RedditImageGrab/pkg/walker"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool

	// Run flags
	lastID       string
	minScore     int
	numDownloads int
	updateMode   bool
	sfwOnly      bool
	nsfwOnly     bool
	titleRegex   string
	timeoutSecs  int
	userAgent    string
)

// rootCmd is the single download command; there are no subcommands.
var rootCmd = &cobra.Command{
	Use:   "redditdl <subreddit> <destdir>",
	Short: "Download images linked from a subreddit into a local directory",
	Long: `redditdl pages through a subreddit's listing feed, filters postings by
score, NSFW flag, and title, and downloads the linked images into a local
directory. Imgur albums are expanded into their individual images, and files
already present in the destination directory are never downloaded twice.`,
	Example: `  # Download everything from r/pics into ./pics
  redditdl pics ./pics

  # Only postings scored 50 or higher, stop after 20 downloads
  redditdl pics ./pics --score 50 --num 20

  # Incremental sync: stop at the first file already on disk
  redditdl pics ./pics --update

  # Resume paging after a known posting id
  redditdl pics ./pics --last 1wxyz`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runDownload(args)
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&lastID, "last", "", "id of the last downloaded posting; paging starts after it")
	rootCmd.Flags().IntVar(&minScore, "score", 0, "minimum score of postings to download")
	rootCmd.Flags().IntVar(&numDownloads, "num", 0, "stop after this many downloads (0 = unlimited)")
	rootCmd.Flags().BoolVar(&updateMode, "update", false, "run until a file already downloaded is encountered")
	rootCmd.Flags().BoolVar(&sfwOnly, "sfw", false, "download safe-for-work postings only")
	rootCmd.Flags().BoolVar(&nsfwOnly, "nsfw", false, "download NSFW postings only")
	rootCmd.Flags().StringVar(&titleRegex, "regex", "", "only download postings whose title matches from the start")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit per-item skip/accept diagnostics")

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.redditdl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().IntVar(&timeoutSecs, "timeout", 30, "HTTP timeout in seconds")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "override the HTTP user agent")

	rootCmd.SetVersionTemplate(`redditdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func runDownload(args []string) {
	subreddit := reddit.SanitizeSubreddit(args[0])
	destDir := args[1]

	if quiet || logLevel == "error" {
		ui.SetQuietMode(true)
	}

	if !reddit.IsValidSubreddit(subreddit) {
		ui.PrintError("Invalid subreddit name", subreddit)
		os.Exit(1)
	}

	// Verbose run diagnostics are the debug log level.
	if verbose {
		logLevel = "debug"
	}

	flags := make(map[string]interface{})
	flags["directory"] = destDir
	if timeoutSecs != 30 {
		flags["timeout"] = time.Duration(timeoutSecs) * time.Second
	}
	if userAgent != "" {
		flags["user-agent"] = userAgent
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("redditdl starting")

	var pattern *regexp.Regexp
	if titleRegex != "" {
		pattern, err = regexp.Compile(titleRegex)
		if err != nil {
			ui.PrintError("Invalid title regex", err.Error())
			os.Exit(1)
		}
	}

	// The destination directory must exist before any network activity.
	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		log.WithError(err).Error("Failed to create destination directory")
		ui.PrintError("Failed to create destination directory", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Downloading images from subreddit", subreddit)
	ui.PrintInfo("Destination", store.OutputDir())

	client := reddit.NewClient(cfg.Reddit.BaseURL, cfg.Reddit.UserAgent, cfg.Download.Timeout, log)
	client.SetPageLimit(cfg.Reddit.PageLimit)

	res := resolver.New(resolver.NewHashExtractor(client, log), log)
	dl := fetcher.New(client, store, log)

	var retryCfg *retry.Config
	if cfg.Download.RetryAttempts > 0 {
		retryCfg = &retry.Config{
			MaxAttempts: cfg.Download.RetryAttempts,
			Backoff:     &retry.ConstantBackoff{Delay: cfg.Download.RetryDelay},
			RetryIf:     retry.DefaultRetryIf,
			Context:     context.Background(),
			Logger:      log,
		}
	}

	opts := walker.Options{
		Subreddit:  subreddit,
		LastID:     lastID,
		MinScore:   minScore,
		Limit:      numDownloads,
		Update:     updateMode,
		SFWOnly:    sfwOnly,
		NSFWOnly:   nsfwOnly,
		TitleRegex: pattern,
	}

	w := walker.New(client, res, dl, opts, retryCfg, log)
	state, err := w.Run()
	if err != nil {
		log.WithError(err).WithField("subreddit", subreddit).Error("Run aborted")
		ui.PrintError("Run aborted", err.Error())
		os.Exit(1)
	}

	c := state.Counters
	ui.PrintSuccess(fmt.Sprintf("Downloaded %d files (Processed %d, Skipped %d, Exists %d)",
		c.Downloaded, c.Total, c.Skipped, c.Duplicates))
}
