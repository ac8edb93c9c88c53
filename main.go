package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/vudial/internal/config"
	"github.com/olivier-w/vudial/internal/feed"
	"github.com/olivier-w/vudial/internal/meter"
	"github.com/olivier-w/vudial/internal/notify"
	"github.com/olivier-w/vudial/internal/source"
	"github.com/olivier-w/vudial/internal/ui"
	"github.com/olivier-w/vudial/internal/update"
	"github.com/olivier-w/vudial/internal/watch"
)

// Version is stamped by the release build.
var Version = "dev"

// tapFrames covers the largest analysis window a session can ask for.
const tapFrames = 32768

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "config file (default: the per-user config dir)")
		refDB         = flag.Float64("ref", 0, "0 VU reference in dBFS (default -18 stereo, -20 mono)")
		channelMode   = flag.String("channel", "", "channel to meter: mono, left or right")
		windowSec     = flag.Float64("window", 0, "analysis window in seconds")
		feedAddr      = flag.String("feed", "", "serve the WebSocket level feed on this address, e.g. :9090")
		watchSilence  = flag.Bool("watch", false, "enable the silence watch")
		logPath       = flag.String("log", "", "append feed and watch activity to this file")
		noUpdateCheck = flag.Bool("no-update-check", false, "skip the release check")
		showVersion   = flag.Bool("version", false, "print the version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("vudial " + Version)
		return nil
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	arg := flag.Arg(0)

	path := *configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// Flags outrank the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ref":
			cfg.Meter.ReferenceDB = *refDB
		case "channel":
			cfg.Meter.ChannelMode = *channelMode
		case "window":
			cfg.Meter.WindowSec = *windowSec
		case "feed":
			cfg.Feed.Addr = *feedAddr
		case "watch":
			cfg.Watch.Enabled = *watchSilence
		case "no-update-check":
			cfg.Update.Disabled = *noUpdateCheck
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(*logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	tap := source.NewTap(tapFrames)
	src, err := openSource(arg, tap)
	if err != nil {
		return err
	}
	defer src.close()

	mcfg, err := cfg.Meter.Apply(meter.DefaultConfig(src.rate, src.channels))
	if err != nil {
		return err
	}
	session, err := meter.NewSession(mcfg)
	if err != nil {
		return err
	}

	var observers []ui.Observer

	if cfg.Feed.Addr != "" {
		hub := feed.NewHub(logger)
		srv := hub.Start(cfg.Feed.Addr)
		observers = append(observers, hub)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	if cfg.Watch.Enabled {
		observers = append(observers, watch.NewWatcher(cfg.Watch.Build(), logger, buildSinks(cfg.Notify, arg)...))
	}

	var updateCh <-chan string
	if !cfg.Update.Disabled {
		updateCh = update.NewChecker(Version).Hints()
	}

	var titles <-chan string
	if src.watcher != nil {
		titles = src.watcher.Updates()
	}

	model := ui.New(ui.Options{
		Session:   session,
		Tap:       tap,
		Player:    src.player,
		Pump:      src.pump,
		Title:     src.title,
		Detail:    src.detail,
		Observers: observers,
		Titles:    titles,
		UpdateCh:  updateCh,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}
	return nil
}

// buildLogger writes daemon-side activity to a file. The TUI owns the
// terminal, so without -log everything is discarded.
func buildLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}

// buildSinks assembles the notification sinks with settings filled in.
func buildSinks(n config.NotifyConfig, sourceName string) []watch.Notifier {
	var sinks []watch.Notifier
	if n.HasWebhook() {
		sinks = append(sinks, &notify.Webhook{URL: n.WebhookURL, Source: sourceName})
	}
	if n.HasEmail() {
		sinks = append(sinks, &notify.Email{
			Host:       n.Email.Host,
			Port:       n.Email.Port,
			FromName:   n.Email.FromName,
			Username:   n.Email.Username,
			Password:   n.Email.Password,
			Recipients: n.Email.Recipients,
			Source:     sourceName,
		})
	}
	if n.HasLog() {
		sinks = append(sinks, &notify.LogFile{Path: n.LogPath, Source: sourceName})
	}
	return sinks
}

func usage() {
	fmt.Fprintf(os.Stderr, `vudial - terminal VU meter

Usage:
  vudial [flags] <file | url | device>

Sources:
  audio files    %s
  stream URLs    http:// and https:// (Icecast/Shoutcast)
  devices        device:NAME, hw:..., plughw:..., default

Flags:
`, source.SupportedExtsList())
	flag.PrintDefaults()
}
