package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bililottery/pkg/auth"
	"bililottery/pkg/bilibili"
	"bililottery/pkg/config"
	"bililottery/pkg/harvest"
	"bililottery/pkg/logger"
	"bililottery/pkg/throttle"
	"bililottery/pkg/wbi"
)

// app bundles the wired-up components a subcommand needs.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	client    *bilibili.Client
	signer    *wbi.Signer
	harvester *harvest.Harvester
}

// newApp loads configuration, resolves credentials, and wires the client,
// signer and harvester together.
func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	session := resolveSession(cfg, log)
	if !session.Valid() {
		log.Warn("no session cookies found, crawling unauthenticated")
	}

	rules := make([]throttle.Rule, 0, len(cfg.Throttle.Rules))
	for _, r := range cfg.Throttle.Rules {
		rules = append(rules, throttle.Rule{Threshold: r.Threshold, Pause: r.Pause})
	}
	ctrl := throttle.NewController(rules, log)
	ctrl.Subscribe(func(e throttle.Event) {
		fmt.Fprintf(os.Stderr, "throttle: %d requests reached, pausing %s\n", e.Count, e.Pause)
	})

	client := bilibili.New(&cfg.API, session, ctrl, log)
	signer := wbi.NewSigner(client.WbiKeys, wbi.WithLogger(log))

	return &app{
		cfg:       cfg,
		log:       log,
		client:    client,
		signer:    signer,
		harvester: harvest.New(client, signer, &cfg.Harvest, log),
	}, nil
}

// resolveSession prefers the credential chain (keychain, environment) and
// falls back to cookies from the config file.
func resolveSession(cfg *config.Config, log logger.Logger) *auth.Session {
	if session, err := auth.NewManager().Load(); err == nil {
		return session
	}
	if cfg.Session.SessData != "" {
		log.Debug("using session cookies from configuration")
		return &auth.Session{
			SessData: cfg.Session.SessData,
			BiliJct:  cfg.Session.BiliJct,
			Buvid3:   cfg.Session.Buvid3,
		}
	}
	return nil
}

// commandContext returns a context cancelled by SIGINT/SIGTERM, so an
// in-flight crawl stops at the next blocking point.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// emitJSON writes v to stdout as indented JSON.
func emitJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// loadResumeState reads a ResumeState snapshot, if the file exists.
func loadResumeState(path string) (*harvest.ResumeState, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read resume file: %w", err)
	}
	state := &harvest.ResumeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse resume file: %w", err)
	}
	return state, nil
}

// saveResumeState writes the snapshot a later invocation continues from.
func saveResumeState(path string, state *harvest.ResumeState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// progressPrinter reports crawl progress to stderr unless quiet.
func progressPrinter(label string) func(processed, total int) {
	if quiet {
		return nil
	}
	return func(processed, total int) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "%s: %d/%d\n", label, processed, total)
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %d\n", label, processed)
	}
}
