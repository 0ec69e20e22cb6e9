package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dwarchive/pkg/archive"
	"dwarchive/pkg/auth"
	"dwarchive/pkg/config"
	"dwarchive/pkg/dawanda"
	"dwarchive/pkg/exporter"
	"dwarchive/pkg/logger"
	"dwarchive/pkg/metrics"
	"dwarchive/pkg/ratelimit"
	"dwarchive/pkg/ui"
)

// credentialPrompter asks the operator for a user name and password
type credentialPrompter interface {
	Credentials() (username, password string, err error)
}

// sessionStore is the part of auth.Manager the export uses
type sessionStore interface {
	Retrieve(site string) (*auth.Session, error)
	Store(session *auth.Session) error
	Delete(site string) error
}

// env holds the process-level dependencies of an export run
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	prompter credentialPrompter
	sessions func() (sessionStore, error)
	sleep    func(time.Duration)
	now      func() time.Time
}

func newEnv() *env {
	return &env{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		prompter: ui.NewPrompter(),
		sessions: func() (sessionStore, error) { return auth.NewManager() },
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// runExport performs one export and returns the process exit code. Once
// the run has started every exit waits for the configured delay first.
func runExport(ctx context.Context, e *env, configPath string, flags map[string]interface{}, remember bool) int {
	console := ui.NewConsole(e.stdout, e.stderr)

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		console.Fail(fmt.Sprintf("Failed to load configuration: %v", err))
		return 1
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		console.Fail(fmt.Sprintf("Failed to initialize logging: %v", err))
		return 1
	}
	log := logger.GetLogger()

	client, err := dawanda.NewClient(dawanda.Options{
		BaseURL:   cfg.Site.BaseURL,
		UserAgent: cfg.Site.UserAgent,
		Timeout:   cfg.Site.Timeout,
		Debug:     cfg.Logging.Debug,
		Limiter:   ratelimit.PerMinute(cfg.Site.RequestsPerMinute),
	}, log)
	if err != nil {
		console.Fail(fmt.Sprintf("Failed to create client: %v", err))
		return 1
	}

	exit := func(code int) int {
		e.sleep(cfg.Export.ExitDelay)
		return code
	}

	site := auth.SiteKey(cfg.Site.BaseURL)
	token := cfg.Site.SessionCookie

	var sessions sessionStore
	if token == "" || remember {
		if sessions, err = e.sessions(); err != nil {
			log.WithError(err).Warn("session storage unavailable")
			sessions = nil
		}
	}

	fromStore := false
	if token == "" && sessions != nil {
		if stored, err := sessions.Retrieve(site); err == nil {
			token = stored.Token
			fromStore = true
			log.WithField("site", site).Info("using remembered session")
		}
	}

	if token != "" {
		client.SetSessionToken(token)
	} else {
		username, password, err := e.prompter.Credentials()
		if err == nil {
			err = client.Login(ctx, username, password)
		}
		if err != nil {
			log.WithError(err).Error("login failed")
			console.Fail("LOGIN FAILED.")
			return exit(1)
		}
	}

	path := cfg.ArchivePath(e.now())
	console.Step("output: " + path)

	w, err := archive.Open(path)
	if err != nil {
		log.WithError(err).Error("failed to create archive")
		console.Fail(fmt.Sprintf("Failed to create archive: %v", err))
		return exit(1)
	}

	summary, err := exporter.New(client, exporter.Options{
		SkipRatings:    cfg.Export.SkipRatings,
		SkipProducts:   cfg.Export.SkipProducts,
		SkipImages:     cfg.Export.SkipImages,
		DiagnosticsDir: cfg.Output.DiagnosticsDir,
		MetricsFile:    cfg.Output.MetricsFile,
		Display:        console,
		Metrics:        metrics.New(),
		Logger:         log,
	}).Run(ctx, w)

	switch {
	case errors.Is(err, exporter.ErrNotLoggedIn):
		if fromStore {
			if err := sessions.Delete(site); err != nil {
				log.WithError(err).Warn("failed to remove expired session")
			} else {
				log.WithField("site", site).Warn("remembered session expired and was removed")
			}
		}
		return exit(1)
	case err != nil:
		log.WithError(err).Error("export failed")
		console.Fail(fmt.Sprintf("Export failed: %v", err))
		return exit(1)
	}

	if remember {
		rememberSession(log, sessions, &auth.Session{
			Site:     site,
			Username: summary.Username,
			Token:    client.SessionToken(),
		})
	}

	console.Done(summary.Tallies()...)
	return exit(0)
}

func rememberSession(log logger.Logger, sessions sessionStore, session *auth.Session) {
	if sessions == nil {
		log.Warn("cannot remember session without session storage")
		return
	}
	if err := sessions.Store(session); err != nil {
		log.WithError(err).Warn("failed to remember session")
		return
	}
	log.WithField("site", session.Site).Info("session remembered")
}
