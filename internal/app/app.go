// Package app wires configuration into a runnable batch: it owns the render
// resource, the rate gate, the exporters and the optional record store.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"profile_spider/internal/access"
	"profile_spider/internal/config"
	"profile_spider/internal/db"
	"profile_spider/internal/logger"
	"profile_spider/internal/models"
	"profile_spider/internal/output"
	"profile_spider/internal/pipeline"
	"profile_spider/internal/ratelimit"
	"profile_spider/internal/render"
	"profile_spider/internal/session"
	"profile_spider/internal/targets"
)

// ErrBusy is returned when a batch is started while another one runs.
var ErrBusy = errors.New("a batch is already running")

// Store persists records and run history.
type Store interface {
	SaveRecord(ctx context.Context, runID string, rec models.Record) error
	SaveRun(ctx context.Context, run models.RunHistory) error
	GetStaleProfiles(ctx context.Context, thresholdHours, limit int) ([]string, error)
	GetStats(ctx context.Context) (db.Stats, error)
	GetProfile(ctx context.Context, normalizedURL string) (*models.ProfileDocument, error)
	Close() error
}

// RendererFactory opens the render resource for one batch.
type RendererFactory func(ctx context.Context) (render.Renderer, error)

// Outcome is everything one batch produced.
type Outcome struct {
	RunID   string
	Result  models.BatchResult
	Exports output.Exports
	Err     error
}

type App struct {
	cfg      *config.SpiderConfig
	status   *pipeline.RunStatus
	store    Store
	exporter *output.Exporter

	openRenderer RendererFactory
	pipelineOpts []pipeline.Option
	gateOpts     []ratelimit.Option
	now          func() time.Time
}

type Option func(*App)

func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

func WithRendererFactory(f RendererFactory) Option {
	return func(a *App) { a.openRenderer = f }
}

// WithPipelineOptions appends options applied after the configured ones.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(a *App) { a.pipelineOpts = append(a.pipelineOpts, opts...) }
}

func WithGateOptions(opts ...ratelimit.Option) Option {
	return func(a *App) { a.gateOpts = append(a.gateOpts, opts...) }
}

// New builds the app. When db.enabled is set and no store was given, MongoDB
// is connected here.
func New(ctx context.Context, cfg *config.SpiderConfig, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		status:   pipeline.NewRunStatus(),
		exporter: output.NewExporter(cfg.Output.Dir, *cfg.Output.XLSX, *cfg.Output.JSON),
		now:      time.Now,
	}
	a.openRenderer = a.defaultRenderer
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil && cfg.DB.Enabled {
		mongoDB, err := db.NewMongoDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		a.store = mongoDB
		logger.Logger.Infow("record store connected", "database", cfg.DB.Database)
	}
	return a, nil
}

func (a *App) Status() *pipeline.RunStatus {
	return a.status
}

// Close releases the record store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Scrape runs one batch to completion. It fails with ErrBusy when another
// batch holds the status.
func (a *App) Scrape(ctx context.Context, targets []models.Target) (Outcome, error) {
	if !a.status.TryStart(len(targets)) {
		return Outcome{}, ErrBusy
	}
	out := a.run(ctx, targets)
	return out, out.Err
}

// Start runs a batch in the background. The busy check happens before it
// returns; done, when non-nil, receives the outcome.
func (a *App) Start(ctx context.Context, targets []models.Target, done func(Outcome)) error {
	if !a.status.TryStart(len(targets)) {
		return ErrBusy
	}
	go func() {
		out := a.run(ctx, targets)
		if done != nil {
			done(out)
		}
	}()
	return nil
}

// StaleTargets lists stored profiles not scraped for thresholdHours.
func (a *App) StaleTargets(ctx context.Context, thresholdHours, limit int) ([]models.Target, error) {
	if a.store == nil {
		return nil, errors.WithHint(errors.New("record store disabled"), "set db.enabled: true")
	}
	urls, err := a.store.GetStaleProfiles(ctx, thresholdHours, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Target, len(urls))
	for i, u := range urls {
		out[i] = models.Target{URL: u, Index: i + 1}
	}
	return out, nil
}

// Stats reports on the record store; ok is false when it is disabled.
func (a *App) Stats(ctx context.Context) (stats db.Stats, ok bool, err error) {
	if a.store == nil {
		return db.Stats{}, false, nil
	}
	stats, err = a.store.GetStats(ctx)
	return stats, true, err
}

// Profile returns the stored document for a profile URL, or nil when it was
// never scraped. ok is false when the record store is disabled.
func (a *App) Profile(ctx context.Context, profileURL string) (doc *models.ProfileDocument, ok bool, err error) {
	if a.store == nil {
		return nil, false, nil
	}
	doc, err = a.store.GetProfile(ctx, targets.NormalizeURL(profileURL))
	return doc, true, err
}

// runID names a batch by its start time to the millisecond.
func runID(started time.Time) string {
	return fmt.Sprintf("run_%s_%03d", started.Format("20060102_150405"), started.Nanosecond()/int(time.Millisecond))
}

// run assumes the status was started by the caller and always finishes it.
func (a *App) run(ctx context.Context, targets []models.Target) (out Outcome) {
	started := a.now()
	out.RunID = runID(started)
	log := logger.Named("app").With("run_id", out.RunID)

	defer a.status.Finish()
	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.Newf("batch panicked: %v", r)
			a.status.AddError(out.Err)
			log.Errorw("batch panicked", logger.FieldError, r)
		}
	}()

	if len(targets) == 0 {
		out.Err = errors.WithHintf(pipeline.ErrNoTargets, "add profile URLs to %s", a.cfg.Input.TargetsFile)
		a.status.AddError(out.Err)
		return out
	}

	renderer, err := a.openRenderer(ctx)
	if err != nil {
		out.Err = err
		a.status.AddError(err)
		log.Errorw("could not open renderer", logger.FieldError, err)
		return out
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Warnw("closing renderer", logger.FieldError, err)
		}
	}()

	gate := ratelimit.NewGate(
		a.cfg.RateLimiting.RequestsPerMinute,
		a.cfg.RateWindow(),
		append([]ratelimit.Option{ratelimit.WithEpsilon(a.cfg.RateEpsilon())}, a.gateOpts...)...,
	)

	opts := []pipeline.Option{
		pipeline.WithClassifier(access.NewClassifier(a.cfg.Access.WallMarkers, a.cfg.Access.RestrictionPhrases)),
		pipeline.WithRestrictedPolicy(pipeline.ParseRestrictedPolicy(a.cfg.Access.RestrictedPolicy)),
		pipeline.WithDelay(a.cfg.Delay()),
		pipeline.WithStatus(a.status),
	}
	if a.store != nil {
		opts = append(opts, pipeline.OnRecord(func(rec models.Record) {
			if err := a.store.SaveRecord(ctx, out.RunID, rec); err != nil {
				log.Warnw("could not store record",
					logger.FieldTarget, rec.Str(models.FieldProfileURL),
					logger.FieldError, err,
				)
			}
		}))
	}
	opts = append(opts, a.pipelineOpts...)

	out.Result, out.Err = pipeline.New(gate, renderer, opts...).Run(ctx, targets)
	if out.Err != nil {
		a.status.AddError(out.Err)
	}

	exports, err := a.exporter.Export(out.Result.Records)
	if err != nil {
		log.Errorw("export failed", logger.FieldError, err)
		a.status.AddError(err)
		if out.Err == nil {
			out.Err = err
		}
	}
	out.Exports = exports
	for kind, path := range exports.Kinds() {
		a.status.SetExport(kind, path)
	}

	a.saveRun(log, out, started)
	return out
}

func (a *App) saveRun(log *zap.SugaredLogger, out Outcome, started time.Time) {
	if a.store == nil {
		return
	}
	run := models.RunHistory{
		ID:         out.RunID,
		StartedAt:  started.Unix(),
		FinishedAt: a.now().Unix(),
		Attempted:  out.Result.Attempted,
		Emitted:    out.Result.Emitted(),
		Failed:     out.Result.Failed,
		Limited:    out.Result.Limited,
		Exports:    exportPaths(out.Exports),
		Errors:     a.status.Snapshot().Errors,
	}
	// the batch context may already be cancelled
	if err := a.store.SaveRun(context.Background(), run); err != nil {
		log.Warnw("could not store run", logger.FieldError, err)
	}
}

func exportPaths(e output.Exports) []string {
	var out []string
	for _, p := range []string{e.CSV, e.XLSX, e.JSON} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *App) defaultRenderer(ctx context.Context) (render.Renderer, error) {
	switch a.cfg.Scraping.Renderer {
	case render.KindHTTP:
		return a.httpRenderer()
	case render.KindBrowser:
		return a.browserRenderer(ctx)
	default:
		return nil, errors.WithHintf(
			errors.Wrapf(render.ErrRendererUnavailable, "unknown renderer %q", a.cfg.Scraping.Renderer),
			"set scraping.renderer to %s or %s", render.KindBrowser, render.KindHTTP)
	}
}

func (a *App) httpRenderer() (render.Renderer, error) {
	h := render.NewHTTP(render.HTTPOptions{
		Timeout:          time.Duration(a.cfg.HTTP.TimeoutSec) * time.Second,
		UserAgent:        a.cfg.HTTP.UserAgent,
		RespectRobots:    a.cfg.HTTP.RespectRobots,
		CloudflareBypass: a.cfg.HTTP.CloudflareBypass,
	})
	if cookies := session.Cookies(a.cfg.HTTP.SessionCookie); cookies != nil {
		if err := h.SetCookies(session.SiteURL, cookies); err != nil {
			return nil, err
		}
		logger.Logger.Infow("session cookie installed", logger.FieldRenderer, render.KindHTTP)
	}
	return h, nil
}

func (a *App) browserRenderer(ctx context.Context) (render.Renderer, error) {
	b, err := render.NewBrowser(ctx, render.BrowserOptions{
		Headless:     a.cfg.Browser.Headless,
		WindowWidth:  a.cfg.Browser.WindowSize[0],
		WindowHeight: a.cfg.Browser.WindowSize[1],
		UserAgent:    a.cfg.Browser.UserAgent,
		UserDataDir:  a.cfg.Browser.UserDataDir,
		ExecPath:     a.cfg.Browser.ExecPath,
		Proxy:        a.cfg.Browser.Proxy,
		PageLoadWait: a.cfg.PageLoadWait(),
		Timeout:      time.Duration(a.cfg.Scraping.RenderTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, errors.WithHint(err, "install Chrome, set browser.exec_path, or use scraping.renderer: http")
	}

	if a.cfg.LinkedIn.AutoLogin {
		creds := session.Credentials{Email: a.cfg.LinkedIn.Email, Password: a.cfg.LinkedIn.Password}
		if err := session.Login(b.Context(), creds, 0); err != nil {
			// pages may still render; walled ones degrade to fallback
			logger.Logger.Warnw("login failed, continuing without a session",
				logger.FieldError, err,
				"hint", errors.FlattenHints(err),
			)
		}
	}
	return b, nil
}
