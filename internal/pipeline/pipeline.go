// Package pipeline drives targets through render, classification and
// extraction one at a time, collecting the records that come out.
package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"

	"profile_spider/internal/access"
	"profile_spider/internal/extract"
	"profile_spider/internal/logger"
	"profile_spider/internal/models"
	"profile_spider/internal/ratelimit"
	"profile_spider/internal/render"
)

var (
	// ErrNoTargets is returned by Run before any work when the batch is empty.
	ErrNoTargets = errors.New("no targets to process")
	// ErrRenderFailure marks a target whose page could not be obtained.
	ErrRenderFailure = errors.New("render failure")
	// ErrAccessDenied marks a walled target that not even the fallback could
	// name.
	ErrAccessDenied = errors.New("access denied")
	// ErrExtractionEmpty is logged for records that carry no meaningful
	// field. Those records are still emitted.
	ErrExtractionEmpty = errors.New("extraction empty")
)

// DefaultDelay is the base pause after each target.
const DefaultDelay = 3 * time.Second

// Renderer produces the rendered page for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (models.Page, error)
}

// Admitter paces outbound requests.
type Admitter interface {
	Admit(ctx context.Context) time.Duration
}

type Pipeline struct {
	gate       Admitter
	renderer   Renderer
	classifier *access.Classifier
	extractor  *extract.Extractor
	fallback   *extract.Fallback

	delay  time.Duration
	policy RestrictedPolicy
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() float64

	status   *RunStatus
	onRecord func(models.Record)
}

type Option func(*Pipeline)

func WithClassifier(c *access.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

func WithFallback(f *extract.Fallback) Option {
	return func(p *Pipeline) { p.fallback = f }
}

// WithDelay sets the base delay after each target; the actual pause is
// uniform in [d, 2d].
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.delay = d
		}
	}
}

func WithRestrictedPolicy(policy RestrictedPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithSleep replaces the sleeper and the jitter source, for tests. jitter
// must return values in [0, 1).
func WithSleep(sleep func(ctx context.Context, d time.Duration), jitter func() float64) Option {
	return func(p *Pipeline) {
		if sleep != nil {
			p.sleep = sleep
		}
		if jitter != nil {
			p.jitter = jitter
		}
	}
}

func WithStatus(s *RunStatus) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.status = s
		}
	}
}

// OnRecord registers a callback invoked with each emitted record, in order.
func OnRecord(fn func(models.Record)) Option {
	return func(p *Pipeline) { p.onRecord = fn }
}

func New(gate Admitter, renderer Renderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:     gate,
		renderer: renderer,
		delay:    DefaultDelay,
		policy:   RestrictedExtract,
		sleep:    ratelimit.Sleep,
		jitter:   rand.Float64,
		status:   NewRunStatus(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.classifier == nil {
		p.classifier = access.Default()
	}
	if p.fallback == nil {
		p.fallback = extract.NewFallback(extract.DefaultSiteName)
	}
	if p.extractor == nil {
		p.extractor = extract.New(p.fallback)
	}
	return p
}

func (p *Pipeline) Status() *RunStatus {
	return p.status
}

// Run processes targets strictly in order. A failed target leaves a gap and
// the batch carries on. Cancellation stops the batch between targets; the
// records gathered so far are returned with the context error.
func (p *Pipeline) Run(ctx context.Context, targets []models.Target) (models.BatchResult, error) {
	var result models.BatchResult

	if len(targets) == 0 {
		return result, ErrNoTargets
	}
	if p.renderer == nil {
		return result, errors.WithHint(render.ErrRendererUnavailable, "configure scraping.renderer as browser or http")
	}

	start := time.Now()
	log := logger.Named("pipeline")
	log.Infow("batch started", logger.FieldTotalCount, len(targets))

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			log.Warnw("batch interrupted",
				logger.FieldCount, result.Attempted,
				logger.FieldTotalCount, len(targets),
			)
			return result, errors.Wrap(err, "batch interrupted")
		}

		p.status.setCurrent(t.Index)
		result.Attempted++

		rec, err := p.Process(ctx, t)
		if err != nil {
			result.Failed++
			p.status.addFailed(err)
		} else {
			if rec.Str(models.FieldExtractionMethod) == models.MethodLimited ||
				rec.Str(models.FieldExtractionStatus) == models.StatusLimitedData {
				result.Limited++
			}
			result.Records = append(result.Records, rec)
			p.status.addScraped()
			if p.onRecord != nil {
				p.onRecord(rec)
			}
		}

		// every target, the last included, is followed by a pause
		p.pause(ctx)
	}

	log.Infow("batch finished",
		logger.FieldCount, result.Emitted(),
		logger.FieldTotalCount, len(targets),
		"failed", result.Failed,
		"limited", result.Limited,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Process takes one target from Pending to Done or Failed. A Failed target
// yields a nil record and an error marked with ErrRenderFailure or
// ErrAccessDenied.
func (p *Pipeline) Process(ctx context.Context, t models.Target) (rec models.Record, err error) {
	start := time.Now()
	log := logger.Named("pipeline").With(logger.FieldTarget, t.URL, logger.FieldIndex, t.Index)

	transition := func(s State, keysAndValues ...any) {
		kv := append([]any{
			logger.FieldState, s.String(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		}, keysAndValues...)
		if s == StateFailed {
			log.Warnw("target transition", kv...)
			return
		}
		log.Infow("target transition", kv...)
	}

	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = errors.Newf("target %s: unexpected failure: %v", t.URL, r)
			transition(StateFailed, logger.FieldError, err)
		}
	}()

	transition(StatePending)

	waited := p.gate.Admit(ctx)
	transition(StateRendering, logger.FieldWaitMS, waited.Milliseconds())

	page, rerr := p.renderer.Render(ctx, t.URL)
	if rerr == nil && page.HTML == "" {
		rerr = errors.New("renderer returned no markup")
	}
	if rerr != nil {
		err = errors.Mark(errors.Wrapf(rerr, "render %s", t.URL), ErrRenderFailure)
		transition(StateFailed, logger.FieldAccess, models.AccessUnknown.String(), logger.FieldError, err)
		return nil, err
	}

	finalURL := page.FinalURL
	if finalURL == "" {
		finalURL = t.URL
	}
	state, matched := p.classifier.Match(finalURL, page.HTML)
	transition(StateClassified, logger.FieldAccess, state.String(), logger.FieldMatched, matched)

	switch {
	case state == models.AccessAuthWall:
		rec, err = p.limited(t, p.fallback.FromTitle(p.title(page)), state)
	case state == models.AccessRestricted && p.policy == RestrictedFallback:
		rec, err = p.limited(t, p.fallback.Salvage(p.title(page), page.HTML), state)
	default:
		if state == models.AccessRestricted {
			log.Warnw("restriction phrase found, extracting anyway", logger.FieldMatched, matched)
		}
		rec = p.extractor.Extract(page.HTML)
	}
	if err != nil {
		transition(StateFailed, logger.FieldAccess, state.String(), logger.FieldError, err)
		return nil, err
	}
	rec[models.FieldProfileURL] = t.URL
	transition(StateExtracted, logger.FieldCount, len(rec))

	if !rec.FilledAny(models.MeaningfulFields...) {
		rec[models.FieldExtractionStatus] = models.StatusLimitedData
		log.Infow("record has no meaningful fields",
			logger.FieldError, errors.Wrapf(ErrExtractionEmpty, "target %s", t.URL),
		)
	}

	transition(StateDone)
	return rec, nil
}

func (p *Pipeline) limited(t models.Target, rec models.Record, state models.AccessState) (models.Record, error) {
	if !rec.Filled(models.FieldName) {
		return nil, errors.Mark(
			errors.Newf("%s page for %s yielded no name", state, t.URL),
			ErrAccessDenied,
		)
	}
	rec[models.FieldExtractionMethod] = models.MethodLimited
	return rec, nil
}

func (p *Pipeline) title(page models.Page) string {
	if page.Title != "" {
		return page.Title
	}
	return extract.TitleOf(page.HTML)
}

func (p *Pipeline) pause(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	d := p.delay + time.Duration(p.jitter()*float64(p.delay))
	logger.Logger.Debugw("pausing after target", logger.FieldWaitMS, d.Milliseconds())
	p.sleep(ctx, d)
}
