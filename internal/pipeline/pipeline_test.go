package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profile_spider/internal/models"
	"profile_spider/internal/render"
)

type fakeGate struct{ admits int }

func (g *fakeGate) Admit(context.Context) time.Duration {
	g.admits++
	return 0
}

type fakeRenderer struct {
	pages map[string]models.Page
	errs  map[string]error
	calls []string
}

func (r *fakeRenderer) Render(_ context.Context, url string) (models.Page, error) {
	r.calls = append(r.calls, url)
	if err, ok := r.errs[url]; ok {
		return models.Page{}, err
	}
	return r.pages[url], nil
}

type sleepRecorder struct{ sleeps []time.Duration }

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) {
	s.sleeps = append(s.sleeps, d)
}

func newTestPipeline(r Renderer, opts ...Option) (*Pipeline, *fakeGate, *sleepRecorder) {
	gate := &fakeGate{}
	rec := &sleepRecorder{}
	base := []Option{WithSleep(rec.sleep, func() float64 { return 0.5 })}
	return New(gate, r, append(base, opts...)...), gate, rec
}

func targets(urls ...string) []models.Target {
	out := make([]models.Target, len(urls))
	for i, u := range urls {
		out[i] = models.Target{URL: u, Index: i + 1}
	}
	return out
}

func openPage(url, body string) models.Page {
	return models.Page{
		RequestedURL: url,
		FinalURL:     url,
		HTML:         "<html><head><title>LinkedIn</title></head><body>" + body + "</body></html>",
	}
}

func TestRunOpenAndAuthWall(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"t1": openPage("t1", `<h1>Alice</h1>`),
		"t2": {
			RequestedURL: "t2",
			FinalURL:     "https://www.linkedin.com/authwall?sessionRedirect=t2",
			Title:        "Bob Smith | Recruiter | LinkedIn",
			HTML:         "<html><body>Join to view</body></html>",
		},
	}}
	p, _, _ := newTestPipeline(r)

	res, err := p.Run(context.Background(), targets("t1", "t2"))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	alice := res.Records[0]
	assert.Equal(t, "Alice", alice.Str(models.FieldName))
	assert.Equal(t, "t1", alice.Str(models.FieldProfileURL))
	_, ok := alice[models.FieldExtractionMethod]
	assert.False(t, ok)

	bob := res.Records[1]
	assert.Equal(t, "Bob Smith", bob.Str(models.FieldName))
	assert.Equal(t, models.MethodLimited, bob.Str(models.FieldExtractionMethod))
	assert.Equal(t, "t2", bob.Str(models.FieldProfileURL))

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Limited)
}

func TestRunAuthWallWithoutNameLeavesGap(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"t1": openPage("t1", `<h1>Alice</h1>`),
		"t2": {
			FinalURL: "https://www.linkedin.com/login",
			HTML:     "<html><head><title>LinkedIn</title></head><body>Sign in</body></html>",
		},
	}}
	p, _, _ := newTestPipeline(r)

	res, err := p.Run(context.Background(), targets("t1", "t2"))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Alice", res.Records[0].Str(models.FieldName))
	assert.Equal(t, 1, res.Failed)

	snap := p.Status().Snapshot()
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "no name")
}

func TestProcessAuthWallMarksAccessDenied(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"t": {FinalURL: "https://x/checkpoint/challenge", HTML: "<html></html>"},
	}}
	p, _, _ := newTestPipeline(r)

	rec, err := p.Process(context.Background(), models.Target{URL: "t", Index: 1})
	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, ErrAccessDenied))
}

func TestRunRenderFailureContinues(t *testing.T) {
	r := &fakeRenderer{
		pages: map[string]models.Page{
			"t1": openPage("t1", `<h1>Alice</h1>`),
			"t3": openPage("t3", `<h1>Carol</h1>`),
		},
		errs: map[string]error{"t2": errors.New("net::ERR_CONNECTION_RESET")},
	}
	var seen []string
	p, gate, _ := newTestPipeline(r, OnRecord(func(rec models.Record) {
		seen = append(seen, rec.Str(models.FieldName))
	}))

	res, err := p.Run(context.Background(), targets("t1", "t2", "t3"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Carol"}, seen)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "t1", res.Records[0].Str(models.FieldProfileURL))
	assert.Equal(t, "t3", res.Records[1].Str(models.FieldProfileURL))
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"t1", "t2", "t3"}, r.calls)
	assert.Equal(t, 3, gate.admits)

	snap := p.Status().Snapshot()
	assert.Equal(t, 2, snap.ProfilesScraped)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 3, snap.CurrentProfile)
}

func TestProcessEmptyMarkupIsRenderFailure(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{"t": {FinalURL: "t"}}}
	p, _, _ := newTestPipeline(r)

	_, err := p.Process(context.Background(), models.Target{URL: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderFailure))
}

func TestProcessTagsLimitedData(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"t": {FinalURL: "t", HTML: "<html><head><title>LinkedIn</title></head><body></body></html>"},
	}}
	p, _, _ := newTestPipeline(r)

	rec, err := p.Process(context.Background(), models.Target{URL: "t"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLimitedData, rec.Str(models.FieldExtractionStatus))
	assert.Equal(t, "t", rec.Str(models.FieldProfileURL))
}

func TestProcessRestrictedPolicy(t *testing.T) {
	page := models.Page{
		FinalURL: "https://www.linkedin.com/in/carl",
		Title:    "Carl Jones | Engineer | LinkedIn",
		HTML:     "<html><body><h1>Carl</h1><p>Sign in to see more</p></body></html>",
	}
	r := &fakeRenderer{pages: map[string]models.Page{"t": page}}

	p, _, _ := newTestPipeline(r)
	rec, err := p.Process(context.Background(), models.Target{URL: "t"})
	require.NoError(t, err)
	assert.Equal(t, "Carl", rec.Str(models.FieldName))
	assert.Empty(t, rec.Str(models.FieldExtractionMethod))

	p, _, _ = newTestPipeline(r, WithRestrictedPolicy(RestrictedFallback))
	rec, err = p.Process(context.Background(), models.Target{URL: "t"})
	require.NoError(t, err)
	assert.Equal(t, "Carl Jones", rec.Str(models.FieldName))
	assert.Equal(t, "Engineer", rec.Str(models.FieldHeadline))
	assert.Equal(t, models.MethodLimited, rec.Str(models.FieldExtractionMethod))
}

func TestRunDelayAfterEveryTarget(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"a": openPage("a", "<h1>A</h1>"),
		"b": openPage("b", "<h1>B</h1>"),
		"c": openPage("c", "<h1>C</h1>"),
	}}
	p, _, sleeps := newTestPipeline(r, WithDelay(2*time.Second))

	_, err := p.Run(context.Background(), targets("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, sleeps.sleeps)
}

func TestRunDelayWithinBounds(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{
		"a": openPage("a", "<h1>A</h1>"),
		"b": openPage("b", "<h1>B</h1>"),
	}}
	rec := &sleepRecorder{}
	p := New(&fakeGate{}, r, WithDelay(time.Second), WithSleep(rec.sleep, nil))

	_, err := p.Run(context.Background(), targets("a", "b"))
	require.NoError(t, err)
	require.Len(t, rec.sleeps, 2)
	for _, d := range rec.sleeps {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestRunPreconditions(t *testing.T) {
	p, _, _ := newTestPipeline(&fakeRenderer{})
	_, err := p.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNoTargets))

	p = New(&fakeGate{}, nil)
	_, err = p.Run(context.Background(), targets("a"))
	assert.True(t, errors.Is(err, render.ErrRendererUnavailable))
}

func TestRunCancelled(t *testing.T) {
	r := &fakeRenderer{pages: map[string]models.Page{"a": openPage("a", "<h1>A</h1>")}}
	p, _, _ := newTestPipeline(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, targets("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, res.Attempted)
	assert.Empty(t, r.calls)
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, string) (models.Page, error) {
	panic("driver crashed")
}

func TestProcessRecoversPanic(t *testing.T) {
	p, _, _ := newTestPipeline(panicRenderer{})
	res, err := p.Run(context.Background(), targets("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, res.Records)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "invalid", State(42).String())
}

func TestParseRestrictedPolicy(t *testing.T) {
	assert.Equal(t, RestrictedFallback, ParseRestrictedPolicy("fallback"))
	assert.Equal(t, RestrictedExtract, ParseRestrictedPolicy("extract"))
	assert.Equal(t, RestrictedExtract, ParseRestrictedPolicy(""))
}
