// Package extract turns rendered profile markup into a flat Record.
//
// Every field is located through an ordered chain of selector groups; the
// first group that yields text wins and a field nobody matches is left
// empty. Repeated sections are capped and flattened into numbered columns so
// the result stays tabular. Extraction is best-effort and never fails: the
// worst outcome is a sparse record.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

// aboutKeywordMinLen is how long the about text must be before has_about is
// reported.
const aboutKeywordMinLen = 50

type Extractor struct {
	fields   []FieldSpec
	sections []Section
	lists    []ListSpec
	fallback *Fallback
}

// New builds an extractor with the built-in profile selector tables. A nil
// fallback selects NewFallback(DefaultSiteName).
func New(fallback *Fallback) *Extractor {
	if fallback == nil {
		fallback = NewFallback(DefaultSiteName)
	}
	fields := make([]FieldSpec, 0, len(basicFields)+len(experienceFields)+len(metricFields))
	fields = append(fields, basicFields...)
	fields = append(fields, experienceFields...)
	fields = append(fields, metricFields...)

	return &Extractor{
		fields:   fields,
		sections: sections,
		lists:    lists,
		fallback: fallback,
	}
}

// WithField prepends a chain in front of the built-in one for name, or adds
// a new field. It lets callers adapt to a markup revision without touching
// extraction flow.
func (e *Extractor) WithField(override FieldSpec) *Extractor {
	for i, f := range e.fields {
		if f.Name == override.Name {
			merged := make(Chain, 0, len(override.Chain)+len(f.Chain))
			merged = append(merged, override.Chain...)
			merged = append(merged, f.Chain...)
			if override.Post == nil {
				override.Post = f.Post
			}
			override.Chain = merged

			fields := make([]FieldSpec, len(e.fields))
			copy(fields, e.fields)
			fields[i] = override
			return &Extractor{fields: fields, sections: e.sections, lists: e.lists, fallback: e.fallback}
		}
	}
	fields := append(append([]FieldSpec(nil), e.fields...), override)
	return &Extractor{fields: fields, sections: e.sections, lists: e.lists, fallback: e.fallback}
}

// Extract parses markup and extracts a record from it.
func (e *Extractor) Extract(markup string) models.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		logger.Logger.Warnw("could not parse markup", logger.FieldError, err)
		return models.Record{}
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument extracts from an already parsed document. On an internal
// failure it returns whatever was assembled so far.
func (e *Extractor) ExtractDocument(doc *goquery.Document) (rec models.Record) {
	rec = models.Record{}
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Warnw("extraction aborted, returning partial record",
				logger.FieldError, r,
				logger.FieldCount, len(rec),
			)
		}
	}()

	root := doc.Selection
	text := pageText(doc)

	for _, f := range e.fields {
		v := f.Chain.First(root)
		if f.Post != nil {
			v = f.Post(v)
		}
		rec[f.Name] = v
	}

	rec[models.FieldEmail] = FindEmail(text)
	rec[models.FieldPhone] = FindPhone(text)

	for _, s := range e.sections {
		s.extract(root, rec)
	}
	for _, l := range e.lists {
		l.extract(root, rec)
	}

	if !rec.Filled(models.FieldName) && !rec.Filled(models.FieldHeadline) {
		salvaged := e.salvage(doc)
		if len(salvaged) > 0 {
			logger.Logger.Debugw("primary selectors empty, merged fallback fields", logger.FieldCount, len(salvaged))
		}
		rec.MergeEmpty(salvaged)
	}

	rec[models.FieldCompleteness] = completeness(rec, text)
	return rec
}

// salvage falls back to the title alone when the document cannot be
// serialised for the metadata heuristics.
func (e *Extractor) salvage(doc *goquery.Document) models.Record {
	title := normalizeText(doc.Find("title").First().Text())
	markup, err := doc.Html()
	if err != nil {
		logger.Logger.Debugw("document not serialisable, salvaging from title", logger.FieldError, err)
		return e.fallback.FromTitle(title)
	}
	return e.fallback.Salvage(title, markup)
}

// completeness is diagnostic only: keywords may come from navigation text.
func completeness(rec models.Record, text string) map[string]bool {
	lower := strings.ToLower(text)
	out := map[string]bool{
		"has_about": strings.Contains(lower, "about") &&
			utf8.RuneCountInString(rec.Str(models.FieldAbout)) > aboutKeywordMinLen,
		"has_profile_picture": rec.Filled(models.FieldProfilePictureURL),
	}
	for indicator, keyword := range completenessKeywords {
		out[indicator] = strings.Contains(lower, keyword)
	}
	return out
}
