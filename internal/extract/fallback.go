package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

const (
	DefaultSiteName = "LinkedIn"
	// MetaAboutLimit caps the about text salvaged from preview metadata.
	MetaAboutLimit = 200
)

// Fallback salvages a minimal record from the page title and preview
// metadata when the profile body is walled off or empty. It is lossy on
// purpose.
type Fallback struct {
	siteName string
	baseURL  *url.URL
}

func NewFallback(siteName string) *Fallback {
	if siteName == "" {
		siteName = DefaultSiteName
	}
	return &Fallback{
		siteName: siteName,
		baseURL:  &url.URL{Scheme: "https", Host: "www." + strings.ToLower(siteName) + ".com"},
	}
}

// FromTitle reads titles shaped like "Name | Headline | Site". A trailing
// site segment is dropped; a lone segment that is not the site name becomes
// the name.
func (f *Fallback) FromTitle(title string) models.Record {
	rec := models.Record{}

	var parts []string
	for _, p := range strings.Split(title, "|") {
		if p = normalizeText(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 1 && strings.EqualFold(parts[len(parts)-1], f.siteName) {
		parts = parts[:len(parts)-1]
	}

	switch {
	case len(parts) == 0:
	case len(parts) == 1:
		if !strings.EqualFold(parts[0], f.siteName) {
			rec[models.FieldName] = parts[0]
		}
	default:
		rec[models.FieldName] = parts[0]
		rec[models.FieldHeadline] = parts[1]
	}
	return rec
}

// FromMeta reads og:title and og:description. When either is missing the
// document metadata found by readability fills the gap.
func (f *Fallback) FromMeta(markup string) models.Record {
	rec := models.Record{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return rec
	}

	if title := metaContent(doc, "og:title"); title != "" {
		rec.MergeEmpty(f.FromTitle(title))
	}
	if desc := metaContent(doc, "og:description"); desc != "" {
		rec[models.FieldAbout] = Truncate(desc, MetaAboutLimit)
	}

	if !rec.Filled(models.FieldName) || !rec.Filled(models.FieldAbout) {
		rec.MergeEmpty(f.fromReadability(markup))
	}
	return rec
}

// Salvage combines the title heuristic with the metadata heuristic; title
// values win.
func (f *Fallback) Salvage(title, markup string) models.Record {
	if title == "" {
		title = TitleOf(markup)
	}
	rec := f.FromTitle(title)
	rec.MergeEmpty(f.FromMeta(markup))
	return rec
}

func (f *Fallback) fromReadability(markup string) (rec models.Record) {
	rec = models.Record{}
	if strings.TrimSpace(markup) == "" {
		return rec
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Debugw("readability metadata failed", logger.FieldError, r)
		}
	}()

	article, err := readability.FromReader(strings.NewReader(markup), f.baseURL)
	if err != nil {
		return rec
	}
	if article.Title != "" {
		rec.MergeEmpty(f.FromTitle(article.Title))
	}
	if excerpt := normalizeText(article.Excerpt); excerpt != "" {
		rec[models.FieldAbout] = Truncate(excerpt, MetaAboutLimit)
	}
	return rec
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"]`).First()
	if sel.Length() == 0 {
		sel = doc.Find(`meta[name="` + property + `"]`).First()
	}
	v, _ := sel.Attr("content")
	return normalizeText(v)
}
