package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"profile_spider/internal/models"
)

func TestFromTitle(t *testing.T) {
	f := NewFallback("")

	cases := []struct {
		title    string
		name     string
		headline string
	}{
		{"Jane Doe | Staff Engineer | LinkedIn", "Jane Doe", "Staff Engineer"},
		{"Jane Doe | Staff Engineer", "Jane Doe", "Staff Engineer"},
		{"Jane Doe | LinkedIn", "Jane Doe", ""},
		{"Jane Doe", "Jane Doe", ""},
		{"  |  Jane Doe  |  ", "Jane Doe", ""},
		{"LinkedIn", "", ""},
		{"linkedin", "", ""},
		{"", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			rec := f.FromTitle(tc.title)
			assert.Equal(t, tc.name, rec.Str(models.FieldName))
			assert.Equal(t, tc.headline, rec.Str(models.FieldHeadline))
		})
	}
}

func TestFromTitleCustomSite(t *testing.T) {
	rec := NewFallback("Xing").FromTitle("Max Muster | Xing")
	assert.Equal(t, "Max Muster", rec.Str(models.FieldName))
	assert.False(t, rec.Filled(models.FieldHeadline))
}

func TestFromMeta(t *testing.T) {
	desc := strings.Repeat("d", 250)
	markup := `<html><head>
		<meta property="og:title" content="Jane Doe | Staff Engineer | LinkedIn">
		<meta property="og:description" content="` + desc + `">
		</head><body></body></html>`

	rec := NewFallback("").FromMeta(markup)
	assert.Equal(t, "Jane Doe", rec.Str(models.FieldName))
	assert.Equal(t, "Staff Engineer", rec.Str(models.FieldHeadline))
	assert.Equal(t, strings.Repeat("d", MetaAboutLimit), rec.Str(models.FieldAbout))
}

func TestFromMetaNameAttribute(t *testing.T) {
	markup := `<html><head><meta name="og:description" content="Builds things."></head><body></body></html>`
	rec := NewFallback("").FromMeta(markup)
	assert.Equal(t, "Builds things.", rec.Str(models.FieldAbout))
}

func TestSalvageTitleWins(t *testing.T) {
	markup := `<html><head>
		<title>Ann Lee | Analyst | LinkedIn</title>
		<meta property="og:title" content="Someone Else | Other">
		<meta property="og:description" content="Numbers person.">
		</head><body></body></html>`

	rec := NewFallback("").Salvage("", markup)
	assert.Equal(t, "Ann Lee", rec.Str(models.FieldName))
	assert.Equal(t, "Analyst", rec.Str(models.FieldHeadline))
	assert.Equal(t, "Numbers person.", rec.Str(models.FieldAbout))
}

func TestSalvageEmptyMarkup(t *testing.T) {
	rec := NewFallback("").Salvage("", "")
	assert.False(t, rec.FilledAny(models.MeaningfulFields...))
}
