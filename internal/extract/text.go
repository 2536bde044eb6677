package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	reWhitespace  = regexp.MustCompile(`\s+`)
	reConnections = regexp.MustCompile(`(?i)(\d[\d,]*\+?)\s+connections?`)
	reEmail       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePhone       = regexp.MustCompile(`\+?\(?\d[\d\s().-]{5,18}\d`)
	reYearRange   = regexp.MustCompile(`^\d{4}\s*-\s*\d{4}$`)
)

const minPhoneDigits = 7

func normalizeText(text string) string {
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return normalizeText(text)
}

// ParseConnections pulls "500+" out of "500+ connections". Text without the
// pattern is returned unchanged.
func ParseConnections(text string) string {
	if text == "" {
		return ""
	}
	if m := reConnections.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return text
}

func FindEmail(text string) string {
	return reEmail.FindString(text)
}

// FindPhone returns the first run that looks like a phone number and holds
// at least seven digits. Year ranges such as "2015 - 2019" are skipped.
func FindPhone(text string) string {
	for _, candidate := range rePhone.FindAllString(text, -1) {
		candidate = strings.TrimSpace(candidate)
		if reYearRange.MatchString(candidate) {
			continue
		}
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= minPhoneDigits {
			return candidate
		}
	}
	return ""
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TitleOf returns the document <title> of markup.
func TitleOf(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return normalizeText(doc.Find("title").First().Text())
}

// pageText is the visible text of the body without scripts and styles.
func pageText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return normalizeText(body.Text())
}
