// Package targets loads the list of profile URLs to extract.
package targets

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

var (
	ErrTargetsFile = errors.New("targets file not found")

	reProfileURL = regexp.MustCompile(`(?i)^(https?://)?([a-z]{2,3}\.)?linkedin\.com/in/[^/?#\s]+`)
)

// Load reads a targets file: one URL per line, blank lines and lines
// starting with # ignored.
func Load(path string) ([]models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHintf(errors.Wrapf(ErrTargetsFile, "%s", path),
				"add profile URLs to %s, one per line", path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) ([]models.Target, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read targets")
	}
	return FromStrings(lines), nil
}

// FromStrings turns raw lines into targets in input order. Lines that do not
// look like profile URLs are kept with a warning. Duplicates are kept too.
func FromStrings(lines []string) []models.Target {
	var out []models.Target
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u := Clean(line)
		if !IsProfileURL(u) {
			logger.Logger.Warnw("target does not look like a profile url", logger.FieldTarget, u)
		}
		out = append(out, models.Target{URL: u, Index: len(out) + 1})
	}
	return out
}

// Save writes urls to path in the format Load reads.
func Save(path string, urls []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	var b strings.Builder
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			b.WriteString(u)
			b.WriteByte('\n')
		}
	}
	return errors.Wrapf(os.WriteFile(path, []byte(b.String()), 0o644), "write %s", path)
}

// Clean prepares a URL for fetching: the fragment is dropped and a missing
// scheme becomes https.
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Fragment = ""
	return parsed.String()
}

// NormalizeURL is the identity key of a profile: lower-case host without
// www, no query, fragment or trailing slash.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(Clean(raw))
	if err != nil {
		return raw
	}
	parsed.Fragment = ""
	parsed.RawQuery = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

func IsProfileURL(raw string) bool {
	return reProfileURL.MatchString(strings.TrimSpace(raw))
}

// Username is the path segment after /in/, or "" for other URLs.
func Username(raw string) string {
	_, rest, ok := strings.Cut(raw, "/in/")
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "/")
	rest, _, _ = strings.Cut(rest, "?")
	rest, _, _ = strings.Cut(rest, "#")
	if unescaped, err := url.PathUnescape(rest); err == nil {
		return unescaped
	}
	return rest
}
