// Package access decides whether a rendered page is readable, behind the
// login wall, or content-restricted.
//
// The URL check runs first: a redirect to a login or checkpoint page is
// unambiguous. Content phrases run second and are advisory only, since
// ordinary navigation chrome can contain "sign in". The lists are tunable
// heuristics, not an oracle.
package access

import (
	"strings"

	"profile_spider/internal/models"
)

var (
	DefaultWallMarkers = []string{"authwall", "login", "signup", "checkpoint"}

	DefaultRestrictionPhrases = []string{"sign in", "join linkedin", "this profile", "unavailable"}
)

type Classifier struct {
	wallMarkers        []string
	restrictionPhrases []string
}

// NewClassifier lower-cases the given lists. A nil list selects the default.
func NewClassifier(wallMarkers, restrictionPhrases []string) *Classifier {
	if wallMarkers == nil {
		wallMarkers = DefaultWallMarkers
	}
	if restrictionPhrases == nil {
		restrictionPhrases = DefaultRestrictionPhrases
	}
	return &Classifier{
		wallMarkers:        lowerAll(wallMarkers),
		restrictionPhrases: lowerAll(restrictionPhrases),
	}
}

func Default() *Classifier {
	return NewClassifier(nil, nil)
}

// Classify returns AuthWall, Restricted or Open. Unknown is never returned;
// callers use it when no markup could be rendered.
func (c *Classifier) Classify(pageURL, markup string) models.AccessState {
	state, _ := c.Match(pageURL, markup)
	return state
}

// Match is Classify plus the marker or phrase that decided it.
func (c *Classifier) Match(pageURL, markup string) (models.AccessState, string) {
	u := strings.ToLower(pageURL)
	for _, marker := range c.wallMarkers {
		if strings.Contains(u, marker) {
			return models.AccessAuthWall, marker
		}
	}

	m := strings.ToLower(markup)
	for _, phrase := range c.restrictionPhrases {
		if strings.Contains(m, phrase) {
			return models.AccessRestricted, phrase
		}
	}

	return models.AccessOpen, ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
