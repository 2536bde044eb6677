package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"profile_spider/internal/logger"
)

// ErrParseAnomaly marks a selector group that blew up while matching. The
// field it served is left empty and extraction carries on.
var ErrParseAnomaly = errors.New("parse anomaly")

// Query is one selector group: a way of locating a value under root. An
// empty result means the group did not match.
type Query func(root *goquery.Selection) string

// Text matches the first element for selector and returns its normalized
// text.
func Text(selector string) Query {
	return func(root *goquery.Selection) string {
		return normalizeText(root.Find(selector).First().Text())
	}
}

// Attr matches the first element for selector and returns attr.
func Attr(selector, attr string) Query {
	return func(root *goquery.Selection) string {
		v, _ := root.Find(selector).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Chain is an ordered list of selector groups, most specific first. The
// first group that yields a non-empty value wins.
type Chain []Query

// Texts builds a chain of Text groups.
func Texts(selectors ...string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		chain = append(chain, Text(s))
	}
	return chain
}

// Attrs builds a chain of Attr groups over the same attribute.
func Attrs(attr string, selectors ...string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		chain = append(chain, Attr(s, attr))
	}
	return chain
}

// First runs the groups in order and returns the first non-empty value.
func (c Chain) First(root *goquery.Selection) string {
	for i, q := range c {
		v, err := run(q, root)
		if err != nil {
			logger.Logger.Debugw("selector group failed", "group", i, logger.FieldError, err)
			continue
		}
		if v != "" {
			return v
		}
	}
	return ""
}

func run(q Query, root *goquery.Selection) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrParseAnomaly, fmt.Sprint(r))
		}
	}()
	return q(root), nil
}
