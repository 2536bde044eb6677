package models

import (
	"fmt"
	"sort"
	"strings"
)

// Target is one profile URL queued for extraction. Index is the 1-based
// position in the input list.
type Target struct {
	URL   string
	Index int
}

// Page is what a renderer hands back for a target.
type Page struct {
	RequestedURL string
	FinalURL     string
	Title        string
	HTML         string
}

type AccessState int

const (
	AccessUnknown AccessState = iota
	AccessOpen
	AccessAuthWall
	AccessRestricted
)

func (a AccessState) String() string {
	switch a {
	case AccessOpen:
		return "open"
	case AccessAuthWall:
		return "authwall"
	case AccessRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Record maps field names to string, int or map[string]bool values.
type Record map[string]any

// Str returns the field as a string. Ints are formatted; anything else
// yields "".
func (r Record) Str(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// Int returns an int field, or 0.
func (r Record) Int(field string) int {
	v, _ := r[field].(int)
	return v
}

// Filled reports whether field holds a non-blank value.
func (r Record) Filled(field string) bool {
	switch v := r[field].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case map[string]bool:
		return len(v) > 0
	default:
		return true
	}
}

// FilledAny reports whether any of fields is filled.
func (r Record) FilledAny(fields ...string) bool {
	for _, f := range fields {
		if r.Filled(f) {
			return true
		}
	}
	return false
}

// MergeEmpty copies values from other into r wherever r's value is blank.
func (r Record) MergeEmpty(other Record) {
	for k, v := range other {
		if !r.Filled(k) {
			r[k] = v
		}
	}
}

// Clone returns a copy deep enough that nested indicator maps are not shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if m, ok := v.(map[string]bool); ok {
			cp := make(map[string]bool, len(m))
			for mk, mv := range m {
				cp[mk] = mv
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Keys returns the field names in lexical order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BatchResult is the partial-success outcome of one pipeline pass.
type BatchResult struct {
	Records   []Record
	Attempted int
	Failed    int
	Limited   int
}

// Emitted is the number of records produced.
func (b BatchResult) Emitted() int {
	return len(b.Records)
}

// ProfileDocument is the stored form of a record.
type ProfileDocument struct {
	ID               string         `bson:"_id,omitempty" json:"id,omitempty"`
	ProfileURL       string         `bson:"profile_url" json:"profile_url"`
	NormalizedURL    string         `bson:"normalized_url" json:"normalized_url"`
	Username         string         `bson:"username" json:"username"`
	Name             string         `bson:"name" json:"name"`
	ExtractionMethod string         `bson:"extraction_method,omitempty" json:"extraction_method,omitempty"`
	ExtractionStatus string         `bson:"extraction_status,omitempty" json:"extraction_status,omitempty"`
	Fields           map[string]any `bson:"fields" json:"fields"`
	ContentHash      string         `bson:"content_hash" json:"content_hash"`
	RunID            string         `bson:"run_id" json:"run_id"`
	FirstScraped     int64          `bson:"first_scraped" json:"first_scraped"`
	LastScraped      int64          `bson:"last_scraped" json:"last_scraped"`
	ScrapedCount     int            `bson:"scraped_count" json:"scraped_count"`
}

// RunHistory is one batch as persisted in the runs collection.
type RunHistory struct {
	ID         string   `bson:"_id"`
	StartedAt  int64    `bson:"started_at"`
	FinishedAt int64    `bson:"finished_at"`
	Attempted  int      `bson:"attempted"`
	Emitted    int      `bson:"emitted"`
	Failed     int      `bson:"failed"`
	Limited    int      `bson:"limited"`
	Exports    []string `bson:"exports,omitempty"`
	Errors     []string `bson:"errors,omitempty"`
}
