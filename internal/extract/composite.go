package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"profile_spider/internal/models"
)

// ListDelimiter joins multi-valued fields into one tabular cell.
const ListDelimiter = " | "

type SubField struct {
	Name  string
	Query Query
}

// Section is a repeated block of sub-fields (one entry per job, school, ...).
// Entries are kept in page order without deduplication and flattened into
// <Prefix>_<n>_<sub> columns, or into one joined column when Join is set.
type Section struct {
	Prefix     string
	Items      string
	Max        int
	Required   string
	Fields     []SubField
	CountField string

	JoinField string
	Join      func(entry map[string]string) string
}

func (s Section) extract(root *goquery.Selection, rec models.Record) {
	var entries []map[string]string

	root.Find(s.Items).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		entry := make(map[string]string, len(s.Fields))
		for _, f := range s.Fields {
			v, err := run(f.Query, item)
			if err != nil {
				v = ""
			}
			entry[f.Name] = v
		}
		if entry[s.Required] != "" {
			entries = append(entries, entry)
		}
		return len(entries) < s.Max
	})

	if s.Join != nil {
		joined := make([]string, 0, len(entries))
		for _, e := range entries {
			joined = append(joined, s.Join(e))
		}
		rec[s.JoinField] = strings.Join(joined, ListDelimiter)
	} else {
		for i, e := range entries {
			for _, f := range s.Fields {
				rec[models.Numbered(s.Prefix, i+1, f.Name)] = e[f.Name]
			}
		}
	}
	rec[s.CountField] = len(entries)
}

// ListSpec collects single-text items across several selector groups.
// Sets (skills, languages) are deduplicated; sequences are not.
type ListSpec struct {
	Field      string
	CountField string
	Selectors  []string
	// PerSelector caps how many matched elements each selector contributes.
	PerSelector int
	Max         int
	MinLen      int
	Dedupe      bool
	// FirstOnly stops after the first selector that produced anything.
	FirstOnly bool

	SlotPrefix string
	Slots      int
}

func (l ListSpec) collect(root *goquery.Selection) []string {
	var items []string
	seen := make(map[string]bool)

	for _, selector := range l.Selectors {
		before := len(items)
		root.Find(selector).EachWithBreak(func(i int, el *goquery.Selection) bool {
			if i >= l.PerSelector || len(items) >= l.Max {
				return false
			}
			text := normalizeText(el.Text())
			if text == "" || utf8.RuneCountInString(text) < l.MinLen {
				return true
			}
			if l.Dedupe {
				if seen[text] {
					return true
				}
				seen[text] = true
			}
			items = append(items, text)
			return true
		})
		if len(items) >= l.Max {
			break
		}
		if l.FirstOnly && len(items) > before {
			break
		}
	}
	return items
}

func (l ListSpec) extract(root *goquery.Selection, rec models.Record) {
	items := l.collect(root)

	rec[l.Field] = strings.Join(items, ListDelimiter)
	rec[l.CountField] = len(items)

	for i := 0; i < l.Slots; i++ {
		v := ""
		if i < len(items) {
			v = items[i]
		}
		rec[models.Slot(l.SlotPrefix, i+1)] = v
	}
}
