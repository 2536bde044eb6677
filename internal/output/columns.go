// Package output turns records into tabular exports: CSV, an XLSX mirror and
// a JSON array, plus a short console summary.
package output

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"profile_spider/internal/extract"
	"profile_spider/internal/models"
)

// AboutLimit caps the about column; longer values get AboutEllipsis appended.
const (
	AboutLimit    = 1000
	AboutEllipsis = "..."
)

// PreferredColumns lead every export, in this order, when present in any
// record.
var PreferredColumns = []string{
	models.FieldName, models.FieldHeadline, models.FieldLocation, models.FieldAbout, models.FieldConnections,
	models.FieldProfilePictureURL, models.FieldEmail, models.FieldPhone, models.FieldWebsite,
	models.FieldCurrentPosition, models.FieldCurrentCompany, models.FieldEmploymentDur,
	"experience_1_title", "experience_1_company", "experience_1_duration", "experience_1_location",
	"experience_2_title", "experience_2_company", "experience_2_duration", "experience_2_location",
	"experience_3_title", "experience_3_company", "experience_3_duration", "experience_3_location",
	models.FieldTotalExperience,
	"education_1_school", "education_1_degree", "education_1_field", "education_1_years",
	"education_2_school", "education_2_degree", "education_2_field", "education_2_years",
	"education_3_school", "education_3_degree", "education_3_field", "education_3_years",
	models.FieldTotalEducation,
	models.FieldSkillsList, models.FieldSkillsCount, "skill_1", "skill_2", "skill_3", "skill_4", "skill_5",
	models.FieldCertifications, models.FieldCertsCount,
	models.FieldLanguages, models.FieldLanguagesCount,
	models.FieldVolunteer, models.FieldVolunteerCount,
	models.FieldPublications, models.FieldPublicationsCount,
	models.FieldProjects, models.FieldProjectsCount,
	models.FieldFollowers, models.FieldActivityPosts,
	models.FieldProfileURL,
}

// Columns returns the header for records: preferred columns that occur in
// at least one record, then every other field in lexical order.
func Columns(records []models.Record) []string {
	all := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			all[k] = true
		}
	}

	cols := make([]string, 0, len(all))
	for _, c := range PreferredColumns {
		if all[c] {
			cols = append(cols, c)
			delete(all, c)
		}
	}

	extra := make([]string, 0, len(all))
	for k := range all {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// CleanValue prepares one cell. Strings are whitespace-normalized and the
// about field is capped; indicator maps become "{key: value, ...}". Ints are
// kept as ints so structured exports can carry numbers.
func CleanValue(field string, v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := extract.NormalizeText(val)
		if field == models.FieldAbout && utf8.RuneCountInString(s) > AboutLimit {
			s = extract.Truncate(s, AboutLimit) + AboutEllipsis
		}
		return s
	case int:
		return val
	case map[string]bool:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %t", k, val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}

// Row is one record cleaned and laid out against a header.
type Row []any

// Rows cleans records against cols. Fields a record lacks become "".
func Rows(cols []string, records []models.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := make(Row, len(cols))
		for i, c := range cols {
			row[i] = CleanValue(c, r[c])
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprint(val)
	}
}
