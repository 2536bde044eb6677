package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"profile_spider/internal/models"
)

func TestToDocument(t *testing.T) {
	rec := models.Record{
		models.FieldProfileURL:       "https://www.linkedin.com/in/alice/?trk=x",
		models.FieldName:             "Alice",
		models.FieldExtractionMethod: models.MethodLimited,
		models.FieldSkillsCount:      3,
		models.FieldCompleteness:     map[string]bool{"has_about": true},
	}
	now := time.Unix(1700000000, 0)

	doc := ToDocument(rec, "run-1", now)

	assert.Equal(t, "https://linkedin.com/in/alice", doc.NormalizedURL)
	assert.Equal(t, doc.NormalizedURL, doc.ID)
	assert.Equal(t, "alice", doc.Username)
	assert.Equal(t, "Alice", doc.Name)
	assert.Equal(t, models.MethodLimited, doc.ExtractionMethod)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, int64(1700000000), doc.LastScraped)
	assert.Equal(t, 3, doc.Fields[models.FieldSkillsCount])

	// the stored indicator map is a copy
	rec[models.FieldCompleteness].(map[string]bool)["has_about"] = false
	assert.Equal(t, true, doc.Fields[models.FieldCompleteness].(map[string]bool)["has_about"])
}

func TestContentHash(t *testing.T) {
	a := models.Record{models.FieldName: "Alice", models.FieldSkillsCount: 2}
	b := models.Record{models.FieldSkillsCount: 2, models.FieldName: "Alice"}
	c := models.Record{models.FieldName: "Alice", models.FieldSkillsCount: 3}

	assert.Equal(t, ContentHash(a), ContentHash(b))
	assert.NotEqual(t, ContentHash(a), ContentHash(c))
	assert.Len(t, ContentHash(a), 32)
}
