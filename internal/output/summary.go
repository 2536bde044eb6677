package output

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"profile_spider/internal/extract"
	"profile_spider/internal/models"
)

const summaryHeadlineLimit = 60

// Summary prints up to n named records as a table, followed by the batch
// counters.
func Summary(w io.Writer, res models.BatchResult, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "Headline", "Method"})

	shown := 0
	for _, r := range res.Records {
		if shown >= n {
			break
		}
		if !r.Filled(models.FieldName) {
			continue
		}
		shown++
		headline := r.Str(models.FieldHeadline)
		if len([]rune(headline)) > summaryHeadlineLimit {
			headline = extract.Truncate(headline, summaryHeadlineLimit) + AboutEllipsis
		}
		method := r.Str(models.FieldExtractionMethod)
		if method == "" {
			method = "full"
		}
		t.AppendRow(table.Row{shown, r.Str(models.FieldName), headline, method})
	}

	t.AppendFooter(table.Row{"", "attempted", res.Attempted, ""})
	t.AppendFooter(table.Row{"", "emitted", res.Emitted(), ""})
	t.AppendFooter(table.Row{"", "failed", res.Failed, ""})
	t.AppendFooter(table.Row{"", "limited", res.Limited, ""})
	t.Render()
}
