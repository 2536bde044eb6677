package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

const filePrefix = "linkedin_data_"

// Exports are the files written by one Export call. Empty paths were not
// requested.
type Exports struct {
	CSV  string
	XLSX string
	JSON string
}

// Kinds lists the written files by kind.
func (e Exports) Kinds() map[string]string {
	out := make(map[string]string, 3)
	if e.CSV != "" {
		out["csv"] = e.CSV
	}
	if e.XLSX != "" {
		out["xlsx"] = e.XLSX
	}
	if e.JSON != "" {
		out["json"] = e.JSON
	}
	return out
}

type Exporter struct {
	dir  string
	xlsx bool
	json bool
	now  func() time.Time
}

func NewExporter(dir string, xlsx, json bool) *Exporter {
	return &Exporter{dir: dir, xlsx: xlsx, json: json, now: time.Now}
}

// Export writes records under the output directory with a shared timestamped
// base name. The CSV is always written; a failed XLSX or JSON mirror is
// logged and does not fail the export.
func (e *Exporter) Export(records []models.Record) (Exports, error) {
	var out Exports
	if len(records) == 0 {
		logger.Logger.Warnw("no records to export")
		return out, nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return out, errors.Wrapf(err, "create output dir %s", e.dir)
	}

	base := freeBase(filepath.Join(e.dir, filePrefix+e.now().Format("20060102_150405")))
	cols := Columns(records)
	rows := Rows(cols, records)

	out.CSV = base + ".csv"
	if err := writeFile(out.CSV, func(f *os.File) error { return WriteCSV(f, cols, rows) }); err != nil {
		return Exports{}, err
	}
	logger.Logger.Infow("saved csv", logger.FieldPath, out.CSV, logger.FieldCount, len(rows))

	if e.xlsx {
		path := base + ".xlsx"
		if err := WriteXLSX(path, cols, rows); err != nil {
			logger.Logger.Warnw("could not write xlsx", logger.FieldPath, path, logger.FieldError, err)
		} else {
			out.XLSX = path
			logger.Logger.Infow("saved xlsx", logger.FieldPath, path)
		}
	}
	if e.json {
		path := base + ".json"
		if err := writeFile(path, func(f *os.File) error { return WriteJSON(f, cols, rows) }); err != nil {
			logger.Logger.Warnw("could not write json", logger.FieldPath, path, logger.FieldError, err)
		} else {
			out.JSON = path
			logger.Logger.Infow("saved json", logger.FieldPath, path)
		}
	}
	return out, nil
}

// freeBase returns base, or base_2, base_3 ... when an export with that name
// already exists, so batches finishing within the same second keep their
// files.
func freeBase(base string) string {
	candidate := base
	for n := 2; ; n++ {
		taken := false
		for _, ext := range []string{".csv", ".xlsx", ".json"} {
			if _, err := os.Stat(candidate + ext); err == nil {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
