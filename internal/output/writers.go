package output

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Profiles"

// WriteCSV writes a header line and one line per row.
func WriteCSV(w io.Writer, cols []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	line := make([]string, len(cols))
	for _, row := range rows {
		for i, v := range row {
			line[i] = cellString(v)
		}
		if err := cw.Write(line); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteJSON writes the rows as an array of objects keyed by column.
func WriteJSON(w io.Writer, cols []string, rows []Row) error {
	objects := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(cols))
		for i, c := range cols {
			obj[c] = row[i]
		}
		objects = append(objects, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(objects), "encode json")
}

// WriteXLSX mirrors the CSV layout in a single-sheet workbook at path.
func WriteXLSX(path string, cols []string, rows []Row) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return errors.Wrap(err, "open stream writer")
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.Wrap(err, "write xlsx header")
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := sw.SetRow(cell, []any(row)); err != nil {
			return errors.Wrapf(err, "write xlsx row %d", i+1)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flush xlsx")
	}
	return errors.Wrap(f.SaveAs(path), "save workbook")
}
