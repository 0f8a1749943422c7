// CSV codec for the intermediate artifact.
//
// Wire format (the persistence boundary between the two stages):
//
//   - comma-separated, UTF-8
//   - first row: canonical column names in dataset order
//   - one data row per record, column order matching the header
//   - nil values serialize as the empty field
//   - structured values (maps, slices) serialize as JSON text inside the
//     field; encoding/csv handles the quoting
//
// Reading yields every value as a raw string; typing is the coercion
// engine's job, driven by the live target schema. An empty field is kept as
// the empty string here because "" and NULL are only distinguishable once
// the column's semantic type is known.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"lmsetl/pkg/records"
)

// utf8BOM is stripped from the first header cell if present. Some storage
// round-trips (spreadsheet edits, Windows tooling) prepend it.
const utf8BOM = "\uFEFF"

// WriteCSV serializes the dataset to w in the artifact wire format.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(d.Columns))
	for i, rec := range d.Rows {
		for j, col := range d.Columns {
			s, err := fieldString(rec[col])
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			row[j] = s
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCSV is a convenience wrapper returning the artifact bytes.
func (d *Dataset) MarshalCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses an artifact back into a dataset. All values come back as
// strings (possibly empty); the column set is taken from the header row.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // enforce header width on every row

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make([]string, len(header))
	for i, c := range header {
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		cols[i] = c
	}

	d := New(cols)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := make(records.Record, len(cols))
		for i, col := range cols {
			rec[col] = row[i]
		}
		d.Append(rec)
	}
	return d, nil
}

// Fingerprint returns the xxh3 hash of the artifact bytes. Both stages log
// it so a given CSV can be correlated across extract and load runs.
func Fingerprint(artifact []byte) uint64 {
	return xxh3.Hash(artifact)
}

// fieldString renders a single value into its CSV field form.
func fieldString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	default:
		// Structured values (custom_fields maps, role id slices) travel as
		// JSON text inside the field.
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("marshal structured value: %w", err)
		}
		return string(b), nil
	}
}
