package source

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/model"
)

// ReadRecords decodes source records from CSV. The header names the record
// fields (vin, status, priority, make, model, year, price, age); every other
// column is taken as a source-system presence flag named by its header.
func ReadRecords(r io.Reader) ([]model.SourceRecord, error) {
	return DecodeRecords(csv.NewReader(r))
}

// DecodeRecords decodes source records from any row reader whose first row
// is the header, such as a spreadsheet sheet.
func DecodeRecords(r csvutil.Reader) ([]model.SourceRecord, error) {
	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "source: read csv header")
	}
	header := dec.Header()

	var records []model.SourceRecord
	for {
		var rec model.SourceRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "source: decode csv row %d", len(records)+1)
		}
		if rec.VIN == "" {
			return nil, eris.Errorf("source: csv row %d has no vin", len(records)+1)
		}

		raw := dec.Record()
		rec.Flags = make(map[string]int64)
		for _, idx := range dec.Unused() {
			name := strings.TrimSpace(header[idx])
			val := strings.TrimSpace(raw[idx])
			if val == "" {
				continue
			}
			flag, err := strconv.ParseInt(val, 10, 64)
			if err != nil || (flag != 0 && flag != 1) {
				return nil, eris.Errorf("source: csv row %d: flag %s must be 0 or 1, got %q", len(records)+1, name, val)
			}
			rec.Flags[name] = flag
		}
		records = append(records, rec)
	}
	return records, nil
}
