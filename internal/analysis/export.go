package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ToCSV renders a timeline as a header row "Date,<sentiment>,..." followed by
// one row of counts per day.
func ToCSV(tl Timeline) string {
	var b strings.Builder
	// strings.Builder never fails a write.
	_ = WriteCSV(&b, tl)
	return b.String()
}

// WriteCSV writes the ToCSV form of tl to w.
func WriteCSV(w io.Writer, tl Timeline) error {
	cw := csv.NewWriter(w)
	header := append([]string{"Date"}, tl.Sentiments...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, day := range tl.Days {
		row[0] = day
		for j, s := range tl.Sentiments {
			row[j+1] = strconv.Itoa(tl.Series[s][i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads back the output of ToCSV.
func ParseCSV(data string) (Timeline, error) {
	r := csv.NewReader(strings.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return Timeline{}, fmt.Errorf("read timeline csv: %w", err)
	}
	if len(records) == 0 {
		return Timeline{}, errors.New("read timeline csv: missing header")
	}
	header := records[0]
	if header[0] != "Date" {
		return Timeline{}, fmt.Errorf("read timeline csv: first column is %q, want Date", header[0])
	}

	tl := Timeline{
		Days:       make([]string, 0, len(records)-1),
		Sentiments: append([]string{}, header[1:]...),
		Series:     make(map[string][]int, len(header)-1),
	}
	for _, s := range tl.Sentiments {
		tl.Series[s] = make([]int, 0, len(records)-1)
	}
	for line, rec := range records[1:] {
		tl.Days = append(tl.Days, rec[0])
		for j, s := range tl.Sentiments {
			n, err := strconv.Atoi(rec[j+1])
			if err != nil {
				return Timeline{}, fmt.Errorf("read timeline csv: line %d column %s: %w", line+2, s, err)
			}
			tl.Series[s] = append(tl.Series[s], n)
		}
	}
	return tl, nil
}
