// Package archive exports aged daily activity aggregates from sqlite into
// parquet files and evicts them, bounding the hot store while keeping the
// history queryable by analytics tooling.
package archive

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/edupulse/engage/internal/store"
)

// DailyRow is the flattened client-day aggregate for parquet storage,
// partition columns included for Hive-style layouts.
type DailyRow struct {
	ClientID string `parquet:"client_id,snappy,dict"`
	Date     string `parquet:"date,snappy,dict"`
	Seconds  int64  `parquet:"seconds"`

	Year  int `parquet:"year,dict"`
	Month int `parquet:"month,dict"`
	Day   int `parquet:"day,dict"`
}

// rowFromTotal converts a store aggregate, deriving the partition columns
// from the ISO date.
func rowFromTotal(t store.DailyTotal) DailyRow {
	row := DailyRow{
		ClientID: t.ClientID,
		Date:     t.Date,
		Seconds:  t.Seconds,
	}
	// Date is validated at ingest ("2006-01-02"); a scan failure leaves the
	// partition columns zero rather than dropping the row.
	fmt.Sscanf(t.Date, "%d-%d-%d", &row.Year, &row.Month, &row.Day)
	return row
}

// writeParquet renders rows as a snappy-compressed parquet file.
func writeParquet(rows []DailyRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to write")
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[DailyRow](&buf,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("engage-collector", "1.0.0", ""),
	)

	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	return buf.Bytes(), nil
}
