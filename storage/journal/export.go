package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type eventParquetRow struct {
	TxHash     string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Index      int32  `parquet:"name=idx, type=INT32"`
	Height     int64  `parquet:"name=height, type=INT64"`
	Type       string `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportEvents writes the events matching filter to w as a Snappy-compressed
// Parquet file and returns the number of rows written.
func (j *Journal) ExportEvents(ctx context.Context, w io.Writer, filter EventFilter) (int, error) {
	events, err := j.Events(ctx, filter)
	if err != nil {
		return 0, err
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(eventParquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, evt := range events {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("journal: encode attributes: %w", err)
		}
		row := &eventParquetRow{
			TxHash:     evt.TxHash.Hex(),
			Index:      int32(evt.Index),
			Height:     int64(evt.Height),
			Type:       evt.Type,
			Attributes: string(attrs),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("journal: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("journal: parquet flush: %w", err)
	}
	return len(events), nil
}
