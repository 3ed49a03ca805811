package columnar

import (
	"fmt"
	"os"
	"path/filepath"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// row is the flat parquet schema for one published record. Column names
// match the wire payload fields.
type row struct {
	Exchange      string    `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Symbol        string    `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BidPrices     []float64 `parquet:"name=bidPrices, type=MAP, convertedtype=LIST, valuetype=DOUBLE"`
	BidSizes      []float64 `parquet:"name=bidSizes, type=MAP, convertedtype=LIST, valuetype=DOUBLE"`
	AskPrices     []float64 `parquet:"name=askPrices, type=MAP, convertedtype=LIST, valuetype=DOUBLE"`
	AskSizes      []float64 `parquet:"name=askSizes, type=MAP, convertedtype=LIST, valuetype=DOUBLE"`
	TimeExchange  string    `parquet:"name=timeExchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimeReceived  string    `parquet:"name=timeReceived, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimePublished string    `parquet:"name=timePublished, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func rowFromRecord(rec *marketdata.Record) row {
	return row{
		Exchange:      rec.Exchange,
		Symbol:        rec.Symbol,
		BidPrices:     rec.BidPrices,
		BidSizes:      rec.BidSizes,
		AskPrices:     rec.AskPrices,
		AskSizes:      rec.AskSizes,
		TimeExchange:  rec.TimeExchange,
		TimeReceived:  rec.TimeReceived,
		TimePublished: rec.TimePublished,
	}
}

// Writer persists closed buckets as snappy-compressed parquet files.
type Writer struct {
	parallelism int64
}

func NewWriter() *Writer {
	return &Writer{parallelism: 2}
}

// WriteBucket writes every record of one (exchange, symbol, bucket) to path.
func (w *Writer) WriteBucket(path string, records []*marketdata.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(row), w.parallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		if err := pw.Write(rowFromRecord(rec)); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return fw.Close()
}
