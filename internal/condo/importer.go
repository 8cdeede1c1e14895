package condo

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/fetcher"
)

const defaultBatchSize = 1000

// ImportOptions configures an RNIC import.
type ImportOptions struct {
	// Charset of CSV input, e.g. "windows-1252". Empty means UTF-8.
	Charset string
	// Delimiter of CSV input. Zero selects ';', the RNIC publication format.
	Delimiter rune
	// Sheet selects the XLSX worksheet; empty means the first.
	Sheet     string
	BatchSize int
	// OnBatch is called with the row count of every loaded batch.
	OnBatch func(n int64)
}

// ImportStats summarizes an import.
type ImportStats struct {
	Rows    int64 `json:"rows"`
	Loaded  int64 `json:"loaded"`
	Skipped int64 `json:"skipped"`
}

// Importer loads the registry extract into a Sink.
type Importer struct {
	fetcher fetcher.Fetcher
	sink    Sink
}

// NewImporter creates an importer. f may be nil when only local files are imported.
func NewImporter(f fetcher.Fetcher, sink Sink) *Importer {
	return &Importer{fetcher: f, sink: sink}
}

// Import reads src, a local path or an http(s) URL to a .csv, .xlsx or .zip
// holding one of those, and loads every valid row.
func (im *Importer) Import(ctx context.Context, src string, opts ImportOptions) (ImportStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workDir, err := os.MkdirTemp("", "rnic-*")
	if err != nil {
		return ImportStats{}, eris.Wrap(err, "condo: create work dir")
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	path, err := im.localize(ctx, src, workDir)
	if err != nil {
		return ImportStats{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		path, err = fetcher.ExtractDataFile(path, workDir)
		if err != nil {
			return ImportStats{}, eris.Wrap(err, "condo: extract archive")
		}
	}

	headerCh := make(chan []string, 1)
	var rowCh <-chan []string
	var errCh <-chan error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rowCh, errCh = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
			SheetName: opts.Sheet,
			HasHeader: true,
			HeaderCh:  headerCh,
		})
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return ImportStats{}, eris.Wrap(err, "condo: open extract")
		}
		defer f.Close() //nolint:errcheck

		r, err := fetcher.DecodeCharset(f, opts.Charset)
		if err != nil {
			return ImportStats{}, eris.Wrap(err, "condo: decode charset")
		}
		delim := opts.Delimiter
		if delim == 0 {
			delim = ';'
		}
		rowCh, errCh = fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
			Delimiter:  delim,
			HasHeader:  true,
			HeaderCh:   headerCh,
			LazyQuotes: true,
			TrimSpace:  true,
		})
	default:
		return ImportStats{}, eris.Errorf("condo: unsupported extract format %q", filepath.Ext(path))
	}

	return im.load(ctx, headerCh, rowCh, errCh, opts)
}

func (im *Importer) load(ctx context.Context, headerCh <-chan []string, rowCh <-chan []string, errCh <-chan error, opts ImportOptions) (ImportStats, error) {
	var stats ImportStats
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var cols columnMap
	batch := make([]Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.sink.Load(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "condo: load batch")
		}
		stats.Loaded += n
		if opts.OnBatch != nil {
			opts.OnBatch(n)
		}
		batch = batch[:0]
		return nil
	}

	for row := range rowCh {
		if cols == nil {
			header, ok := <-headerCh
			if !ok {
				return stats, eris.New("condo: extract has no header")
			}
			c, err := newColumnMap(header)
			if err != nil {
				return stats, err
			}
			cols = c
		}
		stats.Rows++
		rec, ok := cols.record(row)
		if !ok {
			stats.Skipped++
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return stats, eris.Wrap(err, "condo: read extract")
	}
	if err := flush(); err != nil {
		return stats, err
	}

	zap.L().Info("condo: import complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("loaded", stats.Loaded),
		zap.Int64("skipped", stats.Skipped),
	)
	return stats, nil
}

// localize returns a local path for src, downloading remote sources into dir.
func (im *Importer) localize(ctx context.Context, src, dir string) (string, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		if _, err := os.Stat(src); err != nil {
			return "", eris.Wrapf(err, "condo: stat %s", src)
		}
		return src, nil
	}
	if im.fetcher == nil {
		return "", eris.New("condo: remote source requires a fetcher")
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "rnic.csv"
	}
	dest := filepath.Join(dir, name)
	n, err := im.fetcher.DownloadToFile(ctx, src, dest)
	if err != nil {
		return "", eris.Wrapf(err, "condo: download %s", src)
	}
	zap.L().Info("condo: downloaded extract", zap.String("url", src), zap.Int64("bytes", n))
	return dest, nil
}
