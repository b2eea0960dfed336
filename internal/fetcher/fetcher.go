// Package fetcher retrieves reconciliation extracts from a local path, an
// HTTP(S) URL or an FTP URL and decodes them as CSV or XLSX source records.
package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/source"
)

// Format is the encoding of an extract.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options configures a Fetcher.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
	// Sheet selects the XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// Fetcher opens extracts by location.
type Fetcher struct {
	http  *HTTPFetcher
	ftp   *FTPFetcher
	sheet string
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	return &Fetcher{
		http:  NewHTTPFetcher(opts.HTTP),
		ftp:   NewFTPFetcher(opts.FTP),
		sheet: opts.Sheet,
	}
}

// Open returns the raw bytes at location. Locations without a scheme are
// local file paths.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// len 1 covers Windows drive letters.
		file, err := os.Open(location)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", location)
		}
		return file, nil
	}
	switch u.Scheme {
	case "http", "https":
		return f.http.Download(ctx, location)
	case "ftp":
		return f.ftp.Download(ctx, location)
	case "file":
		file, err := os.Open(u.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", u.Path)
		}
		return file, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// FormatFor infers the format from the location's extension.
func FormatFor(location string) Format {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Records fetches location and decodes it in the given format. An empty
// format is inferred from the extension.
func (f *Fetcher) Records(ctx context.Context, location string, format Format) ([]model.SourceRecord, error) {
	if format == "" {
		format = FormatFor(location)
	}

	rc, err := f.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	switch format {
	case FormatCSV:
		return source.ReadRecords(rc)
	case FormatXLSX:
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", location)
		}
		rows, err := NewXLSXReader(buf.Bytes(), f.sheet)
		if err != nil {
			return nil, err
		}
		return source.DecodeRecords(rows)
	default:
		return nil, eris.Errorf("fetcher: unsupported format %q", format)
	}
}
