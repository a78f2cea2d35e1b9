// internal/ingest/open.go
package ingest

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Open returns a reader over the decompressed text of a downloaded log.
// The compression is picked from the file suffix: .gz, .zst/.zstd, or none.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return &stackedReader{Reader: gz, closers: []func() error{gz.Close, file.Close}}, nil

	case strings.HasSuffix(path, ".zst"), strings.HasSuffix(path, ".zstd"):
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		closeDec := func() error { dec.Close(); return nil }
		return &stackedReader{Reader: dec, closers: []func() error{closeDec, file.Close}}, nil
	}

	return file, nil
}

// stackedReader closes a decoder and then the file under it
type stackedReader struct {
	io.Reader
	closers []func() error
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
