// internal/ingest/fetch.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// ErrFetch wraps every failure to retrieve a log object
var ErrFetch = errors.New("fetch log object")

// Fetcher retrieves a log object to local scratch storage
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) (string, error)
}

// S3API is the subset of the S3 client we use
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads objects from S3 into a scratch directory
type S3Fetcher struct {
	client     S3API
	scratchDir string
}

// NewS3Fetcher creates a fetcher writing under scratchDir
func NewS3Fetcher(client S3API, scratchDir string) *S3Fetcher {
	return &S3Fetcher{client: client, scratchDir: scratchDir}
}

// Fetch downloads s3://bucket/key to <scratchDir>/ipaugur-*/<base name of key>.
// Each call gets its own directory so concurrent invocations never share a
// file. The copy is left in place; the runtime's ephemeral storage reclaims it.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) (string, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3://%s/%s: %v", ErrFetch, bucket, key, err)
	}
	defer out.Body.Close()

	dir, err := os.MkdirTemp(f.scratchDir, "ipaugur-*")
	if err != nil {
		return "", fmt.Errorf("%w: scratch dir: %v", ErrFetch, err)
	}
	dest := ScratchPath(dir, key)
	file, err := os.Create(dest)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: create %s: %v", ErrFetch, dest, err)
	}

	n, err := io.Copy(file, out.Body)
	if err != nil {
		file.Close()
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: download s3://%s/%s: %v", ErrFetch, bucket, key, err)
	}
	if err := file.Close(); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: write %s: %v", ErrFetch, dest, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("path", dest).
		Str("size", humanize.Bytes(uint64(n))).
		Msg("Log object downloaded")
	return dest, nil
}

// FileFetcher resolves keys against a local directory. The bucket is the
// directory; an empty bucket treats the key as a path.
type FileFetcher struct{}

// Fetch returns the local path after checking the file exists
func (FileFetcher) Fetch(ctx context.Context, bucket, key string) (string, error) {
	p := key
	if bucket != "" {
		p = filepath.Join(bucket, filepath.FromSlash(key))
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrFetch, p)
	}
	return p, nil
}

// ScratchPath names the local copy of key inside dir
func ScratchPath(dir, key string) string {
	return filepath.Join(dir, path.Base(key))
}
