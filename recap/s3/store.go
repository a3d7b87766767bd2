// Package s3 provides an S3-compatible storage handle for recap.
//
// This handle supports AWS S3, MinIO, LocalStack, Cloudflare R2, and Google
// Cloud Storage through its XML interoperability endpoint.
//
// # Paths
//
// Paths are bucket-qualified: "bucket/dir/file.csv". The empty path lists
// buckets. Listing uses the "/" delimiter, so common prefixes are returned
// as containers and never expanded.
//
// # Reads
//
// Open streams the whole object. OpenReaderAt issues HTTP range requests,
// so Parquet footers are read without downloading the file.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pithecene-io/recap/recap/storage"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// Store implements storage.FS using an S3-compatible backend.
type Store struct {
	client API
}

// New creates a new S3 handle with the given client.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use NewClient or github.com/aws/aws-sdk-go-v2/config to build one.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store, err := s3.New(client)
func New(client API) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	return &Store{client: client}, nil
}

// List returns the immediate children of a bucket-qualified path.
//
// The empty path lists buckets. A path naming an object returns that object.
// Returns storage.ErrNotFound if the bucket is missing or nothing exists at
// or below the path.
func (s *Store) List(ctx context.Context, p string) ([]storage.Entry, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		return s.listBuckets(ctx)
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	var entries []storage.Entry
	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
			}
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			entries = append(entries, storage.Entry{
				Name:        bucket + "/" + strings.TrimSuffix(*cp.Prefix, "/"),
				IsContainer: true,
			})
		}
		for _, obj := range out.Contents {
			// Skip directory marker objects ("dir/").
			if obj.Key == nil || *obj.Key == prefix {
				continue
			}
			entries = append(entries, storage.Entry{
				Name: bucket + "/" + *obj.Key,
				Size: aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if len(entries) == 0 && key != "" {
		// Not a prefix; it may be a single object.
		size, err := s.head(ctx, bucket, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
			}
			return nil, err
		}
		return []storage.Entry{{Name: bucket + "/" + key, Size: size}}, nil
	}

	slices.SortFunc(entries, func(a, b storage.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

func (s *Store) listBuckets(ctx context.Context) ([]storage.Entry, error) {
	var entries []storage.Entry
	var continuationToken *string
	for {
		out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list buckets: %w", err)
		}
		for _, b := range out.Buckets {
			if b.Name != nil {
				entries = append(entries, storage.Entry{Name: *b.Name, IsContainer: true})
			}
		}
		if aws.ToString(out.ContinuationToken) == "" {
			break
		}
		continuationToken = out.ContinuationToken
	}
	slices.SortFunc(entries, func(a, b storage.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Open retrieves an object.
// Returns storage.ErrNotFound if the object does not exist.
// Returns storage.ErrInvalidPath if the path lacks a bucket or key.
func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := splitObjectPath(p)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	return out.Body, nil
}

// OpenReaderAt returns a random access reader backed by range requests.
// The returned reader is safe for concurrent use.
func (s *Store) OpenReaderAt(ctx context.Context, p string) (storage.ReaderAt, error) {
	bucket, key, err := splitObjectPath(p)
	if err != nil {
		return nil, err
	}
	size, err := s.head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return &readerAt{
		client:  s.client,
		bucket:  bucket,
		key:     key,
		size:    size,
		baseCtx: ctx,
	}, nil
}

func (s *Store) head(ctx context.Context, bucket, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
		}
		return 0, fmt.Errorf("s3: head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// readerAt implements storage.ReaderAt using S3 range reads.
type readerAt struct {
	client  API
	bucket  string
	key     string
	size    int64
	baseCtx context.Context
}

// ReadAt implements io.ReaderAt.
func (r *readerAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("s3: negative offset")
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= r.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, end)

	out, err := r.client.GetObject(r.baseCtx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		// Check for InvalidRange (offset beyond EOF)
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("s3: range read: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	n, err = io.ReadFull(out.Body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// Partial read (requested range extends beyond EOF)
		err = io.EOF
	}
	return n, err
}

func (r *readerAt) Size() int64 { return r.size }

func (r *readerAt) Close() error { return nil }

// splitPath splits "bucket/key" into its parts. Leading and trailing
// slashes are ignored; the empty path yields an empty bucket.
func splitPath(p string) (bucket, key string, err error) {
	p = strings.Trim(p, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return "", "", fmt.Errorf("%w: %s", storage.ErrInvalidPath, p)
		}
	}
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key, nil
}

func splitObjectPath(p string) (string, string, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return "", "", err
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q is not bucket/key", storage.ErrInvalidPath, p)
	}
	return bucket, key, nil
}

// isNotFound checks if an error indicates the object or bucket was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}
	return false
}

var (
	_ storage.FS           = (*Store)(nil)
	_ storage.RandomAccess = (*Store)(nil)
)
