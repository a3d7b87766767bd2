package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API holding objects for any number of
// buckets.
type MockS3Client struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte

	// PageSize caps keys plus common prefixes per ListObjectsV2 page.
	// Zero means 1000, as S3 does.
	PageSize int

	// Call counters for test assertions
	GetObjectCalls     int
	RangeGetCalls      int
	ListObjectsV2Calls int

	// ListErr, when set, is returned by every list call.
	ListErr error
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		buckets: make(map[string]map[string][]byte),
	}
}

// CreateBucket adds an empty bucket.
func (m *MockS3Client) CreateBucket(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = make(map[string][]byte)
	}
}

// PutObject stores an object, creating the bucket when missing.
func (m *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		objects = make(map[string][]byte)
		m.buckets[bucket] = objects
	}
	objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3Client) object(bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	data, ok := objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return data, nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	m.GetObjectCalls++
	if params.Range != nil {
		m.RangeGetCalls++
	}
	m.mu.Unlock()

	data, err := m.object(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if err != nil {
		return nil, err
	}

	// Handle range requests
	if params.Range != nil {
		rangeStr := aws.ToString(params.Range)
		var start, end int64
		_, _ = fmt.Sscanf(rangeStr, "bytes=%d-%d", &start, &end)

		if start >= int64(len(data)) {
			return nil, &smithyAPIError{code: "InvalidRange"}
		}

		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}

		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// HeadObject implements API.HeadObject for testing. Missing objects report
// the bare NotFound code, as S3 does for HEAD requests.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, err := m.object(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if err != nil {
		return nil, &smithyAPIError{code: "NotFound", message: "not found"}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing, including
// delimiter grouping and continuation tokens.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	m.ListObjectsV2Calls++
	m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	bucket := aws.ToString(params.Bucket)
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	m.mu.RLock()
	objects, ok := m.buckets[bucket]
	if !ok {
		m.mu.RUnlock()
		return nil, &types.NoSuchBucket{}
	}

	// Collect keys and common prefixes in lexical order, as S3 returns them.
	type item struct {
		name     string
		isPrefix bool
		size     int64
	}
	seen := make(map[string]bool)
	var items []item
	for key, data := range objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					items = append(items, item{name: cp, isPrefix: true})
				}
				continue
			}
		}
		items = append(items, item{name: key, size: int64(len(data))})
	}
	m.mu.RUnlock()

	slices.SortFunc(items, func(a, b item) int { return strings.Compare(a.name, b.name) })

	start := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		start = slices.IndexFunc(items, func(it item) bool { return it.name > token })
		if start < 0 {
			start = len(items)
		}
	}
	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	end := min(start+pageSize, len(items))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(items))}
	for _, it := range items[start:end] {
		if it.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(it.name)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(it.name), Size: aws.Int64(it.size)})
		}
	}
	if end < len(items) {
		out.NextContinuationToken = aws.String(items[end-1].name)
	}
	return out, nil
}

// ListBuckets implements API.ListBuckets for testing.
func (m *MockS3Client) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := &s3.ListBucketsOutput{}
	for name := range m.buckets {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

var _ API = (*MockS3Client)(nil)
