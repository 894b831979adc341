package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
)

type fakeUpload struct {
	bucket      string
	key         string
	contentType string
	parts       map[int32][]byte
}

// FakeStore is an in-memory object store with multipart semantics.
// It is safe for concurrent use by many workers.
type FakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	ctypes   map[string]string
	acls     map[string]types.ObjectCannedACL
	uploads  map[string]*fakeUpload
	uploadID int

	getCalls  map[string]int
	partCalls map[int32]int

	// UploadPartErr, when set, is consulted before storing a part.
	// attempt counts calls for that part number starting at 1.
	UploadPartErr func(partNumber int32, attempt int) error

	// GetObjectErr, when set, is consulted before serving a ranged GET.
	GetObjectErr func(rng string, attempt int) error

	// IgnoreIfMatch serves GETs without checking If-Match, like stores that
	// do not support the precondition.
	IgnoreIfMatch bool

	// DropParts lists part numbers that are acknowledged but never recorded.
	DropParts map[int32]bool

	// ListPartsPageSize caps parts per ListParts page; zero means 1000.
	ListPartsPageSize int32

	CompleteErr error
	ListPartsErr error

	CreateCalls   int
	CompleteCalls int
	AbortCalls    int
	ACLCalls      int
}

var _ s3api.S3API = (*FakeStore)(nil)

// NewFakeStore creates an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		objects:   make(map[string][]byte),
		ctypes:    make(map[string]string),
		acls:      make(map[string]types.ObjectCannedACL),
		uploads:   make(map[string]*fakeUpload),
		getCalls:  make(map[string]int),
		partCalls: make(map[int32]int),
	}
}

func objectID(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

// Put stores an object directly.
func (f *FakeStore) Put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = bytes.Clone(data)
}

// Object returns a stored object.
func (f *FakeStore) Object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	return data, ok
}

// ContentType returns the content type an object was created with.
func (f *FakeStore) ContentType(bucket, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctypes[bucket+"/"+key]
}

// ACL returns the canned ACL last applied to an object.
func (f *FakeStore) ACL(bucket, key string) types.ObjectCannedACL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acls[bucket+"/"+key]
}

// PendingUploads returns the number of sessions neither completed nor aborted.
func (f *FakeStore) PendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// PartCalls returns how many times a part number was uploaded.
func (f *FakeStore) PartCalls(partNumber int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partCalls[partNumber]
}

// GetCalls returns how many GETs were issued for a range.
func (f *FakeStore) GetCalls(rng string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[rng]
}

// HeadObject implements S3API.
func (f *FakeStore) HeadObject(
	_ context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[objectID(params.Bucket, params.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "not found"}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(etag(data)),
	}, nil
}

// GetObject implements S3API, honoring "bytes=a-b" ranges.
func (f *FakeStore) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := aws.ToString(params.Range)

	f.mu.Lock()
	f.getCalls[rng]++
	attempt := f.getCalls[rng]
	hook := f.GetObjectErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(rng, attempt); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	data, ok := f.objects[objectID(params.Bucket, params.Key)]
	ignoreIfMatch := f.IgnoreIfMatch
	f.mu.Unlock()

	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	if params.IfMatch != nil && !ignoreIfMatch && aws.ToString(params.IfMatch) != etag(data) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "at least one of the pre-conditions you specified did not hold"}
	}

	if rng != "" {
		var start, end int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
			return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
		}
		if start >= int64(len(data)) || end < start {
			return nil, &smithy.GenericAPIError{Code: "InvalidRange", Message: rng}
		}
		end = min(end, int64(len(data))-1)
		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// CreateMultipartUpload implements S3API.
func (f *FakeStore) CreateMultipartUpload(
	_ context.Context,
	params *s3.CreateMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	f.uploadID++
	id := fmt.Sprintf("upload-%d", f.uploadID)
	f.uploads[id] = &fakeUpload{
		bucket:      aws.ToString(params.Bucket),
		key:         aws.ToString(params.Key),
		contentType: aws.ToString(params.ContentType),
		parts:       make(map[int32][]byte),
	}

	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

// UploadPart implements S3API.
func (f *FakeStore) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	_ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	num := aws.ToInt32(params.PartNumber)

	f.mu.Lock()
	f.partCalls[num]++
	attempt := f.partCalls[num]
	hook := f.UploadPartErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(num, attempt); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "upload not found"}
	}
	if !f.DropParts[num] {
		up.parts[num] = data
	}

	return &s3.UploadPartOutput{ETag: aws.String(etag(data))}, nil
}

// ListParts implements S3API with PartNumberMarker pagination.
func (f *FakeStore) ListParts(
	_ context.Context,
	params *s3.ListPartsInput,
	_ ...func(*s3.Options),
) (*s3.ListPartsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListPartsErr != nil {
		return nil, f.ListPartsErr
	}
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "upload not found"}
	}

	var marker int64
	if m := aws.ToString(params.PartNumberMarker); m != "" {
		marker, _ = strconv.ParseInt(m, 10, 32)
	}
	pageSize := f.ListPartsPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	if mp := aws.ToInt32(params.MaxParts); mp > 0 && mp < pageSize {
		pageSize = mp
	}

	numbers := make([]int32, 0, len(up.parts))
	for n := range up.parts {
		if int64(n) > marker {
			numbers = append(numbers, n)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	out := &s3.ListPartsOutput{IsTruncated: aws.Bool(false)}
	for i, n := range numbers {
		if int32(i) == pageSize {
			out.IsTruncated = aws.Bool(true)
			out.NextPartNumberMarker = aws.String(strconv.Itoa(int(numbers[i-1])))
			break
		}
		out.Parts = append(out.Parts, types.Part{
			PartNumber: aws.Int32(n),
			ETag:       aws.String(etag(up.parts[n])),
			Size:       aws.Int64(int64(len(up.parts[n]))),
		})
	}
	return out, nil
}

// CompleteMultipartUpload implements S3API. Every listed part must exist with a matching ETag.
func (f *FakeStore) CompleteMultipartUpload(
	_ context.Context,
	params *s3.CompleteMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CompleteCalls++
	if f.CompleteErr != nil {
		return nil, f.CompleteErr
	}

	id := aws.ToString(params.UploadId)
	up, ok := f.uploads[id]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "upload not found"}
	}
	if params.MultipartUpload == nil || len(params.MultipartUpload.Parts) == 0 {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML", Message: "no parts"}
	}

	var assembled []byte
	var prev int32
	for _, p := range params.MultipartUpload.Parts {
		n := aws.ToInt32(p.PartNumber)
		if n <= prev {
			return nil, &smithy.GenericAPIError{Code: "InvalidPartOrder", Message: "parts out of order"}
		}
		prev = n
		data, ok := up.parts[n]
		if !ok || aws.ToString(p.ETag) != etag(data) {
			return nil, &smithy.GenericAPIError{Code: "InvalidPart", Message: fmt.Sprintf("part %d", n)}
		}
		assembled = append(assembled, data...)
	}

	key := up.bucket + "/" + up.key
	f.objects[key] = assembled
	f.ctypes[key] = up.contentType
	delete(f.uploads, id)

	return &s3.CompleteMultipartUploadOutput{
		Bucket: params.Bucket,
		Key:    params.Key,
		ETag:   aws.String(fmt.Sprintf(`"%x-%d"`, md5.Sum(assembled), len(params.MultipartUpload.Parts))),
	}, nil
}

// AbortMultipartUpload implements S3API.
func (f *FakeStore) AbortMultipartUpload(
	_ context.Context,
	params *s3.AbortMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AbortCalls++
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// PutObjectAcl implements S3API.
func (f *FakeStore) PutObjectAcl(
	_ context.Context,
	params *s3.PutObjectAclInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ACLCalls++
	id := objectID(params.Bucket, params.Key)
	if _, ok := f.objects[id]; !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	f.acls[id] = params.ACL
	return &s3.PutObjectAclOutput{}, nil
}

func etag(data []byte) string {
	return fmt.Sprintf(`"%x"`, md5.Sum(data))
}
