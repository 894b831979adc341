package multipart

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	tu "github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/planner"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/worker"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

const (
	bucket = "test-bucket"
	key    = "backups/archive.bin"

	// 30MiB plans as three parts.
	sourceSize = 30 * 1024 * 1024
)

type fixture struct {
	data    []byte
	store   *tu.FakeStore
	reg     *prometheus.Registry
	coord   *Coordinator
	tracker *tu.MockProgressTracker
}

func newFixture(t *testing.T, size int) *fixture {
	t.Helper()

	data := tu.GeneratePatternData(size)
	store := tu.NewFakeStore()
	return newFixtureWithClient(t, data, store, store)
}

func newFixtureWithClient(t *testing.T, data []byte, store *tu.FakeStore, client s3api.S3API) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	return &fixture{
		data:  data,
		store: store,
		reg:   reg,
		coord: New(Config{
			Client:      client,
			FS:          tu.NewMemFS(t, map[string][]byte{"src/archive.bin": data}),
			Policy:      retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
			Concurrency: 4,
			Metrics:     metrics.New(reg),
		}),
		tracker: &tu.MockProgressTracker{},
	}
}

func (f *fixture) request() Request {
	return Request{
		Bucket:   bucket,
		Key:      key,
		Path:     "src/archive.bin",
		ACL:      s3types.ACLPrivate,
		Progress: f.tracker,
	}
}

func (f *fixture) assertSessions(t *testing.T, state string) {
	t.Helper()

	expected := `
# HELP s3transfer_multipart_sessions_total Multipart sessions by terminal state
# TYPE s3transfer_multipart_sessions_total counter
s3transfer_multipart_sessions_total{state="` + state + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "s3transfer_multipart_sessions_total"))
}

func TestUpload_AllPartsCommit(t *testing.T) {
	f := newFixture(t, sourceSize)
	plan, err := planner.SizeChunks(sourceSize, planner.MinPartSize)
	require.NoError(t, err)
	require.Equal(t, 3, plan.ChunkCount)

	res, err := f.coord.Upload(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, key, res.Key)
	assert.Equal(t, int64(sourceSize), res.Size)
	assert.Equal(t, plan.ChunkCount, res.Parts)
	assert.NotEmpty(t, res.ETag)
	assert.NotEmpty(t, res.TransferID)

	obj, ok := f.store.Object(bucket, key)
	require.True(t, ok)
	assert.Equal(t, tu.Checksum(f.data), tu.Checksum(obj))
	assert.Equal(t, awstypes.ObjectCannedACLPrivate, f.store.ACL(bucket, key))
	assert.Zero(t, f.store.PendingUploads())
	assert.Equal(t, 1, f.store.CompleteCalls)
	assert.Zero(t, f.store.AbortCalls)

	transferred, total, completed, failed := f.tracker.Snapshot()
	assert.Equal(t, int64(sourceSize), transferred)
	assert.Equal(t, int64(sourceSize), total)
	assert.True(t, completed)
	assert.False(t, failed)

	f.assertSessions(t, "completed")
}

func TestUpload_PermanentPartFailureAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.UploadPartErr = func(partNumber int32, _ int) error {
		if partNumber == 2 {
			return &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		}
		return nil
	}

	_, err := f.coord.Upload(context.Background(), f.request())
	require.Error(t, err)

	assert.True(t, errors.IsReconciliationMismatch(err))
	var partErr *errors.PartError
	require.ErrorAs(t, err, &partErr)
	assert.Equal(t, 2, partErr.Index)
	assert.Equal(t, 1, f.store.PartCalls(2))

	_, ok := f.store.Object(bucket, key)
	assert.False(t, ok, "no object is visible after an abort")
	assert.Zero(t, f.store.PendingUploads())
	assert.Equal(t, 1, f.store.AbortCalls)
	assert.Zero(t, f.store.CompleteCalls)
	assert.Zero(t, f.store.ACLCalls)

	_, _, completed, failed := f.tracker.Snapshot()
	assert.False(t, completed)
	assert.True(t, failed)

	f.assertSessions(t, "aborted")
}

func TestUpload_RetryExhaustionAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.UploadPartErr = func(partNumber int32, _ int) error {
		if partNumber == 3 {
			return &smithy.GenericAPIError{Code: "InternalError", Message: "try again"}
		}
		return nil
	}

	_, err := f.coord.Upload(context.Background(), f.request())

	assert.True(t, errors.IsReconciliationMismatch(err))
	assert.True(t, errors.IsRetryExhausted(err))
	assert.Equal(t, 4, f.store.PartCalls(3))
	assert.Zero(t, f.store.PendingUploads())
}

func TestUpload_TransientFailuresRecover(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.UploadPartErr = func(partNumber int32, attempt int) error {
		if partNumber == 1 && attempt <= 2 {
			return &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
		}
		return nil
	}

	_, err := f.coord.Upload(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, 3, f.store.PartCalls(1))
	obj, ok := f.store.Object(bucket, key)
	require.True(t, ok)
	assert.Equal(t, f.data, obj)
}

func TestUpload_MissingPartInListingAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.DropParts = map[int32]bool{2: true}

	_, err := f.coord.Upload(context.Background(), f.request())

	assert.True(t, errors.IsReconciliationMismatch(err))
	assert.Contains(t, err.Error(), "store lists 2 of 3 parts")
	assert.Equal(t, errors.CodeReconciliationMismatch, errors.CodeOf(err))
	_, ok := f.store.Object(bucket, key)
	assert.False(t, ok)
	assert.Equal(t, 1, f.store.AbortCalls)
}

func TestUpload_ListingOutsideThePlanIsIgnored(t *testing.T) {
	var completes, aborts atomic.Int32
	client := tu.NewMockBuilder().WithCreateMultipartUpload(
		func(context.Context, *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
	).WithUploadPart(
		func(_ context.Context, in *s3.UploadPartInput) (*s3.UploadPartOutput, error) {
			assert.Equal(t, "upload-1", aws.ToString(in.UploadId))
			return &s3.UploadPartOutput{ETag: aws.String(`"etag"`)}, nil
		},
	).WithListParts(
		func(context.Context, *s3.ListPartsInput) (*s3.ListPartsOutput, error) {
			// Part 3 is missing and part 4 was never planned.
			return &s3.ListPartsOutput{Parts: []awstypes.Part{
				{PartNumber: aws.Int32(1), ETag: aws.String(`"etag"`)},
				{PartNumber: aws.Int32(2), ETag: aws.String(`"etag"`)},
				{PartNumber: aws.Int32(4), ETag: aws.String(`"etag"`)},
			}}, nil
		},
	).WithCompleteMultipartUpload(
		func(context.Context, *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error) {
			completes.Add(1)
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
	).WithAbortMultipartUpload(
		func(_ context.Context, in *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error) {
			assert.Equal(t, "upload-1", aws.ToString(in.UploadId))
			aborts.Add(1)
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	).Build()
	f := newFixtureWithClient(t, tu.GeneratePatternData(sourceSize), tu.NewFakeStore(), client)

	_, err := f.coord.Upload(context.Background(), f.request())

	assert.True(t, errors.IsReconciliationMismatch(err))
	assert.Contains(t, err.Error(), "store lists 2 of 3 parts")
	assert.Zero(t, completes.Load())
	assert.Equal(t, int32(1), aborts.Load())
	f.assertSessions(t, "aborted")
}

func TestUpload_PaginatedListing(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.ListPartsPageSize = 1

	_, err := f.coord.Upload(context.Background(), f.request())
	require.NoError(t, err)

	obj, ok := f.store.Object(bucket, key)
	require.True(t, ok)
	assert.Equal(t, f.data, obj)
}

func TestUpload_ListPartsFailureAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.ListPartsErr = &smithy.GenericAPIError{Code: "InternalError", Message: "boom"}

	_, err := f.coord.Upload(context.Background(), f.request())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "listParts")
	assert.Zero(t, f.store.PendingUploads())
	assert.Zero(t, f.store.CompleteCalls)
}

func TestUpload_CompleteFailureAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	f.store.CompleteErr = &smithy.GenericAPIError{Code: "InternalError", Message: "boom"}

	_, err := f.coord.Upload(context.Background(), f.request())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "completeMultipartUpload")
	assert.Equal(t, 1, f.store.AbortCalls)
	assert.Zero(t, f.store.PendingUploads())
	f.assertSessions(t, "aborted")
}

func TestUpload_ZeroByteFile(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.coord.Upload(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Parts)
	assert.Zero(t, res.Size)
	obj, ok := f.store.Object(bucket, key)
	require.True(t, ok)
	assert.Empty(t, obj)
}

func TestUpload_EmptyACLIsSkipped(t *testing.T) {
	f := newFixture(t, 1024)
	req := f.request()
	req.ACL = ""

	_, err := f.coord.Upload(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, f.store.ACLCalls)
}

func TestUpload_RequestFieldsReachTheStore(t *testing.T) {
	store := tu.NewFakeStore()
	var created *s3.CreateMultipartUploadInput
	client := &tu.MockS3Client{
		CreateMultipartUploadFunc: func(
			ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options),
		) (*s3.CreateMultipartUploadOutput, error) {
			created = params
			return store.CreateMultipartUpload(ctx, params)
		},
		UploadPartFunc:              store.UploadPart,
		ListPartsFunc:               store.ListParts,
		CompleteMultipartUploadFunc: store.CompleteMultipartUpload,
		AbortMultipartUploadFunc:    store.AbortMultipartUpload,
		PutObjectAclFunc:            store.PutObjectAcl,
	}
	f := newFixtureWithClient(t, []byte("hello"), store, client)

	req := f.request()
	req.ContentType = "text/x-custom"
	req.Metadata = map[string]string{"origin": "test"}
	req.StorageClass = s3types.StorageClassStandardIA
	req.SSE = &s3types.SSEConfig{Type: s3types.SSEKMS, KMSKeyID: "kms-key"}

	_, err := f.coord.Upload(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "text/x-custom", *created.ContentType)
	assert.Equal(t, "test", created.Metadata["origin"])
	assert.Equal(t, awstypes.StorageClassStandardIa, created.StorageClass)
	assert.Equal(t, awstypes.ServerSideEncryptionAwsKms, created.ServerSideEncryption)
	assert.Equal(t, "kms-key", *created.SSEKMSKeyId)
	assert.Equal(t, "text/x-custom", store.ContentType(bucket, key))
}

func TestUpload_CreateFailureDoesNotAbort(t *testing.T) {
	store := tu.NewFakeStore()
	client := tu.NewMockBuilder().WithCreateMultipartUpload(
		func(context.Context, *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		},
	).WithAbortMultipartUpload(
		func(context.Context, *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error) {
			t.Fatal("abort must not be called without a session")
			return nil, nil
		},
	).Build()
	f := newFixtureWithClient(t, []byte("hello"), store, client)

	_, err := f.coord.Upload(context.Background(), f.request())
	assert.ErrorIs(t, err, errors.ErrAccessDenied)
	assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))
}

func TestUpload_InvalidSource(t *testing.T) {
	store := tu.NewFakeStore()
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("src/dir", 0o755))
	coord := New(Config{Client: store, FS: fs})

	_, err := coord.Upload(context.Background(), Request{Bucket: bucket, Key: key, Path: "src/dir"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = coord.Upload(context.Background(), Request{Bucket: bucket, Key: key, Path: "src/missing"})
	require.Error(t, err)
	assert.Zero(t, store.CreateCalls)
}

func TestUpload_CanceledContextAborts(t *testing.T) {
	f := newFixture(t, sourceSize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.Upload(ctx, f.request())
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.PendingUploads(), "abort runs even after cancellation")
	_, ok := f.store.Object(bucket, key)
	assert.False(t, ok)
}

func TestSession_Transitions(t *testing.T) {
	s := newSession(bucket, key, worker.DiscardLogger(), nil)

	require.NoError(t, s.advance(s3types.SessionPartsInFlight))
	require.NoError(t, s.advance(s3types.SessionCompleting))
	require.NoError(t, s.advance(s3types.SessionCompleted))

	err := s.advance(s3types.SessionAborting)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
	assert.Equal(t, s3types.SessionCompleted, s.State)

	s = newSession(bucket, key, worker.DiscardLogger(), nil)
	assert.Error(t, s.advance(s3types.SessionCompleted), "cannot skip the barrier")
}

func TestDetectContentType(t *testing.T) {
	fs := tu.NewMemFS(t, map[string][]byte{
		"a.json":    []byte(`{"name": "value"}`),
		"image.png": {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
		"blob":      {0x00, 0x01, 0x02, 0x03},
	})

	assert.Equal(t, "application/json", DetectContentType(fs, "a.json"))
	assert.Equal(t, "image/png", DetectContentType(fs, "image.png"))
	assert.Equal(t, DefaultContentType, DetectContentType(fs, "blob"))
	assert.Equal(t, "text/html; charset=utf-8", DetectContentType(fs, "missing.html"))
}
