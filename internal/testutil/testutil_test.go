package testutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockS3Client(t *testing.T) {
	t.Run("custom function", func(t *testing.T) {
		mock := &MockS3Client{
			UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
				assert.Equal(t, "test-bucket", *params.Bucket)
				assert.Equal(t, int32(3), *params.PartNumber)
				return &s3.UploadPartOutput{ETag: aws.String("test-etag")}, nil
			},
		}

		output, err := mock.UploadPart(context.Background(), &s3.UploadPartInput{
			Bucket:     aws.String("test-bucket"),
			PartNumber: aws.Int32(3),
		})

		require.NoError(t, err)
		assert.Equal(t, "test-etag", *output.ETag)
	})

	t.Run("returns default when no function set", func(t *testing.T) {
		mock := &MockS3Client{}
		output, err := mock.GetObject(context.Background(), &s3.GetObjectInput{})

		require.NoError(t, err)
		require.NotNil(t, output.Body)
		data, err := io.ReadAll(output.Body)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestMockBuilder(t *testing.T) {
	t.Run("serves ranges of an object", func(t *testing.T) {
		data := []byte("0123456789")
		mock := NewMockBuilder().WithObject(data).Build()

		head, err := mock.HeadObject(context.Background(), &s3.HeadObjectInput{})
		require.NoError(t, err)
		assert.Equal(t, int64(10), *head.ContentLength)

		out, err := mock.GetObject(context.Background(), &s3.GetObjectInput{Range: aws.String("bytes=2-4")})
		require.NoError(t, err)
		got, _ := io.ReadAll(out.Body)
		assert.Equal(t, "234", string(got))
	})

	t.Run("error on every operation", func(t *testing.T) {
		boom := errors.New("boom")
		mock := NewMockBuilder().WithError(boom).Build()

		_, err := mock.HeadObject(context.Background(), &s3.HeadObjectInput{})
		assert.ErrorIs(t, err, boom)
		_, err = mock.UploadPart(context.Background(), &s3.UploadPartInput{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestFakeStore_GetObjectRanges(t *testing.T) {
	store := NewFakeStore()
	store.Put("b", "k", []byte("abcdefghij"))
	ctx := context.Background()

	out, err := store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("b"), Key: aws.String("k"), Range: aws.String("bytes=8-20"),
	})
	require.NoError(t, err)
	got, _ := io.ReadAll(out.Body)
	assert.Equal(t, "ij", string(got))

	_, err = store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("b"), Key: aws.String("k"), Range: aws.String("bytes=10-12"),
	})
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "InvalidRange", apiErr.ErrorCode())

	_, err = store.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String("b"), Key: aws.String("missing")})
	var nsk *types.NoSuchKey
	assert.ErrorAs(t, err, &nsk)
	assert.Equal(t, 1, store.GetCalls("bytes=8-20"))
}

func TestFakeStore_MultipartLifecycle(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	created, err := store.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String("b"), Key: aws.String("k"), ContentType: aws.String("text/plain"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.PendingUploads())

	var completed []types.CompletedPart
	for i, chunk := range []string{"hello ", "multipart ", "world"} {
		num := int32(i + 1)
		out, err := store.UploadPart(ctx, &s3.UploadPartInput{
			Bucket: aws.String("b"), Key: aws.String("k"), UploadId: created.UploadId,
			PartNumber: aws.Int32(num), Body: stringReader(chunk),
		})
		require.NoError(t, err)
		completed = append(completed, types.CompletedPart{PartNumber: aws.Int32(num), ETag: out.ETag})
	}

	_, err = store.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket: aws.String("b"), Key: aws.String("k"), UploadId: created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	require.NoError(t, err)

	data, ok := store.Object("b", "k")
	require.True(t, ok)
	assert.Equal(t, "hello multipart world", string(data))
	assert.Equal(t, "text/plain", store.ContentType("b", "k"))
	assert.Zero(t, store.PendingUploads())
}

func TestFakeStore_CompleteRejectsBadETag(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	created, err := store.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String("b"), Key: aws.String("k"),
	})
	require.NoError(t, err)
	_, err = store.UploadPart(ctx, &s3.UploadPartInput{
		UploadId: created.UploadId, PartNumber: aws.Int32(1), Body: stringReader("x"),
	})
	require.NoError(t, err)

	_, err = store.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		UploadId: created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: []types.CompletedPart{
			{PartNumber: aws.Int32(1), ETag: aws.String(`"nope"`)},
		}},
	})
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "InvalidPart", apiErr.ErrorCode())
}

func TestFakeStore_ListPartsPaginates(t *testing.T) {
	store := NewFakeStore()
	store.ListPartsPageSize = 2
	store.DropParts = map[int32]bool{3: true}
	ctx := context.Background()

	created, err := store.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String("b"), Key: aws.String("k"),
	})
	require.NoError(t, err)
	for n := int32(1); n <= 5; n++ {
		_, err := store.UploadPart(ctx, &s3.UploadPartInput{
			UploadId: created.UploadId, PartNumber: aws.Int32(n), Body: stringReader("p"),
		})
		require.NoError(t, err)
	}

	paginator := s3.NewListPartsPaginator(store, &s3.ListPartsInput{
		Bucket: aws.String("b"), Key: aws.String("k"), UploadId: created.UploadId,
	})
	var seen []int32
	pages := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		require.NoError(t, err)
		pages++
		for _, p := range page.Parts {
			seen = append(seen, *p.PartNumber)
		}
	}

	assert.Equal(t, []int32{1, 2, 4, 5}, seen)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 1, store.PartCalls(3))
}

func TestFakeStore_AbortAndACL(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	created, err := store.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String("b"), Key: aws.String("k"),
	})
	require.NoError(t, err)
	_, err = store.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{UploadId: created.UploadId})
	require.NoError(t, err)
	assert.Zero(t, store.PendingUploads())
	assert.Equal(t, 1, store.AbortCalls)

	_, err = store.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String("b"), Key: aws.String("k"), ACL: types.ObjectCannedACLPrivate,
	})
	require.Error(t, err)

	store.Put("b", "k", []byte("x"))
	_, err = store.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String("b"), Key: aws.String("k"), ACL: types.ObjectCannedACLPublicRead,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ObjectCannedACLPublicRead, store.ACL("b", "k"))
}

func TestMockProgressTracker(t *testing.T) {
	tracker := &MockProgressTracker{}
	tracker.Update(10, 100)
	tracker.Update(5, 100)
	tracker.Complete()

	transferred, total, completed, failed := tracker.Snapshot()
	assert.Equal(t, int64(10), transferred)
	assert.Equal(t, int64(100), total)
	assert.True(t, completed)
	assert.False(t, failed)
	assert.Len(t, tracker.Updates, 2)
}

func TestGenerators(t *testing.T) {
	assert.Len(t, GenerateRandomData(128), 128)

	pattern := GeneratePatternData(300)
	assert.Equal(t, byte(0), pattern[251])
	assert.Equal(t, byte(250), pattern[250])

	assert.Contains(t, GenerateTestKey("prefix"), "prefix/test-object-")
	assert.LessOrEqual(t, len(GenerateTestBucketName("A_Very_Long_Bucket_Prefix_That_Goes_On_And_On_For_Ever_And_Ever")), 63)
	assert.Equal(t, Checksum([]byte("abc")), Checksum([]byte("abc")))
}

func TestMemFSHelpers(t *testing.T) {
	fs := NewMemFS(t, map[string][]byte{"dir/a.bin": []byte("payload")})
	assert.Equal(t, []byte("payload"), ReadFile(t, fs, "dir/a.bin"))
}

func stringReader(s string) io.Reader {
	return strings.NewReader(s)
}
