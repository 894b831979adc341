// Package testutil provides a builder for creating mock S3 clients.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithObject serves HeadObject and ranged GetObject calls from data.
func (b *MockBuilder) WithObject(data []byte) *MockBuilder {
	b.client.HeadObjectFunc = func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
	}
	b.client.GetObjectFunc = func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		body := data
		if r := aws.ToString(params.Range); r != "" {
			var start, end int64
			if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
				return nil, err
			}
			body = data[start : min(end, int64(len(data))-1)+1]
		}
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
	}
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithGetObject configures the GetObject behavior.
func (b *MockBuilder) WithGetObject(
	fn func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error),
) *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithCreateMultipartUpload configures the CreateMultipartUpload behavior.
func (b *MockBuilder) WithCreateMultipartUpload(
	fn func(context.Context, *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error),
) *MockBuilder {
	b.client.CreateMultipartUploadFunc = func(
		ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithUploadPart configures the UploadPart behavior.
func (b *MockBuilder) WithUploadPart(
	fn func(context.Context, *s3.UploadPartInput) (*s3.UploadPartOutput, error),
) *MockBuilder {
	b.client.UploadPartFunc = func(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithListParts configures the ListParts behavior.
func (b *MockBuilder) WithListParts(
	fn func(context.Context, *s3.ListPartsInput) (*s3.ListPartsOutput, error),
) *MockBuilder {
	b.client.ListPartsFunc = func(ctx context.Context, params *s3.ListPartsInput, _ ...func(*s3.Options)) (*s3.ListPartsOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithCompleteMultipartUpload configures the CompleteMultipartUpload behavior.
func (b *MockBuilder) WithCompleteMultipartUpload(
	fn func(context.Context, *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error),
) *MockBuilder {
	b.client.CompleteMultipartUploadFunc = func(
		ctx context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithAbortMultipartUpload configures the AbortMultipartUpload behavior.
func (b *MockBuilder) WithAbortMultipartUpload(
	fn func(context.Context, *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error),
) *MockBuilder {
	b.client.AbortMultipartUploadFunc = func(
		ctx context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithError makes every operation fail with err.
func (b *MockBuilder) WithError(err error) *MockBuilder {
	b.client.HeadObjectFunc = func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, err
	}
	b.client.GetObjectFunc = func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, err
	}
	b.client.CreateMultipartUploadFunc = func(
		context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error) {
		return nil, err
	}
	b.client.UploadPartFunc = func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		return nil, err
	}
	return b
}
