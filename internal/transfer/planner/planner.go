package planner

import (
	"fmt"
	"math"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

const (
	// MinPartSize is the store's minimum multipart part size (5MiB).
	// It is also the base unit of the square-root sizing rule.
	MinPartSize int64 = 5 * 1024 * 1024

	// MaxPartSize is the store's maximum multipart part size (5GiB).
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024

	// MaxParts is the store's maximum number of parts per upload.
	MaxParts = 10000
)

// PlanRanges splits totalSize bytes into at most numParts contiguous ranges of
// ceil(totalSize/numParts) bytes each; the last range is clipped to the object end.
// Ranges that ceil rounding leaves empty at the tail are omitted.
func PlanRanges(totalSize int64, numParts int) ([]s3types.PartSpec, error) {
	if numParts < 1 {
		return nil, errors.NewError("planRanges", errors.ErrPlanning).
			WithMessage(fmt.Sprintf("part count %d must be at least 1", numParts))
	}
	if totalSize < 0 {
		return nil, errors.NewError("planRanges", errors.ErrPlanning).
			WithMessage(fmt.Sprintf("negative size %d", totalSize))
	}
	if totalSize == 0 {
		return []s3types.PartSpec{{Index: 1}}, nil
	}

	partSize := ceilDiv(totalSize, int64(numParts))
	parts := make([]s3types.PartSpec, 0, min(int64(numParts), totalSize))
	for i := int64(0); i < int64(numParts); i++ {
		start := partSize * i
		if start >= totalSize {
			break
		}
		end := min(partSize*(i+1)-1, totalSize-1)
		parts = append(parts, s3types.PartSpec{
			Index:  int(i) + 1,
			Offset: start,
			Length: end - start + 1,
		})
	}
	return parts, nil
}

// ChunkPlan is the upload part layout for a source of known size.
type ChunkPlan struct {
	SourceSize    int64
	BytesPerChunk int64
	ChunkCount    int
}

// SizeChunks computes max(floor, sqrt(MinPartSize)*sqrt(sourceSize)) bytes per
// chunk, clamped to MaxPartSize, and the ceiling chunk count. A floor of zero
// or less means MinPartSize; a floor above MaxPartSize is rejected.
func SizeChunks(sourceSize, floor int64) (ChunkPlan, error) {
	if sourceSize < 0 {
		return ChunkPlan{}, errors.NewError("sizeChunks", errors.ErrPlanning).
			WithMessage(fmt.Sprintf("negative size %d", sourceSize))
	}
	if floor <= 0 {
		floor = MinPartSize
	}
	if floor > MaxPartSize {
		return ChunkPlan{}, errors.NewError("sizeChunks", errors.ErrPlanning).
			WithMessage(fmt.Sprintf("part size floor %d exceeds the limit of %d", floor, MaxPartSize))
	}

	scaled := int64(math.Sqrt(float64(MinPartSize)) * math.Sqrt(float64(sourceSize)))
	bytesPerChunk := min(max(floor, scaled), MaxPartSize)

	count := 1
	if sourceSize > 0 {
		count = int(ceilDiv(sourceSize, bytesPerChunk))
	}
	if count > MaxParts {
		return ChunkPlan{}, errors.NewError("sizeChunks", errors.ErrPlanning).
			WithMessage(fmt.Sprintf("%d parts exceeds the limit of %d", count, MaxParts))
	}

	return ChunkPlan{
		SourceSize:    sourceSize,
		BytesPerChunk: bytesPerChunk,
		ChunkCount:    count,
	}, nil
}

// Parts returns the per-chunk layout. The last chunk absorbs the remainder.
func (p ChunkPlan) Parts() []s3types.PartSpec {
	parts := make([]s3types.PartSpec, p.ChunkCount)
	for i := range parts {
		offset := int64(i) * p.BytesPerChunk
		length := min(p.BytesPerChunk, p.SourceSize-offset)
		parts[i] = s3types.PartSpec{
			Index:  i + 1,
			Offset: offset,
			Length: length,
		}
	}
	return parts
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
