package multipart

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/manager"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/planner"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/transfer/worker"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

const (
	// DefaultConcurrency is the number of parts uploaded at once.
	DefaultConcurrency = 40

	// cleanupTimeout bounds the abort call issued after a failure.
	cleanupTimeout = 30 * time.Second
)

// Config holds the dependencies shared by every upload of a client.
type Config struct {
	Client s3api.S3API
	FS     billy.Filesystem
	Policy retry.Policy

	// Concurrency caps parts in flight; zero uses DefaultConcurrency
	Concurrency int

	// PartTimeout caps each part attempt; zero is unbounded
	PartTimeout time.Duration

	// MinPartSize is the part-size floor; values below planner.MinPartSize use it
	MinPartSize int64

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Request describes one file upload.
type Request struct {
	Bucket string
	Key    string
	Path   string

	// ContentType is sniffed from the file when empty
	ContentType  string
	Metadata     map[string]string
	StorageClass s3types.StorageClass
	SSE          *s3types.SSEConfig

	// ACL is applied after the object commits; empty skips it
	ACL s3types.ObjectACL

	Progress s3types.ProgressTracker

	// TransferID is generated when empty
	TransferID string
}

// Coordinator uploads files as multipart sessions.
type Coordinator struct {
	cfg Config
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MinPartSize < planner.MinPartSize {
		cfg.MinPartSize = planner.MinPartSize
	}
	if cfg.Logger == nil {
		cfg.Logger = worker.DiscardLogger()
	}
	return &Coordinator{cfg: cfg}
}

// Upload sends the file at req.Path to req.Bucket/req.Key.
//
// The object becomes visible only if the store lists every planned part after
// all workers have finished. Otherwise the session is aborted and the error
// wraps ErrReconciliationMismatch together with each failed part.
func (c *Coordinator) Upload(ctx context.Context, req Request) (*s3types.UploadResult, error) {
	start := time.Now()
	if req.TransferID == "" {
		req.TransferID = uuid.NewString()
	}
	log := c.cfg.Logger.WithFields(logrus.Fields{
		"transfer_id": req.TransferID,
		"bucket":      req.Bucket,
		"key":         req.Key,
	})

	result, err := c.upload(ctx, log, req)
	c.cfg.Metrics.ObserveTransfer(s3types.DirectionUpload, err, time.Since(start))
	if err != nil {
		if req.Progress != nil {
			req.Progress.Error(err)
		}
		return nil, err
	}

	result.Duration = time.Since(start)
	if req.Progress != nil {
		req.Progress.Complete()
	}
	log.WithField("duration", result.Duration).Infof("Uploaded %s in %d parts (%s/s)",
		humanize.IBytes(uint64(result.Size)), result.Parts, throughput(result.Size, result.Duration))
	return result, nil
}

func (c *Coordinator) upload(
	ctx context.Context,
	log logrus.FieldLogger,
	req Request,
) (*s3types.UploadResult, error) {
	info, err := c.cfg.FS.Stat(req.Path)
	if err != nil {
		return nil, errors.NewObjectError("upload", req.Bucket, req.Key, err)
	}
	if info.IsDir() {
		return nil, errors.NewObjectError("upload", req.Bucket, req.Key,
			fmt.Errorf("%w: %s is a directory", errors.ErrInvalidInput, req.Path))
	}

	plan, err := planner.SizeChunks(info.Size(), c.cfg.MinPartSize)
	if err != nil {
		return nil, errors.NewObjectError("upload", req.Bucket, req.Key, err)
	}
	parts := plan.Parts()
	progress := worker.NewProgress(req.Progress, plan.SourceSize)

	sess := newSession(req.Bucket, req.Key, log, c.cfg.Metrics)
	if err := c.create(ctx, sess, req); err != nil {
		return nil, err
	}
	log = log.WithField("upload_id", sess.ID)
	log.Infof("Uploading %s in %d chunks of %s",
		humanize.IBytes(uint64(plan.SourceSize)), plan.ChunkCount, humanize.IBytes(uint64(plan.BytesPerChunk)))

	if err := sess.advance(s3types.SessionPartsInFlight); err != nil {
		return nil, err
	}

	up := worker.NewUploader(&worker.Config{
		Client:      c.cfg.Client,
		Bucket:      req.Bucket,
		Key:         req.Key,
		Policy:      c.cfg.Policy,
		PartTimeout: c.cfg.PartTimeout,
		Logger:      log,
		Metrics:     c.cfg.Metrics,
		Progress:    progress,
	}, c.cfg.FS, req.Path, sess.ID)
	results := manager.Run(ctx, c.cfg.Concurrency, parts, up.Transfer)
	partErrs := partErrors(results)

	if err := c.reconcile(ctx, sess, len(parts)); err != nil {
		return nil, c.abort(ctx, sess, stderrors.Join(append([]error{err}, partErrs...)...))
	}

	if err := sess.advance(s3types.SessionCompleting); err != nil {
		return nil, err
	}
	out, err := c.complete(ctx, sess)
	if err != nil {
		return nil, c.abort(ctx, sess, err)
	}
	if err := sess.advance(s3types.SessionCompleted); err != nil {
		return nil, err
	}

	if err := c.applyACL(ctx, req); err != nil {
		log.WithError(err).Error("object committed but ACL could not be applied")
		return nil, err
	}

	return &s3types.UploadResult{
		Key:        req.Key,
		Size:       plan.SourceSize,
		ETag:       aws.ToString(out.ETag),
		VersionID:  aws.ToString(out.VersionId),
		Parts:      len(parts),
		TransferID: req.TransferID,
	}, nil
}

func (c *Coordinator) create(ctx context.Context, sess *session, req Request) error {
	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(c.cfg.FS, req.Path)
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(req.Bucket),
		Key:         aws.String(req.Key),
		ContentType: aws.String(contentType),
	}

	if req.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(req.StorageClass)
	}

	if len(req.Metadata) > 0 {
		input.Metadata = req.Metadata
	}

	if req.SSE != nil {
		switch req.SSE.Type {
		case s3types.SSES3:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
		case s3types.SSEKMS:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
			if req.SSE.KMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(req.SSE.KMSKeyID)
			}
		}
	}

	output, err := c.cfg.Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return errors.NewObjectError("createMultipartUpload", req.Bucket, req.Key, errors.FromAPI(err))
	}

	sess.ID = aws.ToString(output.UploadId)
	return nil
}

// reconcile lists the parts the store holds for the session. The listing is
// authoritative: worker results are not consulted.
func (c *Coordinator) reconcile(ctx context.Context, sess *session, planned int) error {
	uploaded := make(map[int32]string, planned)

	paginator := s3.NewListPartsPaginator(c.cfg.Client, &s3.ListPartsInput{
		Bucket:   aws.String(sess.Bucket),
		Key:      aws.String(sess.Key),
		UploadId: aws.String(sess.ID),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.NewObjectError("listParts", sess.Bucket, sess.Key, errors.FromAPI(err))
		}
		for _, p := range page.Parts {
			n := aws.ToInt32(p.PartNumber)
			if n >= 1 && int(n) <= planned {
				uploaded[n] = aws.ToString(p.ETag)
			}
		}
	}
	sess.UploadedParts = uploaded

	if len(uploaded) != planned {
		return errors.NewObjectError("upload", sess.Bucket, sess.Key,
			fmt.Errorf("%w: store lists %d of %d parts", errors.ErrReconciliationMismatch, len(uploaded), planned))
	}
	return nil
}

func (c *Coordinator) complete(ctx context.Context, sess *session) (*s3.CompleteMultipartUploadOutput, error) {
	parts := make([]awstypes.CompletedPart, 0, len(sess.UploadedParts))
	for n, etag := range sess.UploadedParts {
		parts = append(parts, awstypes.CompletedPart{
			PartNumber: aws.Int32(n),
			ETag:       aws.String(etag),
		})
	}
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	output, err := c.cfg.Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(sess.Bucket),
		Key:             aws.String(sess.Key),
		UploadId:        aws.String(sess.ID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return nil, errors.NewObjectError("completeMultipartUpload", sess.Bucket, sess.Key, errors.FromAPI(err))
	}
	return output, nil
}

// abort releases the session and returns cause. The abort call ignores
// caller cancellation so a canceled upload still cleans up after itself.
func (c *Coordinator) abort(ctx context.Context, sess *session, cause error) error {
	if err := sess.advance(s3types.SessionAborting); err != nil {
		return stderrors.Join(cause, err)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	_, err := c.cfg.Client.AbortMultipartUpload(cctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(sess.Bucket),
		Key:      aws.String(sess.Key),
		UploadId: aws.String(sess.ID),
	})
	if err != nil {
		sess.log.WithError(err).Warn("abort multipart upload failed, parts may linger until the bucket lifecycle removes them")
	}

	if aerr := sess.advance(s3types.SessionAborted); aerr != nil {
		return stderrors.Join(cause, aerr)
	}
	sess.log.WithError(cause).Error("upload aborted")
	return cause
}

func (c *Coordinator) applyACL(ctx context.Context, req Request) error {
	if req.ACL == "" {
		return nil
	}

	_, err := c.cfg.Client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
		ACL:    awstypes.ObjectCannedACL(req.ACL),
	})
	if err != nil {
		return errors.NewObjectError("putObjectAcl", req.Bucket, req.Key, errors.FromAPI(err))
	}
	return nil
}

func partErrors(results []s3types.PartResult) []error {
	var errs []error
	for _, r := range manager.Failed(results) {
		errs = append(errs, r.Err)
	}
	return errs
}

func throughput(size int64, d time.Duration) string {
	if d <= 0 {
		return humanize.IBytes(uint64(size))
	}
	return humanize.IBytes(uint64(float64(size) / d.Seconds()))
}
