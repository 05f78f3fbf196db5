package bridge

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"lbm-go/internal/config"
)

// S3Host serves the site straight out of an S3 bucket.
type S3Host struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Host builds the host from bridge configuration. Explicit access
// keys take precedence; otherwise the default credential chain applies.
func NewS3Host(ctx context.Context, cfg config.BridgeConfig) (*S3Host, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 host needs a bucket")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Host{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

func (h *S3Host) ValidateSetup(ctx context.Context) error {
	_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(h.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", h.bucket, err)
	}
	return nil
}

func (h *S3Host) Put(ctx context.Context, name string, data []byte) error {
	key := name
	if h.prefix != "" {
		key = path.Join(h.prefix, name)
	}
	_, err := h.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".js":
		return "application/javascript"
	case ".xml":
		return "application/rss+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

var _ HostStore = (*S3Host)(nil)
