package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/socialapp/backend/internal/config"
)

// S3AvatarResolver turns avatar object keys into URLs served by an S3-compatible store.
// Keys are presigned for GET unless a public base URL is configured.
type S3AvatarResolver struct {
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
	ttl       time.Duration
}

// NewS3AvatarResolver configures a presign client targeting the provided object store.
func NewS3AvatarResolver(ctx context.Context, cfg config.ObjectStoreConfig) (*S3AvatarResolver, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 avatars: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3AvatarResolver{
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		baseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		ttl:       ttl,
	}, nil
}

// ResolveAvatar returns a fetchable URL for ref. Absolute URLs pass through.
func (r *S3AvatarResolver) ResolveAvatar(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	key := strings.TrimLeft(ref, "/")
	if key == "" {
		return "", fmt.Errorf("s3 avatars: empty key")
	}

	if r.baseURL != "" {
		return fmt.Sprintf("%s/%s", r.baseURL, key), nil
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", fmt.Errorf("s3 avatars presign %s: %w", key, err)
	}
	return req.URL, nil
}
