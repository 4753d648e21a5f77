package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"canalpro-publisher/config"
)

// PhotoBucket mirrors scraped photos to an S3-compatible bucket so that
// listing jobs reference stable URLs instead of the source site's CDN.
type PhotoBucket struct {
	client   *s3.S3
	bucket   string
	region   string
	endpoint string
}

// NewPhotoBucket returns nil, nil when no bucket is configured.
func NewPhotoBucket(cfg *config.Config) (*PhotoBucket, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.S3Key != "" && cfg.S3Secret != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.S3Key, cfg.S3Secret, "")
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3: create session: %w", err)
	}

	return &PhotoBucket{
		client:   s3.New(sess),
		bucket:   cfg.S3Bucket,
		region:   cfg.S3Region,
		endpoint: strings.TrimRight(cfg.S3Endpoint, "/"),
	}, nil
}

// ObjectKey is the bucket key of photo idx (zero based) of a property.
func ObjectKey(codigo string, idx int, ext string) string {
	return fmt.Sprintf("imoveis/%s/foto_%03d%s", codigo, idx+1, ext)
}

// Mirror uploads one photo and returns its public URL.
func (b *PhotoBucket) Mirror(ctx context.Context, codigo string, idx int, data []byte, contentType string) (string, error) {
	key := ObjectKey(codigo, idx, extensionForType(contentType))
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	return b.URL(key), nil
}

// URL builds the public address of key.
func (b *PhotoBucket) URL(key string) string {
	if b.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, key)
}

func extensionForType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
