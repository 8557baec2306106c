package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService keeps copies of uploaded receipt images in S3-compatible
// storage. Archival is best-effort and optional: scans are processed the
// same way whether or not an archive is configured, and scan results
// themselves are never persisted.
type ArchiveService struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewArchiveService creates an S3 archive client.
func NewArchiveService(endpoint, accessKey, secretKey, bucketName, region string, useSSL bool) (*ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &ArchiveService{
		client:     client,
		bucketName: bucketName,
		region:     region,
	}, nil
}

// EnsureBucket creates the archive bucket if it doesn't exist.
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{
			Region: s.region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Archive stores one receipt image and returns its object key.
func (s *ArchiveService) Archive(ctx context.Context, imageBytes []byte, contentType string) (string, error) {
	key := fmt.Sprintf("receipts/%d%s", time.Now().UnixNano(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(imageBytes), int64(len(imageBytes)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive receipt image: %w", err)
	}

	return key, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
