package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	Prefix          string
}

// Uploader puts finished workbooks into an S3-compatible bucket and hands
// out presigned download links.
type Uploader struct {
	raw    *minio.Client
	bucket string
	prefix string
}

func NewUploader(cfg S3Config) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("export: create s3 client: %w", err)
	}
	return &Uploader{raw: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (u *Uploader) UploadXLSX(ctx context.Context, fileName string, data []byte) (string, error) {
	if u == nil || u.raw == nil {
		return "", fmt.Errorf("export: uploader not configured")
	}

	key := u.prefix + fileName
	reader := bytes.NewReader(data)

	_, err := u.raw.PutObject(ctx, u.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		return "", fmt.Errorf("export: put object %q: %w", key, err)
	}
	return key, nil
}

func (u *Uploader) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if u == nil || u.raw == nil {
		return "", fmt.Errorf("export: uploader not configured")
	}
	link, err := u.raw.PresignedGetObject(ctx, u.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("export: presign %q: %w", key, err)
	}
	return link.String(), nil
}
