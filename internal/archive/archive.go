// Package archive copies intruder snapshots to S3-compatible object storage
// so evidence survives local retention cleanup.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/config"
)

// Archiver stores a local artifact remotely and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
}

// S3 uploads artifacts to one bucket under a key prefix.
type S3 struct {
	api    *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// New builds an S3 archiver. It returns nil, nil when no bucket is
// configured.
func New(ctx context.Context, cfg *config.ArchiveConfig, log zerolog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		// buildable so AWS_CA_BUNDLE can extend the TLS roots
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(30 * time.Second)),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3{
		api:    client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With().Str("component", "archive").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// Key returns the object key for a local file name.
func (a *S3) Key(localPath string) string {
	return path.Join(a.prefix, filepath.Base(localPath))
}

// Archive uploads the file with a SHA-256 checksum the server verifies.
func (a *S3) Archive(ctx context.Context, localPath string) (string, error) {
	if a == nil {
		return "", errors.New("nil archiver")
	}
	data, err := os.ReadFile(localPath) //nolint:gosec // path comes from the storage router
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	checksum := base64.StdEncoding.EncodeToString(sum[:])
	key := a.Key(localPath)

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(a.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(checksum),
		Metadata: map[string]string{
			"sha256": digest,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	a.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("artifact archived")
	return key, nil
}
