package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3Client builds an S3 client. Path-style addressing is used whenever a
// custom endpoint is configured, which is what local emulators expect.
func NewS3Client(awsCfg aws.Config, customEndpoint bool) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = customEndpoint
	})
}

// S3 stores each preference as its own object at <prefix>/<profile>/<key>.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 returns a backend for profile in bucket.
func NewS3(client *s3.Client, bucket, prefix, profile string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: path.Join(strings.Trim(prefix, "/"), url.PathEscape(profile)),
	}
}

func (s *S3) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *S3) Read(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("GetObject %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading object %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *S3) Write(ctx context.Context, key, value string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("PutObject %s: %w", key, err)
	}
	return nil
}
