package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
)

// S3Config configures the S3 backend. Endpoint and PathStyle point the
// client at S3-compatible services such as MinIO.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	PathStyle       bool
}

// ObjectAPI is the subset of the S3 client the backend calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores files as objects in a bucket. Paths are the public URL of the
// object when PublicBaseURL is set, otherwise s3://bucket/key.
type S3 struct {
	client  ObjectAPI
	bucket  string
	baseURL string
}

// NewS3 builds an S3 client from cfg. Without an access key the client
// makes anonymous requests.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("uploads: s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return NewS3WithClient(s3.New(opts), cfg.Bucket, cfg.PublicBaseURL), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client ObjectAPI, bucket, publicBaseURL string) *S3 {
	return &S3{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", name, s.bucket, err)
	}
	return s.path(name), nil
}

// Delete removes the object referenced by p. A missing object is not an error.
func (s *S3) Delete(ctx context.Context, p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil
		}
		return fmt.Errorf("deleting %s from bucket %s: %w", key, s.bucket, err)
	}
	return nil
}

func (s *S3) path(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return "s3://" + s.bucket + "/" + key
}

func (s *S3) key(p string) (string, error) {
	for _, prefix := range []string{s.baseURL + "/", "s3://" + s.bucket + "/"} {
		if prefix == "/" {
			continue
		}
		if key, ok := strings.CutPrefix(p, prefix); ok && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
}
