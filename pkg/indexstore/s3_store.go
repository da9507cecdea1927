package indexstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates a bucket. Static credentials are used when AccessKeyID is
// set; otherwise the default AWS credential chain applies. A custom Endpoint
// switches to path-style addressing for S3-compatible servers.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxRetries      int
}

// S3Store keeps blobs as objects under Prefix in Bucket
type S3Store struct {
	client S3API
	bucket string
	prefix string
	t      transfer
}

// NewS3Store loads the AWS configuration and creates a store over a new client
func NewS3Store(ctx context.Context, cfg S3Config, opts Options) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, scann.NewError("new_s3_store").InvalidArgument().Msgf("bucket is required").Err()
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, scann.NewError("new_s3_store").Msgf("failed to load AWS config").Cause(err).Err()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix, opts), nil
}

// NewS3StoreWithClient creates a store over an existing client
func NewS3StoreWithClient(client S3API, bucket, prefix string, opts Options) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, t: newTransfer("s3", opts)}
}

// objectKey returns the object key for name
func (s *S3Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Get downloads the object stored under name
func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := s.get(ctx, name)
	s.t.record(directionGet, name, len(data), start, err)
	return data, err
}

func (s *S3Store) get(ctx context.Context, name string) ([]byte, error) {
	if err := validName("s3_get", name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
	if isMissing(err) {
		return nil, scann.NewError("s3_get").NotFound().Key(name).Msgf("no such object in bucket %s", s.bucket).Cause(err).Err()
	}
	if err != nil {
		return nil, scann.NewError("s3_get").Key(name).Msgf("failed to get object").Cause(err).Err()
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, scann.NewError("s3_get").Key(name).Msgf("failed to read object body").Cause(err).Err()
	}
	return data, nil
}

// Put uploads data as the object stored under name
func (s *S3Store) Put(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := s.put(ctx, name, data)
	s.t.record(directionPut, name, len(data), start, err)
	return err
}

func (s *S3Store) put(ctx context.Context, name string, data []byte) error {
	if err := validName("s3_put", name); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return scann.NewError("s3_put").Key(name).Msgf("failed to put object").Cause(err).Err()
	}
	return nil
}

// isMissing reports whether err is S3's answer for an absent key
func isMissing(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
