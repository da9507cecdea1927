package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/dd0wney/scann-ondevice/pkg/indexstore"
	"github.com/dd0wney/scann-ondevice/pkg/validation"
)

// openStore creates the store a manifest or command line points at
func openStore(ctx context.Context, spec validation.StoreSpec) (indexstore.Store, error) {
	opts := indexstore.Options{Logger: logger, Metrics: registry}
	switch spec.Kind {
	case validation.StoreS3:
		return indexstore.NewS3Store(ctx, indexstore.S3Config{
			Bucket:          spec.Bucket,
			Prefix:          spec.Prefix,
			Region:          spec.Region,
			Endpoint:        spec.Endpoint,
			AccessKeyID:     spec.AccessKeyID,
			SecretAccessKey: spec.SecretAccessKey,
		}, opts)
	case validation.StoreLocal, "":
		return indexstore.NewFileStore(validation.DefaultOr(spec.Dir, "."), opts)
	default:
		return nil, fmt.Errorf("unknown store kind %q", spec.Kind)
	}
}

// s3Flags binds the S3 location flags shared by push and pull.
// Credentials come from the default AWS chain.
type s3Flags struct {
	spec validation.StoreSpec
}

func (f *s3Flags) register(flags *pflag.FlagSet) {
	f.spec.Kind = validation.StoreS3
	flags.StringVar(&f.spec.Bucket, "bucket", "", "S3 bucket (required)")
	flags.StringVar(&f.spec.Prefix, "prefix", "", "Key prefix inside the bucket")
	flags.StringVar(&f.spec.Region, "region", envOr("AWS_REGION", "us-east-1"), "AWS region")
	flags.StringVar(&f.spec.Endpoint, "endpoint", "", "Custom endpoint for S3-compatible servers (path-style)")
}

func (f *s3Flags) open(ctx context.Context) (indexstore.Store, error) {
	if f.spec.Bucket == "" {
		return nil, fmt.Errorf("--bucket is required")
	}
	return openStore(ctx, f.spec)
}
