// Package network holds the clients for the blob network: bucket
// provisioning over the S3-compatible API and bearer-token minting for the
// deletion endpoint.
package network

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/photovault/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	createBucket = func(c *s3.Client, ctx context.Context, in *s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
		return c.CreateBucket(ctx, in)
	}
	deleteBucket = func(c *s3.Client, ctx context.Context, in *s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error) {
		return c.DeleteBucket(ctx, in)
	}
)

// Buckets provisions per-user blob-network buckets.
type Buckets struct {
	config *sc.Config
}

// NewBuckets constructs a Buckets provisioner using server config.
func NewBuckets(config *sc.Config) *Buckets {
	return &Buckets{config: config}
}

func (b *Buckets) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(b.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.config.S3RootUser,     // MINIO_ROOT_USER
			b.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(b.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Create provisions a bucket with the given name and returns its id.
func (b *Buckets) Create(ctx context.Context, name string) (string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	if _, err := createBucket(client, ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		return "", fmt.Errorf("creating bucket %s: %w", name, err)
	}

	return name, nil
}

// Delete removes a previously provisioned bucket.
func (b *Buckets) Delete(ctx context.Context, name string) error {
	client, err := b.getClient(ctx)
	if err != nil {
		return err
	}

	if _, err := deleteBucket(client, ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting bucket %s: %w", name, err)
	}

	return nil
}
