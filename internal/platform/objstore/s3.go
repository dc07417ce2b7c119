// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package objstore uploads database backups and export snapshots to S3-compatible storage.

Any endpoint speaking the S3 API works (AWS, R2, MinIO); a custom endpoint
switches the client to path-style addressing.

Core Responsibilities:

  - Off-site copies: Pre-migration backups and .hpdb exports.
  - Multipart: Large files are split by the transfer manager.
*/
package objstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const partSize = 10 * 1024 * 1024

// Options selects the bucket and credentials.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key.
	Prefix string
	Logger *slog.Logger
}

// Store is an S3 bucket used as a backup target.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// New builds a store. No request is sent until the first upload.
func New(ctx context.Context, options Options) (*Store, error) {
	if options.Bucket == "" {
		return nil, errors.New("objstore: bucket is required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(options.Region)}
	if options.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKey, options.SecretKey, ""),
		))
	}
	if options.Endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(options.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = options.Endpoint != ""
		o.RetryMaxAttempts = 3
		o.RetryMode = aws.RetryModeAdaptive
	})

	return &Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		bucket: options.Bucket,
		prefix: options.Prefix,
		logger: options.Logger.With(slog.String("component", "objstore")),
	}, nil
}

// Key returns the full object key for name.
func (s *Store) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// UploadFile copies the local file at filePath to key.
func (s *Store) UploadFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("objstore: open %s: %w", filePath, err)
	}
	defer file.Close()

	key = s.Key(key)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("objstore: upload %q to bucket %q: %w", key, s.bucket, err)
	}

	s.logger.Info("objstore_uploaded", slog.String("bucket", s.bucket), slog.String("key", key))
	return nil
}

// Exists reports whether key is already in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	key = s.Key(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("objstore: head %q: %w", key, err)
}
