/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config contains configuration for the S3-compatible backend.
type S3Config struct {
	// Bucket is the bucket name.
	Bucket string

	// Region is the AWS region.
	Region string

	// Prefix is the key prefix for all objects (the store root).
	Prefix string

	// Endpoint is an optional custom endpoint for S3-compatible services
	// like MinIO.
	Endpoint string

	// UsePathStyle forces path-style addressing (required for MinIO).
	UsePathStyle bool

	// AccessKeyID is the access key ID (optional, uses IAM role if not set).
	AccessKeyID string

	// SecretAccessKey is the secret access key (optional, uses IAM role if not set).
	SecretAccessKey string
}

// s3Client defines the S3 operations used by S3Storage.
// This interface allows for mocking in tests.
type s3Client interface {
	PutObject(
		ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
	GetObject(
		ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)
	HeadObject(
		ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options),
	) (*s3.HeadObjectOutput, error)
	DeleteObject(
		ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(
		ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements Storage using Amazon S3 or compatible services.
type S3Storage struct {
	client s3Client
	config S3Config
}

// NewS3Storage creates a new S3 blob store backend.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("region is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// key maps a store-relative path onto an object key under the configured
// prefix.
func (s *S3Storage) key(p string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.config.Prefix == "" {
		return cleaned
	}
	return path.Join(s.config.Prefix, cleaned)
}

// Open reads an object, returning (nil, nil) when it does not exist.
func (s *S3Storage) Open(ctx context.Context, p string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", p, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Upload writes or overwrites an object.
func (s *S3Storage) Upload(ctx context.Context, p string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ResolveContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.key(p)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", p, err)
	}
	return nil
}

// Delete removes an object. S3 DeleteObject does not error on missing
// objects, which matches the idempotent contract.
func (s *S3Storage) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

// Exists reports whether an object is present.
func (s *S3Storage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", p, err)
	}
	return true, nil
}

// List enumerates the immediate entries under prefix. Common prefixes are
// reported as directories so the facade behaves like the filesystem backend.
func (s *S3Storage) List(ctx context.Context, prefix string, filter ListFilter) ([]Blob, error) {
	keyPrefix := s.key(prefix)
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}

	trim := ""
	if s.config.Prefix != "" {
		trim = s.config.Prefix + "/"
	}

	var blobs []Blob
	var continuationToken *string
	for {
		output, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.config.Bucket),
			Prefix:            aws.String(keyPrefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}

		for _, cp := range output.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			blob := Blob{
				Path:  strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, trim), "/"),
				IsDir: true,
			}
			if filter == nil || filter(blob) {
				blobs = append(blobs, blob)
			}
		}
		for _, obj := range output.Contents {
			if obj.Key == nil {
				continue
			}
			blob := Blob{Path: strings.TrimPrefix(*obj.Key, trim)}
			if obj.Size != nil {
				blob.Size = *obj.Size
			}
			if filter == nil || filter(blob) {
				blobs = append(blobs, blob)
			}
		}

		if output.IsTruncated == nil || !*output.IsTruncated {
			break
		}
		continuationToken = output.NextContinuationToken
	}
	return blobs, nil
}

// isNotFound reports whether err indicates a missing object. Some
// S3-compatible services return generic errors, so the message is also
// inspected.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "not found")
}

// Ensure S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)
