package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ErrPublish is returned when a finished export cannot be uploaded
var ErrPublish = errors.New("failed to publish export")

// Publisher ships a finished output file somewhere and returns its location
type Publisher interface {
	Publish(ctx context.Context, localPath string, contentType string) (string, error)
}

// S3Publisher uploads exports to an S3-compatible bucket
type S3Publisher struct {
	config   S3Config
	uploader *s3manager.Uploader
	logger   *slog.Logger
}

// NewS3Publisher creates a publisher with static credentials and path-style addressing
func NewS3Publisher(config S3Config, logger *slog.Logger) (*S3Publisher, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		Credentials:      credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.Region == "" {
		awsConfig.Region = aws.String(regionAuto)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create S3 session: %w", ErrPublish, err)
	}

	return &S3Publisher{
		config:   config,
		uploader: s3manager.NewUploader(sess),
		logger:   logger,
	}, nil
}

// Publish uploads localPath to s3://bucket/prefix/basename
func (p *S3Publisher) Publish(ctx context.Context, localPath string, contentType string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	defer file.Close()

	key := ObjectKey(p.config.Prefix, localPath)
	location := fmt.Sprintf("s3://%s/%s", p.config.Bucket, key)
	p.logger.Debug(fmt.Sprintf("☁️  Uploading %s to %s", localPath, location))

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.config.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPublish, location, err)
	}

	return location, nil
}
