package repository

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type AWSOptions struct {
	Bucket string
	// Folder is prepended to every key.
	Folder string
	// PublicBaseURL, when set, is used to build clip URLs instead of presigning.
	PublicBaseURL string
	PresignExpiry time.Duration
}

type awsRepository struct {
	client        *s3.Client
	preSignClient *s3.PresignClient
	opts          AWSOptions
}

func NewAwsRepository(awsClient *s3.Client, preSignClient *s3.PresignClient, opts AWSOptions) tasks.AWSRepository {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = 7 * 24 * time.Hour
	}
	return &awsRepository{
		client:        awsClient,
		preSignClient: preSignClient,
		opts:          opts,
	}
}

// Upload stores filePath under <Folder>/<folder>/ with a fresh unique name.
func (a *awsRepository) Upload(ctx context.Context, filePath, folder string) (*models.UploadResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(filePath); err == nil {
		contentType = mt.String()
	}

	key := a.objectKey(folder, filepath.Ext(filePath))
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.opts.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	}); err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	url, err := a.objectURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &models.UploadResult{SecureURL: url, Key: key, Bucket: a.opts.Bucket}, nil
}

func (a *awsRepository) objectKey(folder, ext string) string {
	return path.Join(a.opts.Folder, folder, uuid.NewString()+ext)
}

func (a *awsRepository) objectURL(ctx context.Context, key string) (string, error) {
	if a.opts.PublicBaseURL != "" {
		return strings.TrimRight(a.opts.PublicBaseURL, "/") + "/" + key, nil
	}
	req, err := a.preSignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.opts.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}
