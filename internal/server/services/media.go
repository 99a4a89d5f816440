package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	sc "github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// allowedMedia maps accepted file extensions to the MIME types a client may
// declare for them.
var allowedMedia = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".txt":  {"text/plain"},
}

const downloadURLExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService stores user uploads in S3-compatible object storage and
// records them in the database.
type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: m,
		config:      config,
		now:         time.Now,
	}
}

// StorageKey builds uploads/<userID>/<yyyy>/<mm>/<uuid><ext>.
func StorageKey(userID string, t time.Time, ext string) string {
	return fmt.Sprintf("uploads/%s/%04d/%02d/%s%s", userID, t.Year(), int(t.Month()), uuid.New(), ext)
}

// ValidateUpload checks the extension, declared type and size of u and
// returns the normalised extension.
func (s *MediaService) ValidateUpload(u Upload) (string, error) {
	ext := strings.ToLower(path.Ext(u.Name))
	types, ok := allowedMedia[ext]
	if !ok {
		return "", fmt.Errorf("%w: file type %q is not allowed", common.ErrInvalidFile, ext)
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(u.ContentType, ";")[0]))
	if ct != "" && ct != "application/octet-stream" {
		match := false
		for _, t := range types {
			if t == ct {
				match = true
				break
			}
		}
		if !match {
			return "", fmt.Errorf("%w: content type %q does not match %s", common.ErrInvalidFile, ct, ext)
		}
	}

	if u.Size <= 0 {
		return "", fmt.Errorf("%w: empty file", common.ErrInvalidFile)
	}
	if u.Size > s.config.MaxUploadSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidFile, s.config.MaxUploadSize)
	}
	return ext, nil
}

func (s *MediaService) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// objectURL is the path-style address of key in the configured bucket.
func (s *MediaService) objectURL(key string) string {
	return strings.TrimRight(s.config.S3BaseEndpoint, "/") + "/" + s.config.S3Bucket + "/" + key
}

// Upload validates u, writes it to object storage and records it.
func (s *MediaService) Upload(ctx context.Context, userID string, u Upload) (*models.Media, error) {
	ext, err := s.ValidateUpload(u)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient()
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	contentType := allowedMedia[ext][0]
	bucket := s.config.S3Bucket
	key := StorageKey(userID, s.now().UTC(), ext)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          u.Body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(u.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	m, err := s.repomanager.Media(s.db).Create(ctx, &models.Media{
		UserID:       userID,
		StorageKey:   key,
		URL:          s.objectURL(key),
		OriginalName: path.Base(u.Name),
		ContentType:  contentType,
		Size:         u.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", dbx.Classify(err))
	}
	return m, nil
}

// List returns the caller's uploads, newest first.
func (s *MediaService) List(ctx context.Context, userID string) ([]*models.Media, error) {
	ctx, cancel := withTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	items, err := s.repomanager.Media(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", dbx.Classify(err))
	}
	return items, nil
}

// DownloadURL returns a short-lived presigned GET URL for one of the
// caller's uploads.
func (s *MediaService) DownloadURL(ctx context.Context, userID, id string) (*models.Media, string, error) {
	qctx, cancel := withTimeout(ctx, s.config.QueryTimeout)
	m, err := s.repomanager.Media(s.db).GetByID(qctx, userID, id)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("load upload: %w", dbx.Classify(err))
	}

	client, err := s.getClient()
	if err != nil {
		return nil, "", fmt.Errorf("s3 client: %w", err)
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &m.StorageKey,
	}, s3.WithPresignExpires(downloadURLExpiry))
	if err != nil {
		return nil, "", fmt.Errorf("presign get: %w", err)
	}
	return m, req.URL, nil
}
