package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

const defaultMaxUploadSize int64 = 16 << 20

// DefaultAllowedExtensions lists attachment types accepted when none are configured.
var DefaultAllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "txt"}

// ErrFileNotFound covers missing files and names that escape the upload root.
var ErrFileNotFound = apperrors.NewNotFound("File")

// FileStorage persists uploaded attachments by name.
type FileStorage interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// UploadSettings bounds what Save accepts.
type UploadSettings struct {
	MaxSize           int64
	AllowedExtensions []string
}

// UploadService validates and stores job and quote attachments.
type UploadService struct {
	storage FileStorage
	maxSize int64
	allowed map[string]struct{}
}

// NewUploadService constructs an UploadService over the given storage.
func NewUploadService(storage FileStorage, settings UploadSettings) (*UploadService, error) {
	if storage == nil {
		return nil, errors.New("upload service: storage is required")
	}

	exts := settings.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	maxSize := settings.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}

	return &UploadService{storage: storage, maxSize: maxSize, allowed: allowed}, nil
}

// MaxSize reports the largest accepted upload in bytes.
func (s *UploadService) MaxSize() int64 { return s.maxSize }

// Save stores the uploaded file under a randomised name and returns it.
func (s *UploadService) Save(ctx context.Context, header *multipart.FileHeader) (string, error) {
	ctx = ensureContext(ctx)

	if header == nil || header.Filename == "" {
		return "", apperrors.NewValidation("attachment", "No file was uploaded")
	}

	original := sanitiseFilename(header.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(original)), ".")
	if _, ok := s.allowed[ext]; !ok {
		return "", apperrors.NewValidation("attachment", "File type not allowed")
	}
	if header.Size > s.maxSize {
		return "", apperrors.NewValidation("attachment", fmt.Sprintf("File is too large (max %d MB)", s.maxSize>>20))
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("upload service: open upload: %w", err)
	}
	defer file.Close()

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + original
	body := io.LimitReader(file, s.maxSize+1)
	if err := s.storage.Put(ctx, name, body, header.Size, contentTypeFor(name)); err != nil {
		return "", fmt.Errorf("upload service: store %s: %w", name, err)
	}
	return name, nil
}

// Open returns the stored file and its content type.
func (s *UploadService) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	ctx = ensureContext(ctx)

	if !validStoredName(name) {
		return nil, "", ErrFileNotFound
	}
	rc, err := s.storage.Open(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeFor(name), nil
}

// Delete removes a stored file. Missing files are ignored.
func (s *UploadService) Delete(ctx context.Context, name string) error {
	ctx = ensureContext(ctx)

	if !validStoredName(name) {
		return ErrFileNotFound
	}
	return s.storage.Delete(ctx, name)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitiseFilename keeps the base name and replaces anything outside a
// conservative character set.
func sanitiseFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

func validStoredName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return name == sanitiseFilename(name)
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// LocalStorage keeps files in a directory on disk.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the directory if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage: directory is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("local storage: create %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

func (l *LocalStorage) resolve(name string) (string, error) {
	full := filepath.Join(l.root, name)
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", ErrFileNotFound
	}
	return full, nil
}

func (l *LocalStorage) Put(_ context.Context, name string, body io.Reader, _ int64, _ string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(full)
		return err
	}
	return f.Close()
}

func (l *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return f, err
}

func (l *LocalStorage) Delete(_ context.Context, name string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// S3API is the subset of the S3 client used for attachments.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Settings configures the S3 client.
type S3Settings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, settings S3Settings) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.Region),
	}
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ensureContext(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = settings.UsePathStyle
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	}), nil
}

// S3Storage keeps files in a bucket under an optional key prefix.
type S3Storage struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Storage wraps an S3 client.
func NewS3Storage(client S3API, bucket, prefix string) (*S3Storage, error) {
	if client == nil {
		return nil, errors.New("s3 storage: client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Storage) Put(ctx context.Context, name string, body io.Reader, _ int64, contentType string) error {
	// The SDK signs the payload and needs a seekable body.
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}
