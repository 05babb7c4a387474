// Package attachment stores receipt images in S3-compatible object storage.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("attachment storage is not configured")

// DefaultLinkExpiry is the lifetime of presigned links. It is the longest
// validity SigV4 allows.
const DefaultLinkExpiry = 7 * 24 * time.Hour

// Config describes the bucket receipts are written to.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL, when set, is joined with the object key to build links
	// instead of presigning.
	PublicBaseURL string
	KeyPrefix     string
	LinkExpiry    time.Duration
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Store uploads receipts and returns a link to each object.
type S3Store struct {
	client     objectPutter
	presigner  objectPresigner
	bucket     string
	prefix     string
	publicBase string
	expiry     time.Duration
	now        func() time.Time
	newID      func() string
}

// New creates an S3Store from cfg.
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Log.Info().
		Str("bucket", cfg.Bucket).
		Bool("custom_endpoint", cfg.Endpoint != "").
		Bool("public_links", cfg.PublicBaseURL != "").
		Msg("Attachment storage configured")

	return newStore(client, s3.NewPresignClient(client), cfg), nil
}

func newStore(client objectPutter, presigner objectPresigner, cfg Config) *S3Store {
	expiry := cfg.LinkExpiry
	if expiry <= 0 || expiry > DefaultLinkExpiry {
		expiry = DefaultLinkExpiry
	}
	return &S3Store{
		client:     client,
		presigner:  presigner,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.KeyPrefix, "/"),
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		expiry:     expiry,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Upload writes data under a unique key derived from name and returns the
// stored object's id and link.
func (s *S3Store) Upload(ctx context.Context, data []byte, name string) (models.StoredFile, error) {
	if s == nil {
		return models.StoredFile{}, ErrNotConfigured
	}
	if len(data) == 0 {
		return models.StoredFile{}, errors.New("empty attachment")
	}

	contentType := http.DetectContentType(data)
	key := s.objectKey(name, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	link, err := s.link(ctx, key)
	if err != nil {
		return models.StoredFile{}, err
	}

	logger.Log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Attachment uploaded")
	return models.StoredFile{ID: key, Link: link}, nil
}

func (s *S3Store) link(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// objectKey builds prefix/YYYY/MM/DD/<uuid>/<name><ext>.
func (s *S3Store) objectKey(name, contentType string) string {
	d := s.now().UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s/%s%s",
		d.Year(), d.Month(), d.Day(), s.newID(), safeName(name), extension(contentType))
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// safeName keeps letters, digits, dots, dashes and underscores.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "receipt"
	}
	return b.String()
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
