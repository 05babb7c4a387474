package attachment

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	key     string
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.key = aws.ToString(in.Key)
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + f.key + "?X-Amz-Signature=abc"}, nil
}

func testStore(putter objectPutter, presigner objectPresigner, cfg Config) *S3Store {
	s := newStore(putter, presigner, cfg)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC) }
	s.newID = func() string { return "0000-id" }
	return s
}

func TestUpload_Presigned(t *testing.T) {
	putter := &fakePutter{}
	presigner := &fakePresigner{}
	s := testStore(putter, presigner, Config{Bucket: "receipts", KeyPrefix: "/ledger/"})

	file, err := s.Upload(context.Background(), pngHeader, "Receipt_2025.01.01_Cafe Noir")
	require.NoError(t, err)

	wantKey := "ledger/2025/01/02/0000-id/Receipt_2025.01.01_Cafe_Noir.png"
	require.Equal(t, wantKey, file.ID)
	require.Equal(t, "https://signed.example/"+wantKey+"?X-Amz-Signature=abc", file.Link)

	require.Equal(t, "receipts", aws.ToString(putter.input.Bucket))
	require.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	require.Equal(t, int64(len(pngHeader)), aws.ToInt64(putter.input.ContentLength))
	require.Equal(t, pngHeader, putter.body)

	require.Equal(t, wantKey, presigner.key)
	require.Equal(t, DefaultLinkExpiry, presigner.expires)
}

func TestUpload_PublicBaseURL(t *testing.T) {
	presigner := &fakePresigner{err: errors.New("must not presign")}
	s := testStore(&fakePutter{}, presigner, Config{Bucket: "receipts", PublicBaseURL: "https://cdn.example/receipts/"})

	file, err := s.Upload(context.Background(), []byte("plain text"), "")
	require.NoError(t, err)
	require.Equal(t, "2025/01/02/0000-id/receipt", file.ID)
	require.Equal(t, "https://cdn.example/receipts/2025/01/02/0000-id/receipt", file.Link)
}

func TestUpload_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("nil store", func(t *testing.T) {
		var s *S3Store
		_, err := s.Upload(ctx, pngHeader, "x")
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("empty data", func(t *testing.T) {
		s := testStore(&fakePutter{}, &fakePresigner{}, Config{Bucket: "b"})
		_, err := s.Upload(ctx, nil, "x")
		require.Error(t, err)
	})

	t.Run("put fails", func(t *testing.T) {
		boom := errors.New("connection refused")
		s := testStore(&fakePutter{err: boom}, &fakePresigner{}, Config{Bucket: "b"})
		_, err := s.Upload(ctx, pngHeader, "x")
		require.ErrorIs(t, err, boom)
	})

	t.Run("presign fails", func(t *testing.T) {
		boom := errors.New("no credentials")
		s := testStore(&fakePutter{}, &fakePresigner{err: boom}, Config{Bucket: "b"})
		_, err := s.Upload(ctx, pngHeader, "x")
		require.ErrorIs(t, err, boom)
	})
}

func TestNewStore_ClampsExpiry(t *testing.T) {
	require.Equal(t, DefaultLinkExpiry, newStore(nil, nil, Config{LinkExpiry: 30 * 24 * time.Hour}).expiry)
	require.Equal(t, time.Hour, newStore(nil, nil, Config{LinkExpiry: time.Hour}).expiry)
	require.Equal(t, DefaultLinkExpiry, newStore(nil, nil, Config{}).expiry)
}

func TestNew(t *testing.T) {
	t.Run("no bucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("applies region and credentials", func(t *testing.T) {
		orig := loadDefaultAWSConfig
		t.Cleanup(func() { loadDefaultAWSConfig = orig })

		var lo config.LoadOptions
		loadDefaultAWSConfig = func(_ context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
			for _, fn := range optFns {
				require.NoError(t, fn(&lo))
			}
			return aws.Config{Region: lo.Region}, nil
		}

		s, err := New(context.Background(), Config{
			Bucket:          "receipts",
			Region:          "us-east-1",
			Endpoint:        "http://127.0.0.1:9000",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		})
		require.NoError(t, err)
		require.NotNil(t, s)
		require.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		require.NotNil(t, lo.HTTPClient)
	})

	t.Run("config error", func(t *testing.T) {
		orig := loadDefaultAWSConfig
		t.Cleanup(func() { loadDefaultAWSConfig = orig })

		boom := errors.New("bad profile")
		loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, boom
		}

		_, err := New(context.Background(), Config{Bucket: "receipts"})
		require.ErrorIs(t, err, boom)
	})
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"Receipt_2025.01.01_Cafe": "Receipt_2025.01.01_Cafe",
		"a/b\\c":                  "abc",
		"Café Noir":               "Caf_Noir",
		"日本":                      "receipt",
		"":                        "receipt",
	}
	for in, want := range tests {
		require.Equal(t, want, safeName(in), in)
	}
}
