package uploads

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestNewS3Sink_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewS3Sink(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrInvalidS3Config)

	_, err = NewS3Sink(context.Background(), S3Config{Bucket: "archives"})
	assert.ErrorIs(t, err, ErrInvalidS3Config)
}

func TestS3Sink_Deliver(t *testing.T) {
	t.Parallel()

	cfg := S3Config{Bucket: "archives", Region: "us-east-1", KeyPrefix: "study-1"}
	grant := &studyauth.UploadSession{ID: "up-1"}
	archive := []byte("zip bytes")
	contentMD5 := contentMD5Of(archive)

	t.Run("puts the object under the grant key", func(t *testing.T) {
		t.Parallel()

		client := new(mockS3Client)
		client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			return aws.ToString(in.Bucket) == "archives" &&
				aws.ToString(in.Key) == "study-1/up-1/archive.zip" &&
				aws.ToString(in.ContentMD5) == contentMD5 &&
				string(body) == string(archive)
		})).Return(&s3.PutObjectOutput{}, nil)

		sink, err := NewS3Sink(context.Background(), cfg, WithS3Client(client))
		require.NoError(t, err)

		require.NoError(t, sink.Deliver(context.Background(), grant, "archive.zip", contentMD5, archive))
		client.AssertExpectations(t)
	})

	t.Run("classifies service rejections", func(t *testing.T) {
		t.Parallel()

		client := new(mockS3Client)
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"})

		sink, err := NewS3Sink(context.Background(), cfg, WithS3Client(client))
		require.NoError(t, err)

		err = sink.Deliver(context.Background(), grant, "archive.zip", contentMD5, archive)
		assert.ErrorIs(t, err, ErrDeliveryRejected)
		assert.Contains(t, err.Error(), "AccessDenied")
	})

	t.Run("passes through transport failures", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection reset")
		client := new(mockS3Client)
		client.On("PutObject", mock.Anything, mock.Anything).Return(nil, cause)

		sink, err := NewS3Sink(context.Background(), cfg, WithS3Client(client))
		require.NoError(t, err)

		err = sink.Deliver(context.Background(), grant, "archive.zip", contentMD5, archive)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("rejects a grant without an identifier", func(t *testing.T) {
		t.Parallel()

		sink, err := NewS3Sink(context.Background(), cfg, WithS3Client(new(mockS3Client)))
		require.NoError(t, err)

		err = sink.Deliver(context.Background(), &studyauth.UploadSession{}, "archive.zip", contentMD5, archive)
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})
}
