package storage

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func TestNewService_NotConfigured(t *testing.T) {
	svc, err := NewService(context.Background(), config.StorageConfig{}, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestService_Upload(t *testing.T) {
	putter := &fakePutter{}
	svc := newService(putter, "reports", logger.Discard())

	res, err := svc.Upload(context.Background(), "reports/deletions/1/x.json", []byte(`{"userId":1}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, "abc123", res.ETag)
	assert.Equal(t, "s3://reports/reports/deletions/1/x.json", res.StorageURL)
	assert.Equal(t, "reports", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))
	assert.JSONEq(t, `{"userId":1}`, string(putter.body))
}

func TestService_Upload_Error(t *testing.T) {
	svc := newService(&fakePutter{err: errors.New("NoSuchBucket")}, "reports", logger.Discard())

	_, err := svc.Upload(context.Background(), "k", []byte("x"), "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchBucket")
}
