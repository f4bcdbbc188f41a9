package s3upload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	keys []string
	err  error
}

func (m *mockUploader) Upload(input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return m.UploadWithContext(aws.BackgroundContext(), input, opts...)
}

func (m *mockUploader) UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.keys = append(m.keys, *input.Key)
	return &s3manager.UploadOutput{Location: "https://" + *input.Bucket + ".s3.amazonaws.com/" + *input.Key}, nil
}

func TestUpload(t *testing.T) {
	original := NewUploader
	defer func() { NewUploader = original }()
	mock := &mockUploader{}
	NewUploader = func() s3manageriface.UploaderAPI { return mock }

	dir := t.TempDir()
	reel := filepath.Join(dir, "reel.mp4")
	critic := filepath.Join(dir, "critic.json")
	require.NoError(t, os.WriteFile(reel, []byte("mp4"), 0644))
	require.NoError(t, os.WriteFile(critic, []byte("{}"), 0644))

	locations, err := Upload("demo-artifacts", "runs/2026-10-16", []string{reel, critic})
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/2026-10-16/reel.mp4", "runs/2026-10-16/critic.json"}, mock.keys)
	assert.Equal(t, "https://demo-artifacts.s3.amazonaws.com/runs/2026-10-16/reel.mp4", locations[0])

	// No bucket means nothing to publish
	mock.keys = nil
	locations, err = Upload("", "x", []string{reel})
	assert.NoError(t, err)
	assert.Nil(t, locations)
	assert.Empty(t, mock.keys)

	_, err = Upload("demo-artifacts", "", []string{filepath.Join(dir, "missing.mp4")})
	assert.Error(t, err)

	mock.err = errors.New("AccessDenied")
	_, err = Upload("demo-artifacts", "", []string{reel})
	assert.ErrorContains(t, err, "AccessDenied")
}
