package s3upload

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/charmbracelet/log"
)

// NewUploader is swapped out in tests.
var NewUploader = func() s3manageriface.UploaderAPI {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return s3manager.NewUploader(sess)
}

// Upload copies each file to bucket under prefix, keeping base names, and
// returns the object locations.
func Upload(bucket string, prefix string, files []string) ([]string, error) {
	if bucket == "" {
		return nil, nil
	}
	uploader := NewUploader()
	var locations []string
	for _, file := range files {
		location, err := uploadFile(uploader, bucket, path.Join(prefix, filepath.Base(file)), file)
		if err != nil {
			return locations, err
		}
		log.Info("Published artifact", "file", file, "location", location)
		locations = append(locations, location)
	}
	return locations, nil
}

func uploadFile(uploader s3manageriface.UploaderAPI, bucket, key, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	output, err := uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return output.Location, nil
}
