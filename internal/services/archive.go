package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/amasendi/ridepool-backend/internal/models"
)

var (
	archiveUploader *s3manager.Uploader
	useS3           bool
	archiveDir      string
)

// InitArchive initializes either S3 or local archive storage based on
// configuration. Deleted series snapshots go here so bookings can be
// reconciled and audited after the rows are gone.
func InitArchive() error {
	awsRegion := os.Getenv("AWS_REGION")
	awsAccessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	awsSecretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if awsRegion != "" && awsAccessKey != "" && awsSecretKey != "" {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(awsRegion),
			Credentials: credentials.NewStaticCredentials(
				awsAccessKey,
				awsSecretKey,
				"", // Token (optional)
			),
		})
		if err != nil {
			return fmt.Errorf("failed to create AWS session: %v", err)
		}

		archiveUploader = s3manager.NewUploader(sess)
		useS3 = true

		fmt.Println("✅ AWS S3 archive storage initialized successfully")
		return nil
	}

	// Fallback to local storage
	useS3 = false
	archiveDir = os.Getenv("ARCHIVE_DIR")
	if archiveDir == "" {
		archiveDir = "/app/archives"
	}

	if err := os.MkdirAll(filepath.Join(archiveDir, "occurrences"), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %v", err)
	}

	fmt.Println("⚠️  AWS S3 not configured. Using local archive storage (not recommended for production)")
	return nil
}

type occurrenceArchive struct {
	PosterID    uint                `json:"posterId"`
	Scope       string              `json:"scope"`
	DeletedAt   time.Time           `json:"deletedAt"`
	Occurrences []models.Occurrence `json:"occurrences"`
}

// ArchiveDeletedOccurrences snapshots bulk-deleted rows as JSON. Returns the
// archive location (S3 URL or local path).
func ArchiveDeletedOccurrences(posterID uint, scope string, occurrences []models.Occurrence) (string, error) {
	if len(occurrences) == 0 {
		return "", nil
	}

	snapshot := occurrenceArchive{
		PosterID:    posterID,
		Scope:       scope,
		DeletedAt:   time.Now().UTC(),
		Occurrences: occurrences,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %v", err)
	}

	key := fmt.Sprintf("occurrences/%d.json", time.Now().UnixNano())

	if useS3 {
		return archiveToS3(key, data)
	}
	return archiveLocally(key, data)
}

func archiveToS3(key string, data []byte) (string, error) {
	bucketName := os.Getenv("AWS_S3_BUCKET")
	if bucketName == "" {
		return "", fmt.Errorf("S3 bucket name not configured")
	}

	fullKey := "archives/" + key
	_, err := archiveUploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to S3: %v", err)
	}

	awsRegion := os.Getenv("AWS_REGION")
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucketName, awsRegion, fullKey), nil
}

func archiveLocally(key string, data []byte) (string, error) {
	path := filepath.Join(archiveDir, filepath.FromSlash(key))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive: %v", err)
	}
	return path, nil
}

// IsUsingS3 returns true if S3 archive storage is being used
func IsUsingS3() bool {
	return useS3
}
