package utils

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	StorageProviderLocal = "local"
	StorageProviderGCS   = "gcs"
	StorageProviderS3    = "s3"
)

// ArtifactStore holds generated floor-plan images and exported documents.
// Put must never expose a partially written object under key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns ErrArtifactNotFound when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderLocal
	}
	return provider
}

// NewArtifactStore builds the store selected by STORAGE_PROVIDER.
func NewArtifactStore(ctx context.Context) (ArtifactStore, error) {
	switch provider := GetStorageProvider(); provider {
	case StorageProviderLocal:
		root := strings.TrimSpace(os.Getenv("ARTIFACT_ROOT"))
		if root == "" {
			root = "artifacts"
		}
		return NewLocalStore(root)
	case StorageProviderGCS:
		return NewGCSStore(ctx, os.Getenv("GCS_BUCKET"))
	case StorageProviderS3:
		return NewS3Store(ctx, S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          os.Getenv("S3_REGION"),
			Bucket:          os.Getenv("S3_BUCKET"),
			AccessKeyId:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		})
	default:
		return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", provider)
	}
}

// artifact keys are always relative, slash separated and without dot segments
func cleanArtifactKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return key, nil
}

func PlanArtifactPrefix(planId string) string {
	return "house-plans/" + planId + "/"
}

func FloorImageKey(planId string, floorIndex int) string {
	return fmt.Sprintf("%sfloor-%d.png", PlanArtifactPrefix(planId), floorIndex)
}

func PlanPdfKey(planId string) string {
	return PlanArtifactPrefix(planId) + "plan.pdf"
}

func PlanBoqKey(planId string) string {
	return PlanArtifactPrefix(planId) + "boq.xlsx"
}
