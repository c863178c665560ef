package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
	"elevate_backend/internal/util"
	"elevate_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageService stores proctoring snapshots. Backend is chosen by
// config: minio, local disk, or disabled.
type StorageService struct {
	cfg         *config.StorageConfig
	minioClient *minio.Client
}

func NewStorageService(cfg *config.StorageConfig) (*StorageService, error) {
	s := &StorageService{cfg: cfg}

	if cfg.Type == util.StorageMinio {
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		s.minioClient = client

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		exists, err := client.BucketExists(ctx, cfg.MinioBucket)
		if err != nil {
			return nil, fmt.Errorf("minio bucket check: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("minio make bucket: %w", err)
			}
		}
		logger.Log.Info("snapshot storage ready", zap.String("backend", "minio"), zap.String("bucket", cfg.MinioBucket))
	}

	if cfg.Type == util.StorageLocal {
		if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
			return nil, fmt.Errorf("snapshot dir: %w", err)
		}
		logger.Log.Info("snapshot storage ready", zap.String("backend", "local"), zap.String("path", cfg.LocalPath))
	}

	return s, nil
}

// UploadSnapshot stores the image and returns its reference URL.
func (s *StorageService) UploadSnapshot(ctx context.Context, attemptID, kind, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", model.Validationf("snapshot is empty")
	}
	if len(data) > util.MaxSnapshotBytes {
		return "", model.LimitExceededf("snapshot exceeds %d bytes", util.MaxSnapshotBytes)
	}
	allowed := false
	for _, ct := range util.AllowedSnapshotContentTypes {
		if ct == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", model.Validationf("unsupported snapshot content type %s", contentType)
	}

	name := fmt.Sprintf("%s/%s_%d%s", attemptID, kind, time.Now().UnixNano(), extensionFor(contentType))

	switch s.cfg.Type {
	case util.StorageMinio:
		_, err := s.minioClient.PutObject(ctx, s.cfg.MinioBucket, name,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return "", model.ServiceUnavailable("snapshot upload failed", err)
		}
		return fmt.Sprintf("minio://%s/%s", s.cfg.MinioBucket, name), nil

	case util.StorageLocal:
		path := filepath.Join(s.cfg.LocalPath, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", err
		}
		return "file://" + path, nil

	default:
		return "", model.InvalidStatef("snapshot storage is disabled")
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ""
}
