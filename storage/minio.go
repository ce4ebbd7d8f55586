package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"geojournal/config"
	"geojournal/core/audio"
	"geojournal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClipPrefix is the object prefix under which recordings are kept.
const ClipPrefix = "clips/"

// ErrClipNotFound is returned by Open for unknown handles.
var ErrClipNotFound = errors.New("clip not found")

// ClipStore keeps finalized recordings in a MinIO bucket. Handles are object
// keys, e.g. "clips/<uuid>.webm".
type ClipStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewClipStore 初始化 MinIO 客户端并确保存储桶存在
func NewClipStore(ctx context.Context, cfg *config.Config) (*ClipStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &ClipStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ClipStore) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		logger.Debug("clip bucket exists", logger.String("bucket", s.bucket))
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	logger.Info("clip bucket created", logger.String("bucket", s.bucket))
	return nil
}

// Bucket is the bucket clips are written to.
func (s *ClipStore) Bucket() string {
	return s.bucket
}

// Put uploads the clip and returns its handle.
func (s *ClipStore) Put(ctx context.Context, clip *audio.Clip) (string, error) {
	name := audio.ObjectName(clip.ID, clip.MIMEType)
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(clip.Data), int64(len(clip.Data)),
		minio.PutObjectOptions{
			ContentType: clip.MIMEType,
			UserMetadata: map[string]string{
				"started-at": clip.StartedAt.UTC().Format(time.RFC3339),
				"duration":   clip.Duration.String(),
			},
		})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	logger.Info("clip stored",
		logger.String("handle", name),
		logger.Int("size", len(clip.Data)),
		logger.Duration("duration", clip.Duration))
	return name, nil
}

// Open streams a stored clip. The caller closes the reader.
func (s *ClipStore) Open(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", handle, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ObjectInfo{}, ErrClipNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", handle, err)
	}
	return obj, toObjectInfo(info), nil
}

// List returns every object under prefix together with totals.
func (s *ClipStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("list objects: %w", object.Err)
		}
		stats.add(object)
		objects = append(objects, toObjectInfo(object))
	}
	return objects, stats, nil
}

// RemovePrefix deletes every object under prefix and reports how many went.
func (s *ClipStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var (
		removed int
		listErr error
	)
	counted := make(chan minio.ObjectInfo)
	go func() {
		defer close(counted)
		for object := range objectsCh {
			if object.Err != nil {
				listErr = object.Err
				continue
			}
			removed++
			counted <- object
		}
	}()

	var removeErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, counted, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && removeErr == nil {
			removeErr = fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	if listErr != nil {
		return 0, fmt.Errorf("list objects: %w", listErr)
	}
	if removeErr != nil {
		return 0, removeErr
	}
	logger.Info("clips purged", logger.String("prefix", prefix), logger.Int("count", removed))
	return removed, nil
}

// PurgeClips removes every recording.
func (s *ClipStore) PurgeClips(ctx context.Context) error {
	_, err := s.RemovePrefix(ctx, ClipPrefix)
	return err
}
