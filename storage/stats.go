package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats totals the objects seen by a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

func (s *BucketStats) add(object minio.ObjectInfo) {
	s.TotalObjects++
	s.TotalSize += object.Size
	if object.LastModified.After(s.LastModified) {
		s.LastModified = object.LastModified
	}
}

// Summary renders the totals on one line, e.g. "3 objects, 1.5 MB".
func (s *BucketStats) Summary() string {
	var b strings.Builder
	noun := "objects"
	if s.TotalObjects == 1 {
		noun = "object"
	}
	fmt.Fprintf(&b, "%d %s, %s", s.TotalObjects, noun, FormatSize(s.TotalSize))
	if !s.LastModified.IsZero() {
		fmt.Fprintf(&b, ", last modified %s", s.LastModified.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// ObjectInfo is the subset of object metadata the journal shows and serves.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

func toObjectInfo(object minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          object.Key,
		Size:         object.Size,
		LastModified: object.LastModified,
		ContentType:  object.ContentType,
		ETag:         object.ETag,
	}
}

// FormatSize renders a byte count with a binary unit suffix.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
