package storage

import (
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.size))
	}
}

func TestBucketStatsAdd(t *testing.T) {
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	var stats BucketStats
	stats.add(minio.ObjectInfo{Key: "clips/a.webm", Size: 10, LastModified: newer})
	stats.add(minio.ObjectInfo{Key: "clips/b.webm", Size: 5, LastModified: older})

	assert.Equal(t, int64(2), stats.TotalObjects)
	assert.Equal(t, int64(15), stats.TotalSize)
	assert.Equal(t, newer, stats.LastModified)
}

func TestBucketStatsSummary(t *testing.T) {
	var stats BucketStats
	assert.Equal(t, "0 objects, 0 B", stats.Summary())

	stats.add(minio.ObjectInfo{Size: 1536, LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	assert.Equal(t, "1 object, 1.5 KB, last modified 2026-03-01T12:00:00Z", stats.Summary())
}
