package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMIMEType matches what browsers' MediaRecorder produces.
const DefaultMIMEType = "audio/webm"

// Clip is a finalized recording.
type Clip struct {
	ID        string
	Handle    string // where the playable resource lives, set by the ClipStore
	MIMEType  string
	Data      []byte
	Size      int
	StartedAt time.Time
	Duration  time.Duration
}

// ClipStore turns finalized audio into a playable resource.
type ClipStore interface {
	Put(ctx context.Context, clip *Clip) (string, error)
}

// ObjectName is the storage key used for a clip ID.
func ObjectName(id, mimeType string) string {
	return fmt.Sprintf("clips/%s%s", id, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/mp4":
		return ".m4a"
	default:
		return ".webm"
	}
}

// MemoryStore keeps clips in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: make(map[string]*Clip)}
}

func (s *MemoryStore) Put(ctx context.Context, clip *Clip) (string, error) {
	handle := ObjectName(clip.ID, clip.MIMEType)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[handle] = clip
	return handle, nil
}

// Get returns the clip stored under handle.
func (s *MemoryStore) Get(handle string) (*Clip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clip, ok := s.clips[handle]
	return clip, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clips)
}
