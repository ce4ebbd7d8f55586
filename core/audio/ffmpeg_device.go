package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"geojournal/logger"
)

const flushTimeout = 5 * time.Second

// FFmpegDevice captures from a system audio input through ffmpeg, encoding to
// WebM/Opus on stdout the way a browser MediaRecorder would.
type FFmpegDevice struct {
	ffmpegPath  string
	inputFormat string // e.g. "alsa", "pulse", "avfoundation"
	input       string // e.g. "default", ":0"
}

// NewFFmpegDevice creates a new FFmpegDevice.
func NewFFmpegDevice(ffmpegPath, inputFormat, input string) *FFmpegDevice {
	return &FFmpegDevice{ffmpegPath: ffmpegPath, inputFormat: inputFormat, input: input}
}

func (d *FFmpegDevice) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", d.inputFormat,
		"-i", d.input,
		"-vn",
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	}
}

// Acquire starts ffmpeg. A missing binary is reported as an error so the
// session turns it into an access error.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Handle, error) {
	path, err := exec.LookPath(d.ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	cmd := exec.Command(path, d.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	h := &ffmpegHandle{
		cmd:      cmd,
		stdin:    stdin,
		chunks:   make(chan []byte, 64),
		quit:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start failed: %w", err)
	}
	logger.Debug("ffmpeg capture started",
		logger.String("format", d.inputFormat),
		logger.String("input", d.input),
		logger.Int("pid", cmd.Process.Pid))

	go h.pump(stdout)
	return h, nil
}

type ffmpegHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr syncBuffer

	chunks   chan []byte
	quit     chan struct{}
	pumpDone chan struct{}

	mu      sync.Mutex
	readErr error

	releaseOnce sync.Once
	releaseErr  error
}

func (h *ffmpegHandle) pump(stdout io.Reader) {
	defer close(h.pumpDone)
	defer close(h.chunks)

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			select {
			case h.chunks <- bytes.Clone(buf[:n]):
			case <-h.quit:
				return
			}
		}
		if err != nil {
			h.mu.Lock()
			h.readErr = err
			h.mu.Unlock()
			return
		}
	}
}

func (h *ffmpegHandle) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if errors.Is(h.readErr, io.EOF) {
		if msg := strings.TrimSpace(h.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg exited: %s", msg)
		}
		return io.EOF
	}
	if h.readErr == nil {
		return io.EOF
	}
	return h.readErr
}

func (h *ffmpegHandle) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-h.chunks:
		if !ok {
			return nil, h.err()
		}
		return chunk, nil
	}
}

// Flush asks ffmpeg to quit so it writes the container trailer, then drains
// what is left on stdout.
func (h *ffmpegHandle) Flush(ctx context.Context) ([]byte, error) {
	if _, err := io.WriteString(h.stdin, "q"); err != nil {
		return nil, fmt.Errorf("ffmpeg quit request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	var tail bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return tail.Bytes(), ctx.Err()
		case chunk, ok := <-h.chunks:
			if !ok {
				return tail.Bytes(), nil
			}
			tail.Write(chunk)
		}
	}
}

func (h *ffmpegHandle) Release() error {
	h.releaseOnce.Do(func() {
		close(h.quit)
		_ = h.stdin.Close()
		if h.cmd.ProcessState == nil {
			_ = h.cmd.Process.Kill()
		}
		<-h.pumpDone
		if err := h.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				h.releaseErr = err
			}
		}
		logger.Debug("ffmpeg capture released")
	})
	return h.releaseErr
}

// syncBuffer lets exec's stderr copier and ReadChunk share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
