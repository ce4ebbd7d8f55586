package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"geojournal/core/audio"
	"geojournal/core/coords"
	"geojournal/core/geo"
	"geojournal/core/journal"
	"geojournal/core/timeline"
	"geojournal/logger"
	"geojournal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 30 * time.Second
	maxComposeMessage = 1 << 20
	micFlushWait      = 3 * time.Second
)

// errPeerGone is returned by device calls once the browser disconnects.
var errPeerGone = errors.New("compose connection closed")

// 客户端 -> 服务端
const (
	msgSubmitText    = "submit_text"
	msgStartAudio    = "start_audio"
	msgStop          = "stop"
	msgCancel        = "cancel"
	msgFix           = "fix"
	msgFixError      = "fix_error"
	msgCoordsConfirm = "coords_confirm"
	msgCoordsCancel  = "coords_cancel"
	msgMicReady      = "mic_ready"
	msgMicError      = "mic_error"
	msgMicStopped    = "mic_stopped"
)

// 服务端 -> 客户端
const (
	msgLocate             = "locate"
	msgCoordsPrompt       = "coords_prompt"
	msgCoordsInvalid      = "coords_invalid"
	msgCoordsClose        = "coords_close"
	msgMicRequest         = "mic_request"
	msgMicStop            = "mic_stop"
	msgMicRelease         = "mic_release"
	msgRecordingStarted   = "recording_started"
	msgTick               = "tick"
	msgSaved              = "saved"
	msgAborted            = "aborted"
	msgRecordingCancelled = "recording_cancelled"
	msgError              = "error"
)

// PositionError codes reported by the browser Geolocation API.
const (
	fixUnsupported         = 0
	fixPermissionDenied    = 1
	fixPositionUnavailable = 2
	fixTimeout             = 3
)

type clientMessage struct {
	Type      string   `json:"type"`
	Text      string   `json:"text,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Code      int      `json:"code,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type serverMessage struct {
	Type       string               `json:"type"`
	Kind       string               `json:"kind,omitempty"`
	Message    string               `json:"message,omitempty"`
	DurationMs int64                `json:"durationMs,omitempty"`
	Elapsed    string               `json:"elapsed,omitempty"`
	Entry      *model.EntryResponse `json:"entry,omitempty"`
	HTML       string               `json:"html,omitempty"`
}

type locateMessage struct {
	Type         string `json:"type"`
	HighAccuracy bool   `json:"highAccuracy"`
	TimeoutMs    int64  `json:"timeoutMs"`
	MaximumAgeMs int64  `json:"maximumAgeMs"`
}

type fixResult struct {
	coord coords.Coordinate
	err   error
}

func fixError(code int) error {
	switch code {
	case fixPermissionDenied:
		return geo.ErrPermissionDenied
	case fixPositionUnavailable:
		return geo.ErrPositionUnavailable
	case fixTimeout:
		return geo.ErrTimeout
	default:
		return geo.ErrUnsupported
	}
}

// offer replaces any unread value so the latest browser reply wins.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// composeConn is one browser tab. It serves as the geolocation locator, the
// manual coordinate modal and the microphone for that tab's composer.
type composeConn struct {
	ws         *websocket.Conn
	send       chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	invalidTTL time.Duration

	fixes    chan fixResult
	manual   chan geo.Submission
	micReply chan error
	controls chan clientMessage

	mu  sync.Mutex
	mic *micHandle
}

func newComposeConn(ws *websocket.Conn, invalidTTL time.Duration) *composeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &composeConn{
		ws:         ws,
		send:       make(chan []byte, 64),
		ctx:        ctx,
		cancel:     cancel,
		invalidTTL: invalidTTL,
		fixes:      make(chan fixResult, 1),
		manual:     make(chan geo.Submission, 1),
		micReply:   make(chan error, 1),
		controls:   make(chan clientMessage, 16),
	}
}

func (c *composeConn) emit(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return errPeerGone
	}
}

func (c *composeConn) emitType(typ string) error {
	return c.emit(serverMessage{Type: typ})
}

func (c *composeConn) emitError(err error) {
	_ = c.emit(serverMessage{Type: msgError, Kind: errorKind(err), Message: err.Error()})
}

func (c *composeConn) emitSaved(entry *model.Entry) {
	resp := entry.ToResponse()
	msg := serverMessage{Type: msgSaved, Entry: &resp}
	if html, err := timeline.RenderEntryHTML(entry); err == nil {
		msg.HTML = string(html)
	}
	_ = c.emit(msg)
}

// readPump routes browser messages until the connection drops.
func (c *composeConn) readPump() {
	defer c.cancel()

	c.ws.SetReadLimit(maxComposeMessage)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("compose websocket read error", logger.ErrorField(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if kind == websocket.BinaryMessage {
			c.deliverChunk(data)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid compose message", logger.ErrorField(err))
			continue
		}
		c.route(msg)
	}
}

func (c *composeConn) route(msg clientMessage) {
	switch msg.Type {
	case msgFix:
		if msg.Latitude == nil || msg.Longitude == nil {
			offer(c.fixes, fixResult{err: geo.ErrPositionUnavailable})
			return
		}
		offer(c.fixes, fixResult{coord: coords.Coordinate{Latitude: *msg.Latitude, Longitude: *msg.Longitude}})
	case msgFixError:
		offer(c.fixes, fixResult{err: fixError(msg.Code)})
	case msgCoordsConfirm:
		offer(c.manual, geo.Submission{Action: geo.ActionConfirm, Text: msg.Text})
	case msgCoordsCancel:
		offer(c.manual, geo.Submission{Action: geo.ActionCancel})
	case msgMicReady:
		offer(c.micReply, nil)
	case msgMicError:
		reason := msg.Message
		if reason == "" {
			reason = "microphone unavailable"
		}
		offer(c.micReply, errors.New(reason))
	case msgMicStopped:
		if h := c.currentMic(); h != nil {
			offer(h.stopped, struct{}{})
		}
	case msgSubmitText, msgStartAudio, msgStop, msgCancel:
		select {
		case c.controls <- msg:
		case <-c.ctx.Done():
		}
	default:
		logger.Warn("unknown compose message", logger.String("type", msg.Type))
	}
}

func (c *composeConn) deliverChunk(data []byte) {
	h := c.currentMic()
	if h == nil {
		return
	}
	select {
	case h.chunks <- data:
	case <-h.released:
	case <-c.ctx.Done():
	}
}

func (c *composeConn) currentMic() *micHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mic
}

// writePump 写入消息循环
func (c *composeConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Locate asks the browser for a position fix.
func (c *composeConn) Locate(ctx context.Context, opts geo.QueryOptions) (coords.Coordinate, error) {
	drain(c.fixes)
	if err := c.emit(locateMessage{
		Type:         msgLocate,
		HighAccuracy: opts.HighAccuracy,
		TimeoutMs:    opts.Timeout.Milliseconds(),
		MaximumAgeMs: opts.MaximumAge.Milliseconds(),
	}); err != nil {
		return coords.Coordinate{}, err
	}

	select {
	case res := <-c.fixes:
		return res.coord, res.err
	case <-ctx.Done():
		return coords.Coordinate{}, ctx.Err()
	case <-c.ctx.Done():
		return coords.Coordinate{}, errPeerGone
	}
}

func (c *composeConn) Open(ctx context.Context) error {
	drain(c.manual)
	return c.emitType(msgCoordsPrompt)
}

func (c *composeConn) Next(ctx context.Context) (geo.Submission, error) {
	select {
	case sub := <-c.manual:
		return sub, nil
	case <-ctx.Done():
		return geo.Submission{}, ctx.Err()
	case <-c.ctx.Done():
		return geo.Submission{}, errPeerGone
	}
}

func (c *composeConn) Reject(ctx context.Context, err error) error {
	return c.emit(serverMessage{
		Type:       msgCoordsInvalid,
		Message:    err.Error(),
		DurationMs: c.invalidTTL.Milliseconds(),
	})
}

func (c *composeConn) Close(ctx context.Context) error {
	err := c.emitType(msgCoordsClose)
	if errors.Is(err, errPeerGone) {
		return nil
	}
	return err
}

// Acquire asks the browser for the microphone.
func (c *composeConn) Acquire(ctx context.Context) (audio.Handle, error) {
	drain(c.micReply)
	if err := c.emitType(msgMicRequest); err != nil {
		return nil, err
	}

	select {
	case err := <-c.micReply:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, errPeerGone
	}

	h := &micHandle{
		conn:     c,
		chunks:   make(chan []byte, 64),
		stopped:  make(chan struct{}, 1),
		released: make(chan struct{}),
	}
	c.mu.Lock()
	c.mic = h
	c.mu.Unlock()
	return h, nil
}

// micHandle receives MediaRecorder chunks as binary frames.
type micHandle struct {
	conn     *composeConn
	chunks   chan []byte
	stopped  chan struct{}
	released chan struct{}
	once     sync.Once
}

func (h *micHandle) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-h.chunks:
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.released:
		return nil, io.EOF
	case <-h.conn.ctx.Done():
		return nil, errPeerGone
	}
}

// Flush stops the browser recorder and collects the chunks it emits before
// confirming with mic_stopped.
func (h *micHandle) Flush(ctx context.Context) ([]byte, error) {
	drain(h.stopped)
	if err := h.conn.emitType(msgMicStop); err != nil {
		return nil, err
	}

	timer := time.NewTimer(micFlushWait)
	defer timer.Stop()

	var tail bytes.Buffer
	for {
		select {
		case chunk := <-h.chunks:
			tail.Write(chunk)
		case <-h.stopped:
			for {
				select {
				case chunk := <-h.chunks:
					tail.Write(chunk)
				default:
					return tail.Bytes(), nil
				}
			}
		case <-timer.C:
			logger.Warn("browser recorder did not confirm stop", logger.Duration("waited", micFlushWait))
			return tail.Bytes(), nil
		case <-ctx.Done():
			return tail.Bytes(), ctx.Err()
		case <-h.conn.ctx.Done():
			return tail.Bytes(), errPeerGone
		}
	}
}

func (h *micHandle) Release() error {
	h.once.Do(func() {
		close(h.released)
		h.conn.mu.Lock()
		if h.conn.mic == h {
			h.conn.mic = nil
		}
		h.conn.mu.Unlock()
		_ = h.conn.emitType(msgMicRelease)
	})
	return nil
}

// ComposeSocketHandler runs the compose protocol for one browser tab.
func (h *Handler) ComposeSocketHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("compose websocket upgrade failed", logger.ErrorField(err))
		return
	}

	c := newComposeConn(ws, h.cfg.ManualEntryTTL)
	provider := geo.NewProvider(c, c, geo.WithQueryOptions(geo.QueryOptions{
		HighAccuracy: true,
		Timeout:      h.cfg.GeoTimeout,
		MaximumAge:   h.cfg.GeoMaximumAge,
	}))
	session := audio.NewSession(c,
		audio.WithClipStore(h.store),
		audio.WithMIMEType(h.cfg.ClipMIMEType),
		audio.WithTickInterval(h.cfg.TickInterval))
	composer := journal.NewComposer(provider, session, h.timeline)

	go c.writePump()
	go c.readPump()

	logger.Info("compose connection opened", logger.String("remote", r.RemoteAddr))
	h.serveCompose(c, composer)
	logger.Info("compose connection closed", logger.String("remote", r.RemoteAddr))
}

// serveCompose handles control messages one at a time. Coordinate entry and
// microphone replies are routed by readPump, so a pending submission never
// blocks them.
func (h *Handler) serveCompose(c *composeConn, composer *journal.Composer) {
	var commits sync.WaitGroup
	defer func() {
		composer.CancelAudio()
		commits.Wait()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.controls:
			switch msg.Type {
			case msgSubmitText:
				entry, err := composer.SubmitText(c.ctx, msg.Text)
				switch {
				case errors.Is(err, journal.ErrAborted):
					_ = c.emitType(msgAborted)
				case err != nil:
					c.emitError(err)
				default:
					c.emitSaved(entry)
				}

			case msgStartAudio:
				// refuse before asking for a location nobody will use
				if composer.Recording() {
					c.emitError(audio.ErrAlreadyRecording)
					continue
				}
				draft, err := composer.StartAudio(c.ctx)
				switch {
				case errors.Is(err, journal.ErrAborted):
					_ = c.emitType(msgAborted)
					continue
				case err != nil:
					c.emitError(err)
					continue
				}
				_ = c.emitType(msgRecordingStarted)
				commits.Add(1)
				go func() {
					defer commits.Done()
					h.commitRecording(c, draft)
				}()

			case msgStop:
				if err := composer.StopAudio(c.ctx); err != nil {
					logger.Warn("stop recording failed", logger.ErrorField(err))
				}

			case msgCancel:
				composer.CancelAudio()
			}
		}
	}
}

func (h *Handler) commitRecording(c *composeConn, draft *journal.Draft) {
	for elapsed := range draft.Ticks() {
		_ = c.emit(serverMessage{Type: msgTick, Elapsed: elapsed})
	}

	entry, err := draft.Commit(c.ctx)
	switch {
	case errors.Is(err, journal.ErrAborted):
		_ = c.emitType(msgRecordingCancelled)
	case err != nil:
		c.emitError(err)
	default:
		c.emitSaved(entry)
	}
}
