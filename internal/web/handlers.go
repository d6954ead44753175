package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/cjeanneret/PolaGo/internal/hw/camera"
	"github.com/cjeanneret/PolaGo/internal/logic/capture"
	"github.com/cjeanneret/PolaGo/internal/logic/filter"
	"github.com/cjeanneret/PolaGo/internal/logic/render"
	"github.com/cjeanneret/PolaGo/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 10

// Booth is the session the handlers drive. *capture.Session implements it.
type Booth interface {
	State() capture.State
	SetCameraActive(ctx context.Context, active bool) error
	SetFilter(name string) filter.Filter
	Start(ctx context.Context) error
	Cancel() bool
	ImagePNG(id uuid.UUID) ([]byte, error)
	ExportReady() bool
	Export(w io.Writer) error
	Preview() (image.Image, error)
}

var _ Booth = (*capture.Session)(nil)

// FilterInfo describes one entry of the filter selection control.
type FilterInfo struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Expression string `json:"expression"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth

	// ExportFilename is the download name of the strip.
	ExportFilename string
	// PreviewInterval is the time between MJPEG preview frames.
	PreviewInterval time.Duration
	// Heartbeat is the SSE keep-alive period.
	Heartbeat time.Duration

	// sequenceCtx outlives the POST /capture request.
	sequenceCtx context.Context
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If booth is nil, every session route returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, booth Booth, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:     broadcaster,
		Booth:           booth,
		ExportFilename:  render.Filename,
		PreviewInterval: 100 * time.Millisecond,
		Heartbeat:       30 * time.Second,
		sequenceCtx:     context.Background(),
		staticFS:        staticFS,
	}
}

// Router returns an http.Handler with all routes registered.
func (h *Handlers) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.ServeIndex).Methods(http.MethodGet)
	r.HandleFunc("/filters", h.HandleFilters).Methods(http.MethodGet)
	r.HandleFunc("/state", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/camera", h.HandleCamera).Methods(http.MethodPost)
	r.HandleFunc("/filter", h.HandleFilter).Methods(http.MethodPost)
	r.HandleFunc("/capture", h.HandleCapture).Methods(http.MethodPost)
	r.HandleFunc("/capture/cancel", h.HandleCancel).Methods(http.MethodPost)
	r.HandleFunc("/images/{id}", h.HandleImage).Methods(http.MethodGet)
	r.HandleFunc("/export", h.HandleExport).Methods(http.MethodGet)
	r.HandleFunc("/preview.mjpg", h.HandlePreview).Methods(http.MethodGet)
	r.HandleFunc("/status/stream", h.HandleStatusStream).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// booth returns the session or answers 503.
func (h *Handlers) booth(w http.ResponseWriter) (Booth, bool) {
	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return nil, false
	}
	return h.Booth, true
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleFilters lists the filters in selection order.
func (h *Handlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	all := filter.All()
	out := make([]FilterInfo, len(all))
	for i, f := range all {
		out[i] = FilterInfo{Name: f.String(), Label: f.Label(), Expression: f.Expression()}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleState returns the session state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	b, ok := h.booth(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.State())
}

// HandleCamera handles POST /camera {"active":true|false}.
func (h *Handlers) HandleCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Active == nil {
		http.Error(w, `invalid JSON, want {"active":bool}`, http.StatusBadRequest)
		return
	}
	b, ok := h.booth(w)
	if !ok {
		return
	}

	err := b.SetCameraActive(r.Context(), *req.Active)
	var aerr *capture.AcquisitionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, b.State())
	case errors.As(err, &aerr):
		status := http.StatusServiceUnavailable
		if errors.Is(err, camera.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		http.Error(w, aerr.Message(), status)
	case errors.Is(err, capture.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleFilter handles POST /filter {"filter":"noir"}. Unknown names
// select none.
func (h *Handlers) HandleFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	b, ok := h.booth(w)
	if !ok {
		return
	}
	f := b.SetFilter(req.Filter)
	writeJSON(w, http.StatusOK, FilterInfo{Name: f.String(), Label: f.Label(), Expression: f.Expression()})
}

// HandleCapture handles POST /capture to start a sequence.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	b, ok := h.booth(w)
	if !ok {
		return
	}
	if !b.State().CameraActive {
		http.Error(w, "camera is not active", http.StatusServiceUnavailable)
		return
	}

	switch err := b.Start(h.sequenceCtx); {
	case err == nil:
	case errors.Is(err, capture.ErrSequenceRunning):
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.Broadcaster.BroadcastMsg("Sequence started")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleCancel handles POST /capture/cancel.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	b, ok := h.booth(w)
	if !ok {
		return
	}
	if !b.Cancel() {
		http.Error(w, "no capture in progress", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}

// HandleImage serves one captured photo as PNG.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}
	b, ok := h.booth(w)
	if !ok {
		return
	}
	data, err := b.ImagePNG(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// HandleExport downloads the polaroid strip. It answers 409 until the
// three photos exist.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	b, ok := h.booth(w)
	if !ok {
		return
	}
	if !b.ExportReady() {
		http.Error(w, "export needs three photos", http.StatusConflict)
		return
	}

	var buf bytes.Buffer
	if err := b.Export(&buf); err != nil {
		if errors.Is(err, capture.ErrNotReady) {
			http.Error(w, "export needs three photos", http.StatusConflict)
			return
		}
		h.Broadcaster.Broadcast("error", "Export failed: "+err.Error())
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.ExportFilename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// HandlePreview streams the filtered, mirrored live frames as MJPEG
// (multipart/x-mixed-replace). Frames are skipped while the camera is off.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	b, ok := h.booth(w)
	if !ok {
		return
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.PreviewInterval)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		img, err := b.Preview()
		if err != nil {
			continue
		}
		buf.Reset()
		if err := render.EncodePreview(&buf, img); err != nil {
			debug.Error(fmt.Errorf("preview frame: %w", err))
			continue
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(buf.Len())},
		})
		if err != nil {
			return
		}
		if _, err := part.Write(buf.Bytes()); err != nil {
			return
		}
		flusher.Flush()
	}
}

// HandleStatusStream handles GET /status/stream for SSE. The current state
// is sent first, then state changes and log lines as they happen.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	if h.Booth != nil {
		if data, err := json.Marshal(h.Booth.State()); err == nil {
			w.Write(Event{Name: EventState, Data: string(data)}.Bytes())
		}
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			w.Write(evt.Bytes())
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
