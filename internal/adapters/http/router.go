package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/metrics"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
	maxJSONBodyBytes  = 80 << 20
)

// Services groups the inbound ports served over HTTP.
type Services struct {
	Ingestor  ports.DiagramIngestor
	Extractor ports.AssetExtractionService
	Reader    ports.DiagramReader
	Reviewer  ports.AssetReviewer
	Overlays  ports.OverlayService
	Exporter  ports.AssetRegisterExporter
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(cfg config.Config, svc Services, opts ...RouterOption) *Router {
	rt := &Router{cfg: cfg, svc: svc}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/diagrams", rt.uploadDiagram)
	mux.HandleFunc("GET /v1/diagrams", rt.listDiagrams)
	mux.HandleFunc("GET /v1/diagrams/{id}", rt.getDiagram)
	mux.HandleFunc("GET /v1/diagrams/{id}/assets", rt.listAssets)
	mux.HandleFunc("GET /v1/diagrams/{id}/assets.xlsx", rt.exportAssets)
	mux.HandleFunc("GET /v1/diagrams/{id}/overlay", rt.overlayScene)
	mux.HandleFunc("GET /v1/diagrams/{id}/overlay.png", rt.overlayPNG)
	mux.HandleFunc("POST /v1/extract", rt.extract)
	mux.HandleFunc("PATCH /v1/assets/{id}", rt.setAssetVerified)

	var onReject func(string)
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected("api", reason) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(
		handler,
		rt.cfg.APIBackpressureMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMillis)*time.Millisecond,
		onReject,
	)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	DiagramID string          `json:"diagramId"`
	Diagram   *domain.Diagram `json:"diagram"`
}

func (rt *Router) uploadDiagram(w http.ResponseWriter, r *http.Request) {
	if limit := rt.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	autoExtract := false
	if raw := strings.TrimSpace(r.FormValue("auto_extract")); raw != "" {
		autoExtract, err = strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "auto_extract must be a boolean")
			return
		}
	}

	diagram, err := rt.svc.Ingestor.Upload(r.Context(), domain.UploadRequest{
		Filename:    fileHeader.Filename,
		MimeType:    partMimeType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename),
		OwnerRef:    r.FormValue("user_id"),
		Body:        file,
		AutoExtract: autoExtract,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{DiagramID: diagram.ID, Diagram: diagram})
}

// partMimeType falls back to the file extension when the client sent no
// useful part type.
func partMimeType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); guessed != "" {
		return guessed
	}
	return declared
}

type extractRequest struct {
	Base64    string `json:"base64"`
	MimeType  string `json:"mimeType"`
	DiagramID string `json:"diagramId"`
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeBadRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.DiagramID) == "" || strings.TrimSpace(req.Base64) == "" {
		writeBadRequest(w, "diagramId and base64 are required")
		return
	}

	result, err := rt.svc.Extractor.Extract(r.Context(), domain.ExtractRequest{
		DiagramID: req.DiagramID,
		Document:  domain.DocumentPayload{Base64: req.Base64, MimeType: req.MimeType},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listDiagrams(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	diagrams, err := rt.svc.Reader.ListDiagrams(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if diagrams == nil {
		diagrams = []domain.Diagram{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagrams": diagrams})
}

func (rt *Router) getDiagram(w http.ResponseWriter, r *http.Request) {
	diagram, err := rt.svc.Reader.GetDiagram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diagram)
}

func (rt *Router) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := rt.svc.Reader.ListAssets(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (rt *Router) exportAssets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := rt.svc.Exporter.ExportAssets(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-assets.xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

func (rt *Router) setAssetVerified(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	if req.Verified == nil {
		writeBadRequest(w, "verified is required")
		return
	}

	asset, err := rt.svc.Reviewer.SetAssetVerified(r.Context(), r.PathValue("id"), *req.Verified)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (rt *Router) overlayScene(w http.ResponseWriter, r *http.Request) {
	selected, zoom, ok := overlayParams(w, r)
	if !ok {
		return
	}
	scene, err := rt.svc.Overlays.Scene(r.Context(), r.PathValue("id"), selected, zoom)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (rt *Router) overlayPNG(w http.ResponseWriter, r *http.Request) {
	selected, zoom, ok := overlayParams(w, r)
	if !ok {
		return
	}
	data, err := rt.svc.Overlays.RenderPNG(r.Context(), r.PathValue("id"), selected, zoom)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func overlayParams(w http.ResponseWriter, r *http.Request) (string, float64, bool) {
	query := r.URL.Query()
	zoom := 1.0
	if raw := query.Get("zoom"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			writeBadRequest(w, "zoom must be a number")
			return "", 0, false
		}
		zoom = parsed
	}
	return query.Get("selected"), zoom, true
}

// writeJSON encodes before committing the status so an unencodable payload
// becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		slog.Error("response_encode_failed", "status", status, "error", err.Error())
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "encode response: " + err.Error(), Kind: "UnknownError"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
