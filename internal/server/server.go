package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shirou/gopsutil/mem"

	"github.com/kiesman99/tilemerge/internal/api"
	"github.com/kiesman99/tilemerge/internal/collector"
	"github.com/kiesman99/tilemerge/internal/stitcher"
	"github.com/kiesman99/tilemerge/pkg/tile"
)

// DefaultMaxUpload bounds the in-memory part of a multipart upload
const DefaultMaxUpload = 256 << 20

// Server implements the ServerInterface from the API package
type Server struct {
	startTime time.Time
	version   string
	stitcher  *stitcher.Stitcher
	maxUpload int64
}

// NewServer creates a new server instance
func NewServer(version string) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
		stitcher:  stitcher.New(),
		maxUpload: DefaultMaxUpload,
	}
}

// WithMaxUpload sets the in-memory limit for multipart uploads; larger parts
// spill to temporary files.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		available := humanize.Bytes(vmem.Available)
		response.MemoryAvailable = &available
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// MergeTiles implements the merge endpoint. Every file part of the
// multipart body is one tile; the merged frame is returned as OpenEXR.
func (s *Server) MergeTiles(w http.ResponseWriter, r *http.Request, params api.MergeTilesParams) {
	requestID := requestIDFrom(r)

	opts, err := s.convertToStitcherOptions(&params)
	if err != nil {
		s.writeValidationErrorResponse(w, err.Error(), &requestID)
		return
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Request body must be multipart/form-data with tile files", &requestID, nil)
		return
	}

	uploads, err := readUploads(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			err.Error(), &requestID, nil)
		return
	}
	if len(uploads) == 0 {
		s.writeValidationErrorResponse(w, "at least one tile file is required", &requestID)
		return
	}

	result, err := s.stitcher.Stitch(r.Context(), opts, uploads)
	if err != nil {
		s.handleMergeError(w, err, &requestID)
		return
	}

	w.Header().Set("Content-Type", "image/x-exr")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Image-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(result.Height))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.ImageData)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.ImageData); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// ParamError reports query parameters that could not be bound
func (s *Server) ParamError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFrom(r)
	s.writeValidationErrorResponse(w, err.Error(), &requestID)
}

// convertToStitcherOptions validates the query parameters and converts them
func (s *Server) convertToStitcherOptions(params *api.MergeTilesParams) (*stitcher.Options, error) {
	strategy, err := collector.ParseStrategy(params.Strategy)
	if err != nil {
		return nil, err
	}
	opts := &stitcher.Options{
		Strategy:    strategy,
		AlphaMarker: tile.DefaultAlphaMarker,
	}

	if params.Order != nil {
		if opts.Order, err = collector.ParseOrder(*params.Order); err != nil {
			return nil, err
		}
	}

	if (params.Width == nil) != (params.Height == nil) {
		return nil, fmt.Errorf("width and height must be given together")
	}
	if params.Width != nil {
		if *params.Width <= 0 || *params.Height <= 0 {
			return nil, fmt.Errorf("width and height must be positive")
		}
		opts.Width, opts.Height = *params.Width, *params.Height
	}

	if params.Select != nil {
		switch *params.Select {
		case api.Primary:
		case api.Alpha:
			opts.Alpha = true
		default:
			return nil, fmt.Errorf("invalid select: %s", *params.Select)
		}
	}

	if params.AlphaMarker != nil && *params.AlphaMarker != "" {
		opts.AlphaMarker = *params.AlphaMarker
	}
	return opts, nil
}

// readUploads reads every file part of the parsed multipart form
func readUploads(r *http.Request) ([]stitcher.Upload, error) {
	var uploads []stitcher.Upload
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("can't open upload %s: %v", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("can't read upload %s: %v", fh.Filename, err)
			}
			uploads = append(uploads, stitcher.Upload{Name: fh.Filename, Data: data})
		}
	}
	return uploads, nil
}

// handleMergeError maps merge failures to responses
func (s *Server) handleMergeError(w http.ResponseWriter, err error, requestID *string) {
	var tileErr *stitcher.TileError
	if errors.As(err, &tileErr) {
		failedTiles := make([]api.FailedTile, len(tileErr.FailedTiles))
		for i, ft := range tileErr.FailedTiles {
			failedTiles[i] = api.FailedTile{Name: ft.Name, Error: ft.Error}
		}

		response := api.TileErrorResponse{
			Error:           "TILE_DECODE_ERROR",
			Message:         tileErr.Message,
			FailedTiles:     failedTiles,
			SuccessfulTiles: tileErr.SuccessfulTiles,
			TotalTiles:      tileErr.TotalTiles,
			RequestId:       requestID,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(response)
		return
	}

	switch {
	case errors.Is(err, collector.ErrNoTiles), errors.Is(err, stitcher.ErrNoAlpha):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "NO_TILES",
			err.Error(), requestID, nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "MERGE_TIMEOUT",
			"Merging the tiles timed out", requestID, nil)
	case errors.Is(err, collector.ErrDimensionMismatch),
		errors.Is(err, collector.ErrLayoutMismatch),
		errors.Is(err, collector.ErrNoColor),
		errors.Is(err, collector.ErrBandOverflow),
		errors.Is(err, collector.ErrTooLarge),
		errors.Is(err, tile.ErrUnsupported),
		errors.Is(err, tile.ErrCannotExport):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "MERGE_ERROR",
			err.Error(), requestID, nil)
	default:
		log.Printf("Merge failed: %v", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID, nil)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []api.ValidationError{
			{
				Field:   "request",
				Message: message,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(response)
}

// requestIDFrom returns the id set by the RequestID middleware or a new one
func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
