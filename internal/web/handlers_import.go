package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/orderimport/internal/core"
	"github.com/JonMunkholm/orderimport/internal/logging"
	"github.com/JonMunkholm/orderimport/internal/web/middleware"
)

// multipartMemory is how much of the form is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

var noFile = core.ValidationError{Row: 0, Column: core.ErrColumnFile, Message: "No file uploaded"}

// handleImport runs an uploaded file through the import pipeline.
//
//	200 with the result on success
//	400 with the result when the file was rejected
//	413 when the body exceeds UPLOAD_MAX_FILE_SIZE
//	429 when every import slot is busy
//	500 with the result when storage failed mid-import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, err, http.StatusRequestEntityTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, core.FailedResult(noFile))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil || header.Size == 0 {
		if file != nil {
			file.Close()
		}
		writeJSON(w, http.StatusBadRequest, core.FailedResult(noFile))
		return
	}
	defer file.Close()

	ctx := withRequestMetadata(r)
	tenant := middleware.TenantFromContext(ctx)

	result, err := s.service.Import(ctx, core.ImportRequest{
		File:     file,
		FileName: header.Filename,
		TenantID: tenant,
	})
	switch {
	case core.IsBusy(err):
		w.Header().Set("Retry-After", "5")
		respondError(w, r, err, statusFor(err))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, err, statusFor(err))
		return
	case err != nil:
		// The result already carries the generic storage failure entry.
		logging.FromContext(ctx).Error("import failed",
			"tenant", tenant,
			"file", header.Filename,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}

	logging.WithFields(ctx, "tenant", tenant, "file", header.Filename).Info("import finished",
		"success", result.Success,
		"orders", result.OrdersCount,
		"errors", len(result.Errors),
	)
	writeJSON(w, status, result)
}

// handleHistory lists the tenant's import sessions, newest first.
// An optional ?limit= caps the number returned.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.History(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, limit(sessions, parseIntParam(r, "limit", 0)))
}

// handleRollback flips the rolled-back flag on a session.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, r, fmt.Errorf("import session %q: %w", raw, core.ErrNotFound), http.StatusNotFound)
		return
	}

	ctx := withRequestMetadata(r)
	session, err := s.service.ToggleRollback(ctx, middleware.TenantFromContext(ctx), id)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleAuditLog lists the tenant's audit records, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	logs, err := s.service.AuditLog(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, limit(logs, parseIntParam(r, "limit", 0)))
}

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// limit returns the first n items, or all of them when n is zero.
func limit[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}
