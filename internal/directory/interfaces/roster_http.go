package interfaces

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	directory "child-monitoring/internal/directory/domain"
)

// RosterExportHandler serves GET /api/v1/roster/export.
type RosterExportHandler struct {
	children directory.ChildRepository
	mappings directory.MappingRepository
	logger   *log.Logger
}

// NewRosterExportHandler constructs a roster export handler.
func NewRosterExportHandler(children directory.ChildRepository, mappings directory.MappingRepository, logger *log.Logger) (*RosterExportHandler, error) {
	if children == nil {
		return nil, errors.New("roster handler: nil child repository")
	}
	if mappings == nil {
		return nil, errors.New("roster handler: nil mapping repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RosterExportHandler{children: children, mappings: mappings, logger: logger}, nil
}

// ServeHTTP renders the roster as XLSX (default) or PDF.
func (h *RosterExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	children, err := h.children.List(r.Context())
	if err != nil {
		h.logger.Printf("roster: list children: %v", err)
		respondError(w, http.StatusInternalServerError, "roster lookup failed")
		return
	}
	mappings, err := h.mappings.List(r.Context())
	if err != nil {
		h.logger.Printf("roster: list mappings: %v", err)
		respondError(w, http.StatusInternalServerError, "roster lookup failed")
		return
	}

	now := time.Now()
	switch format {
	case "xlsx":
		data, err := BuildRosterXLSX(children, mappings, now)
		if err != nil {
			h.logger.Printf("roster: export xlsx: %v", err)
			respondError(w, http.StatusInternalServerError, "export xlsx error")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="roster.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case "pdf":
		data, err := BuildRosterPDF(children, mappings, now)
		if err != nil {
			h.logger.Printf("roster: export pdf: %v", err)
			respondError(w, http.StatusInternalServerError, "export pdf error")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="roster.pdf"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		respondError(w, http.StatusBadRequest, "format must be xlsx or pdf")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
