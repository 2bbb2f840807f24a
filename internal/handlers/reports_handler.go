package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/ternarybob/visionone/internal/services/report"
)

// ReportStore is the read side of the reports directory
type ReportStore interface {
	List() ([]models.StoredReport, error)
	Latest() (*models.StoredReport, error)
	Load(name string) (*models.StoredReport, error)
}

// PDFExporter renders a report as a PDF document
type PDFExporter interface {
	PDF(r *models.StoredReport) ([]byte, error)
}

// ReportsHandler serves session reports as JSON and PDF
type ReportsHandler struct {
	store    ReportStore
	exporter PDFExporter
	logger   arbor.ILogger
}

func NewReportsHandler(store ReportStore, exporter PDFExporter, logger arbor.ILogger) *ReportsHandler {
	return &ReportsHandler{
		store:    store,
		exporter: exporter,
		logger:   logger,
	}
}

// ListHandler returns every report, newest first
func (h *ReportsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reports, err := h.store.List()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list reports")
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, reports)
}

// LatestHandler returns the newest report
func (h *ReportsHandler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	latest, err := h.store.Latest()
	if err != nil {
		if errors.Is(err, report.ErrNoReports) {
			WriteDetail(w, http.StatusNotFound, "No reports found")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read latest report")
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, latest)
}

// PDFHandler renders /api/reports/{file}/pdf as an attachment
func (h *ReportsHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	name := r.PathValue("file")
	stored, err := h.store.Load(name)
	switch {
	case errors.Is(err, report.ErrInvalidName):
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, report.ErrNotFound):
		WriteDetail(w, http.StatusNotFound, "Report not found")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("file", name).Msg("Failed to load report")
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := h.exporter.PDF(stored)
	if err != nil {
		h.logger.Error().Err(err).Str("file", name).Msg("Failed to render report PDF")
		WriteDetail(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", strings.TrimSuffix(name, ".json")+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write PDF response")
	}
}
