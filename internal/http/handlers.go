package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cambi/internal/core"
	applog "cambi/internal/log"
	"cambi/internal/nav"
	"cambi/internal/sheets"
)

type (
	pageData struct {
		Title             string
		Nav               []nav.Link
		PrimaryCurrency   string
		SecondaryCurrency string
		Years             []core.YearChoices
		Filter            string
		Summary           summaryView
	}

	summaryView struct {
		Filter            string
		PrimaryCurrency   string
		SecondaryCurrency string
		TotalPrimary      string
		TotalSecondary    string
		AverageRate       string
		Rows              []entryRow
	}

	entryRow struct {
		ID          string
		Date        string
		Description string
		Primary     string
		Secondary   string
	}
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks that templates are loaded and the storage slot is
// reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.ledger.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
	} else {
		checks["storage"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"checks":  checks,
		"entries": s.ledger.Len(),
	})
}

// handlePlaceholder renders a page that only carries the sidebar.
func (s *Server) handlePlaceholder(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, "placeholder.html", pageData{
			Title: title,
			Nav:   nav.Links(r.URL.Path),
		})
	}
}

func (s *Server) handleSummaryPage(w http.ResponseWriter, r *http.Request) {
	filter := s.filterFrom(r)
	s.render(w, r, "summary.html", pageData{
		Title:             "Summary",
		Nav:               nav.Links(r.URL.Path),
		PrimaryCurrency:   s.primaryCurrency,
		SecondaryCurrency: s.secondaryCurrency,
		Years:             s.years,
		Filter:            filter,
		Summary:           s.summaryView(s.summary(filter)),
	})
}

// handleSummaryPartial renders totals and table for ?filter=.
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	filter := s.filterFrom(r)
	s.render(w, r, "summary_partial.html", s.summaryView(s.summary(filter)))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Invalid entry request body", applog.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	e, err := s.ledger.Add(ctx, parser.EntryForm())
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			for _, field := range ve.FieldNames() {
				s.metrics.ValidationFailures.WithLabelValues(field).Inc()
			}
			logger.WarnContext(ctx, "Entry rejected",
				applog.FieldOperation, applog.OpValidate,
				"fields", strings.Join(ve.FieldNames(), ","))
			ValidationErrorResponse(ve).Write(w)
			return
		}
		logger.ErrorContext(ctx, "Failed to save entry",
			applog.FieldOperation, applog.OpCreate, applog.FieldError, err)
		InternalServerError("Could not save the entry. Please try again.").
			TriggerErrorNotification("Could not save the entry").
			Write(w)
		return
	}

	s.metrics.EntriesCreated.Inc()
	s.afterMutation()

	NewHTMXResponse().
		TriggerEntryCreated(e.ID).
		TriggerFormReset().
		TriggerSummaryRefresh().
		TriggerSuccessNotification("Entry added").
		BodyHTML(`<div class="success">Entry added</div>`).
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Invalid delete request body", applog.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return
	}
	entryID := parser.Get("id")
	if entryID == "" {
		entryID = strings.TrimSpace(r.URL.Query().Get("id"))
	}
	if entryID == "" {
		BadRequestError("Missing entry id").Write(w)
		return
	}

	deleted, err := s.ledger.Delete(ctx, entryID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete entry",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldEntryID, entryID,
			applog.FieldError, err)
		InternalServerError("Could not delete the entry. Please try again.").
			TriggerErrorNotification("Could not delete the entry").
			Write(w)
		return
	}

	resp := NewHTMXResponse().TriggerSummaryRefresh()
	if deleted {
		s.metrics.EntriesDeleted.Inc()
		s.afterMutation()
		resp.TriggerEntryDeleted(entryID)
	}
	resp.Write(w)
}

// handleExportCSV streams the filtered rows as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter := s.filterFrom(r)
	sum := s.summary(filter)

	name := "all"
	if ym, err := core.ParseYearMonth(filter); err == nil {
		name = ym.String()
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cambi-%s.csv"`, name))

	if err := sheets.WriteCSV(w, sum.Entries, s.primaryCurrency, s.secondaryCurrency); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
			applog.FieldOperation, applog.OpExport, applog.FieldError, err)
	}
}

// filterFrom reads ?filter=. A malformed token is kept: it matches nothing.
func (s *Server) filterFrom(r *http.Request) string {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Malformed filter",
			applog.FieldFilter, filter, applog.FieldError, err)
	}
	return filter
}

// summary returns the cached summary for filter, computing it on a miss.
func (s *Server) summary(filter string) core.Summary {
	key := fmt.Sprintf("%d|%s", s.generation.Load(), filter)
	if sum, ok := s.summaryCache.Get(key); ok {
		return sum
	}
	sum := s.ledger.Summary(filter)
	s.summaryCache.Set(key, sum)
	return sum
}

func (s *Server) afterMutation() {
	s.generation.Add(1)
	s.summaryCache.Purge()
	s.metrics.LedgerSize.Set(float64(s.ledger.Len()))
}

func (s *Server) summaryView(sum core.Summary) summaryView {
	rows := make([]entryRow, 0, len(sum.Entries))
	for _, e := range sum.Entries {
		rows = append(rows, rowFor(e))
	}
	return summaryView{
		Filter:            sum.Filter,
		PrimaryCurrency:   s.primaryCurrency,
		SecondaryCurrency: s.secondaryCurrency,
		TotalPrimary:      sum.Totals.Primary.StringFixed(2),
		TotalSecondary:    sum.Totals.Secondary.StringFixed(2),
		AverageRate:       sum.AverageRate,
		Rows:              rows,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
