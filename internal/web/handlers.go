package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/ingest"
	"github.com/amtspost/amtspost/internal/normalize"
	"github.com/amtspost/amtspost/internal/urgency"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var tierLabels = map[urgency.Tier]string{
	urgency.TierRed:    "Dringend",
	urgency.TierYellow: "Zeitnah",
	urgency.TierGreen:  "Keine Eile",
}

func tierLabel(t urgency.Tier) string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return string(t)
}

// HTML handlers

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", map[string]any{"Title": "Brief prüfen"})
}

func (s *Server) handleAnalyzeForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderFormError(w, r, "", "Das Formular konnte nicht gelesen werden.")
		return
	}

	text := r.FormValue("text")
	source := "web"
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			s.renderFormError(w, r, text, "Die Datei konnte nicht gelesen werden.")
			return
		}
		doc, err := ingest.Parse(header.Filename, raw)
		if err != nil {
			s.renderFormError(w, r, text, "Die Datei konnte nicht ausgewertet werden: "+err.Error())
			return
		}
		text = doc.Text
		source = "web:" + doc.Name
	}

	report, err := s.analyzer.Analyze(source, text)
	if err != nil {
		s.renderFormError(w, r, text, validationMessage(err))
		return
	}
	saved := r.FormValue("save") == "on" && s.save(report)

	s.render(w, r, "result.html", map[string]any{
		"Title":    "Ergebnis",
		"Report":   report,
		"Marked":   markText(report.Text, report.Highlights.Spans),
		"Saved":    saved,
		"Deadline": report.Fields.DeadlineDays,
	})
}

func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, text, message string) {
	s.renderStatus(w, r, http.StatusUnprocessableEntity, "index.html", map[string]any{
		"Title": "Brief prüfen",
		"Text":  text,
		"Error": message,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Verlauf"}
	if s.store != nil {
		records, err := s.store.Recent(defaultHistoryLimit)
		if err != nil {
			s.log.Error("failed to load history", "error", err)
		}
		stats, err := s.store.Stats()
		if err != nil {
			s.log.Error("failed to load stats", "error", err)
		}
		data["Records"] = records
		data["Stats"] = stats
	}
	s.render(w, r, "history.html", data)
}

// API handlers

type analyzeRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Save   bool   `json:"save,omitempty"`
}

type analyzeResponse struct {
	*analyzer.Report
	Saved bool `json:"saved"`
}

func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	report, err := s.analyzer.Analyze(source, req.Text)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	saved := req.Save && s.save(report)
	writeJSON(w, http.StatusOK, analyzeResponse{Report: report, Saved: saved})
}

type highlightResponse struct {
	Text string `json:"text"`
	urgency.Highlights
}

// handleAPIHighlight positions keywords in the normalized text; offsets refer
// to the returned text.
func (s *Server) handleAPIHighlight(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := normalize.Text(req.Text)
	writeJSON(w, http.StatusOK, highlightResponse{Text: text, Highlights: urgency.Highlight(text)})
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit muss eine positive Zahl sein")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.store.Recent(limit)
	if err != nil {
		s.log.Error("failed to load history", "error", err)
		writeError(w, http.StatusInternalServerError, "Verlauf konnte nicht geladen werden")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAPIHistoryGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	record, err := s.store.Get(chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Analyse nicht gefunden")
		return
	}
	if err != nil {
		s.log.Error("failed to load analysis", "error", err)
		writeError(w, http.StatusInternalServerError, "Analyse konnte nicht geladen werden")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAPIHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Analyse nicht gefunden")
		return
	}
	if err != nil {
		s.log.Error("failed to delete analysis", "error", err)
		writeError(w, http.StatusInternalServerError, "Analyse konnte nicht gelöscht werden")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	stats, err := s.store.Stats()
	if err != nil {
		s.log.Error("failed to load stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Statistik konnte nicht geladen werden")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// helpers

func (s *Server) save(report *analyzer.Report) bool {
	if s.store == nil {
		return false
	}
	if err := s.store.Add(report.Record()); err != nil {
		s.log.Error("failed to save analysis", "id", report.ID, "error", err)
		return false
	}
	return true
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "Verlauf ist deaktiviert")
		return false
	}
	return true
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, analyzer.ErrTooShort):
		return normalize.MessageTooShort
	case errors.Is(err, analyzer.ErrTooLong):
		return normalize.MessageTooLong
	}
	return "Analyse fehlgeschlagen"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Ungültige JSON-Anfrage")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// segment is a run of letter text, optionally covered by a keyword span.
type segment struct {
	Text string
	Span *urgency.HighlightSpan
}

// markText cuts text into plain and highlighted runs. Spans arrive sorted by
// start; a span nested in an earlier one is covered by it and skipped.
func markText(text string, spans []urgency.HighlightSpan) []segment {
	var out []segment
	cursor := 0
	for i := range spans {
		sp := &spans[i]
		if sp.Start < cursor || sp.End > len(text) {
			continue
		}
		if sp.Start > cursor {
			out = append(out, segment{Text: text[cursor:sp.Start]})
		}
		out = append(out, segment{Text: text[sp.Start:sp.End], Span: sp})
		cursor = sp.End
	}
	if cursor < len(text) {
		out = append(out, segment{Text: text[cursor:]})
	}
	return out
}
