// ABOUTME: HTTP API handlers exposing the command surface as JSON
// ABOUTME: Maps command error kinds onto HTTP status codes

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/statekeeper/internal/commands"
	"github.com/2389/statekeeper/internal/prefs"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SettingsResponse is the JSON response for GET /api/settings.
type SettingsResponse struct {
	Settings *prefs.AccessibilitySettings `json:"settings"`
}

// HistoryResponse is the JSON response for GET /api/history.
type HistoryResponse struct {
	Commands []prefs.VoiceCommand `json:"commands"`
}

// CommandResponse is the JSON response for POST /api/history.
type CommandResponse struct {
	Command prefs.VoiceCommand `json:"command"`
}

// ScanResponse is the JSON response for GET and POST on scans.
type ScanResponse struct {
	Scan *prefs.CachedScan `json:"scan"`
}

// handleSettings handles GET and PUT /api/settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.commands.GetSettings(r.Context())
		if err != nil {
			s.sendCommandError(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, SettingsResponse{Settings: settings})
	case http.MethodPut:
		var settings prefs.AccessibilitySettings
		if !s.decodeBody(w, r, "settings", &settings) {
			return
		}
		if err := s.commands.SaveSettings(r.Context(), settings); err != nil {
			s.sendCommandError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleHistory handles GET, POST and DELETE /api/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, err := parseLimit(r)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "Invalid limit: "+err.Error())
			return
		}
		history, err := s.commands.GetHistory(r.Context(), limit)
		if err != nil {
			s.sendCommandError(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, HistoryResponse{Commands: history})
	case http.MethodPost:
		var cmd prefs.VoiceCommand
		if !s.decodeBody(w, r, "command", &cmd) {
			return
		}
		saved, err := s.commands.SaveCommand(r.Context(), cmd)
		if err != nil {
			s.sendCommandError(w, err)
			return
		}
		s.sendJSON(w, http.StatusCreated, CommandResponse{Command: saved})
	case http.MethodDelete:
		if err := s.commands.ClearHistory(r.Context()); err != nil {
			s.sendCommandError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleScans handles POST and DELETE /api/scans.
func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var scan prefs.CachedScan
		if !s.decodeBody(w, r, "scan", &scan) {
			return
		}
		saved, err := s.commands.SaveScan(r.Context(), scan)
		if err != nil {
			s.sendCommandError(w, err)
			return
		}
		s.sendJSON(w, http.StatusCreated, ScanResponse{Scan: &saved})
	case http.MethodDelete:
		if err := s.commands.ClearScans(r.Context()); err != nil {
			s.sendCommandError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleScan handles GET /api/scans/{id}.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scans/")
	scan, err := s.commands.GetScan(r.Context(), id)
	if err != nil {
		s.sendCommandError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ScanResponse{Scan: scan})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.commands.Status(r.Context())
	if err != nil {
		s.sendCommandError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, stats)
}

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	return &n, nil
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
// Unknown fields are ignored so newer clients can talk to older servers.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, what string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "Invalid "+what+": "+err.Error())
		return false
	}
	return true
}

// statusForKind maps a command failure onto an HTTP status code.
func statusForKind(kind commands.Kind) int {
	switch kind {
	case commands.KindInvalid:
		return http.StatusBadRequest
	case commands.KindStoreAccess:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendCommandError writes a command failure as a JSON error response.
func (s *Server) sendCommandError(w http.ResponseWriter, err error) {
	var cerr *commands.Error
	if !errors.As(err, &cerr) {
		s.logger.Error("unexpected handler error", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSONError(w, statusForKind(cerr.Kind), cerr.Message)
}

// sendJSON writes v as a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError sends a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
