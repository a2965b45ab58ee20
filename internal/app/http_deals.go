package app

import (
	"net/http"
	"strings"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/export"
)

// routeDeals handles the offer, escrow, and migration-task routes.
func (s *HTTPServer) routeDeals(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) < 2 || parts[0] != "api" {
		return false
	}

	if parts[1] == "lois" {
		return s.routeLOIs(w, r, session, parts)
	}
	if parts[1] == "escrows" {
		return s.routeEscrows(w, r, session, parts)
	}
	if parts[1] == "tasks" {
		return s.routeTasks(w, r, session, parts)
	}
	return false
}

func (s *HTTPServer) routeLOIs(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListLOIs(r.Context(), session)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list offers", nil)
				return true
			}
			writeJSON(w, http.StatusOK, items)
		case http.MethodPost:
			var body CreateLOIInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateLOI(r.Context(), session, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 {
		loiID := parts[2]
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetLOI(r.Context(), session, loiID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPatch:
			var body UpdateLOIInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateLOI(r.Context(), session, loiID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteLOI(r.Context(), session, loiID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 4 {
		loiID := parts[2]
		switch {
		case r.Method == http.MethodPost && parts[3] == "send":
			payload, err := s.service.SendLOI(r.Context(), session, loiID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case r.Method == http.MethodPost && parts[3] == "respond":
			var body RespondLOIInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.RespondLOI(r.Context(), session, loiID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case r.Method == http.MethodGet && parts[3] == "export":
			format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
			if format == "" {
				format = export.FormatPDF
			}
			result, err := s.service.ExportLOI(r.Context(), session, loiID, format)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	return false
}

func (s *HTTPServer) routeEscrows(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListEscrows(r.Context(), session)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list escrows", nil)
				return true
			}
			writeJSON(w, http.StatusOK, items)
		case http.MethodPost:
			var body CreateEscrowInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateEscrow(r.Context(), session, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 3 && r.Method == http.MethodGet {
		payload, err := s.service.GetEscrow(r.Context(), session, parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	if len(parts) == 4 {
		escrowID := parts[2]
		switch {
		case r.Method == http.MethodPost && parts[3] == "fund":
			var body FundEscrowInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.FundEscrow(r.Context(), session, escrowID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case r.Method == http.MethodPost && parts[3] == "release":
			payload, err := s.service.ReleaseEscrow(r.Context(), session, escrowID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case r.Method == http.MethodPost && parts[3] == "checklist":
			payload, err := s.service.CreateChecklist(r.Context(), session, escrowID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusCreated, payload)
		case r.Method == http.MethodGet && parts[3] == "checklist":
			payload, err := s.service.GetChecklist(r.Context(), session, escrowID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	return false
}

func (s *HTTPServer) routeTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 3 {
		taskID := parts[2]
		switch r.Method {
		case http.MethodPatch:
			var body UpdateTaskInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.UpdateTask(r.Context(), session, taskID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteTask(r.Context(), session, taskID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return true
	}

	if len(parts) == 4 && parts[3] == "confirm" && r.Method == http.MethodPost {
		payload, err := s.service.ConfirmTask(r.Context(), session, parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	return false
}
