package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"parcel-sorter/internal/sorting"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListRules returns every configured rule in evaluation order.
func (s *Server) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list rules: %v", err))
		return
	}
	if rules == nil {
		rules = []sorting.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// GetRule returns a single rule by id.
func (s *Server) GetRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rule, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get rule: %v", err))
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("rule %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateRule persists a new rule after it passes the static validation gate,
// then invalidates the engine's rule cache so the rule takes effect on the
// next evaluation.
func (s *Server) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule sorting.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if result := sorting.ValidateRule(&rule); !result.Valid {
		writeError(w, http.StatusBadRequest, result.Reason)
		return
	}

	if err := s.store.CreateRule(r.Context(), &rule); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create rule: %v", err))
		return
	}

	s.engine.Invalidate()
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule rewrites an existing rule, re-running the validation gate and
// invalidating the rule cache.
func (s *Server) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var rule sorting.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	rule.ID = id

	if result := sorting.ValidateRule(&rule); !result.Valid {
		writeError(w, http.StatusBadRequest, result.Reason)
		return
	}

	if err := s.store.UpdateRule(r.Context(), &rule); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, fmt.Sprintf("rule %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update rule: %v", err))
		return
	}

	s.engine.Invalidate()
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a rule and invalidates the rule cache.
func (s *Server) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, fmt.Sprintf("rule %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete rule: %v", err))
		return
	}

	s.engine.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
