package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"parcel-sorter/internal/sorting"
)

// maxIngestBody bounds device-facing request bodies.
const maxIngestBody = 1 << 20

type createParcelRequest struct {
	ParcelID   string `json:"parcel_id"`
	CartNumber string `json:"cart_number"`
	Barcode    string `json:"barcode,omitempty"`
}

// CreateParcel announces a parcel to the orchestrator. A duplicate parcel id
// is a conflict; the original context is untouched.
func (s *Server) CreateParcel(w http.ResponseWriter, r *http.Request) {
	var req createParcelRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.ParcelID == "" {
		writeError(w, http.StatusBadRequest, "parcel_id is required")
		return
	}

	if !s.orchestrator.CreateParcel(req.ParcelID, req.CartNumber, req.Barcode) {
		writeError(w, http.StatusConflict, fmt.Sprintf("parcel %s already exists", req.ParcelID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"parcel_id": req.ParcelID})
}

// ReceiveMeasurement attaches a scanner payload to a parcel and queues it for
// rule evaluation.
func (s *Server) ReceiveMeasurement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var m sorting.Measurement
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody)).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if !s.orchestrator.ReceiveMeasurement(id, &m) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parcel %s not found", id))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"parcel_id": id})
}

// ReceiveOCR attaches label recognition data to a parcel.
func (s *Server) ReceiveOCR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var data sorting.OCRData
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody)).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if !s.orchestrator.ReceiveOCR(id, &data) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parcel %s not found", id))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"parcel_id": id})
}

// AttachAPIResponse attaches a third-party payload pushed by an upstream
// system. The body is stored verbatim and matched as text.
func (s *Server) AttachAPIResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	if !s.orchestrator.AttachAPIResponse(id, string(body)) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parcel %s not found", id))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"parcel_id": id})
}

// Health reports storage reachability and the work queue depth.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
