// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	apperrors "visa-guru/internal/common/errors"
	"visa-guru/internal/models"
	"visa-guru/internal/store"
)

const previewMessage = "This is a preview. Full consultation available after payment."

type analyzeResponse struct {
	Success        bool                       `json:"success"`
	ConsultationID string                     `json:"consultation_id"`
	Result         *models.ConsultationResult `json:"result"`
}

type previewResponse struct {
	Success        bool                  `json:"success"`
	ConsultationID string                `json:"consultation_id"`
	Preview        models.PreviewSummary `json:"preview"`
	Message        string                `json:"message"`
}

type consultationResponse struct {
	ConsultationID string                     `json:"consultation_id"`
	Status         models.ConsultationStatus  `json:"status"`
	Result         *models.ConsultationResult `json:"result,omitempty"`
	Message        string                     `json:"message,omitempty"`
}

func newConsultationID() string {
	return uuid.New().String()
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Visa Guru API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Readiness))
	ready := true
	for name, check := range s.deps.Readiness {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.readConsultationRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	consultationID := s.newID()
	result, err := s.deps.Consultations.GenerateConsultation(r.Context(), req, consultationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Persisting is best effort; the caller already has the result.
	if s.deps.Store != nil {
		record := &store.Record{
			ConsultationID: consultationID,
			Status:         models.StatusCompleted,
			Request:        req,
			Result:         result,
		}
		if err := s.deps.Store.Put(r.Context(), record); err != nil {
			s.logger.Warn("failed to store consultation", map[string]interface{}{
				"consultationId": consultationID,
				"error":          err.Error(),
			})
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:        true,
		ConsultationID: consultationID,
		Result:         result,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.readConsultationRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	consultationID := s.newID()
	if s.deps.Store != nil {
		record := &store.Record{
			ConsultationID: consultationID,
			Status:         models.StatusPending,
			Request:        req,
		}
		if err := s.deps.Store.Put(r.Context(), record); err != nil {
			s.fail(w, r, apperrors.NewStoreError("write", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Success:        true,
		ConsultationID: consultationID,
		Preview:        s.deps.Consultations.GeneratePreview(req),
		Message:        previewMessage,
	})
}

func (s *Server) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	consultationID := chi.URLParam(r, "consultationID")

	if s.deps.Store == nil {
		s.fail(w, r, apperrors.NewConsultationNotFoundError(consultationID))
		return
	}

	record, err := s.deps.Store.Get(r.Context(), consultationID)
	if errors.Is(err, store.ErrNotFound) {
		s.fail(w, r, apperrors.NewConsultationNotFoundError(consultationID))
		return
	}
	if err != nil {
		s.fail(w, r, apperrors.NewStoreError("read", err))
		return
	}

	resp := consultationResponse{
		ConsultationID: record.ConsultationID,
		Status:         record.Status,
		Result:         record.Result,
	}
	if record.Status != models.StatusCompleted {
		resp.Message = "Consultation will be available once payment is verified"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.deps.Checkout.Execute(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVerify accepts session_id as a JSON body field or a query parameter.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := s.decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}

	resp, err := s.deps.Verify.Execute(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWebhook acknowledges processor events. Fulfilment happens on verify.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		s.fail(w, r, s.bodyError(err))
		return
	}

	if s.deps.Webhooks != nil {
		event, err := s.deps.Webhooks.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			s.fail(w, r, apperrors.NewWebhookRejectedError(err))
			return
		}
		s.logger.Info("webhook received", map[string]interface{}{
			"eventId":   event.ID,
			"eventType": event.Type,
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) readConsultationRequest(w http.ResponseWriter, r *http.Request) (*models.ConsultationRequest, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		return nil, s.bodyError(err)
	}
	return models.ParseConsultationRequest(raw)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBytes)).Decode(dst); err != nil {
		return s.bodyError(err)
	}
	return nil
}

// bodyError reports an oversized body by its limit rather than as bad JSON.
func (s *Server) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewBodyTooLargeError(tooLarge.Limit)
	}
	return apperrors.NewInvalidJSONError(err)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.WriteError(w, middleware.GetReqID(r.Context()), err)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
