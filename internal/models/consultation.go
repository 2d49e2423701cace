// internal/models/consultation.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"visa-guru/internal/common/errors"
	"visa-guru/internal/common/validation"
)

type ResidencyStatus string

const (
	ResidencyCitizen           ResidencyStatus = "citizen"
	ResidencyPermanentResident ResidencyStatus = "permanent_resident"
	ResidencyTemporaryWorker   ResidencyStatus = "temporary_worker"
	ResidencyStudent           ResidencyStatus = "student"
	ResidencyOther             ResidencyStatus = "other"
)

type TravelPurpose string

const (
	PurposeTourism     TravelPurpose = "tourism"
	PurposeBusiness    TravelPurpose = "business"
	PurposeWork        TravelPurpose = "work"
	PurposeStudy       TravelPurpose = "study"
	PurposeTransit     TravelPurpose = "transit"
	PurposeFamilyVisit TravelPurpose = "family_visit"
	PurposeOther       TravelPurpose = "other"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for display, high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

type ConsultationRequest struct {
	Nationality        string          `json:"nationality"`
	DualCitizenship    string          `json:"dual_citizenship,omitempty"`
	CurrentCountry     string          `json:"current_country"`
	ResidencyStatus    ResidencyStatus `json:"residency_status"`
	ResidencyDetails   string          `json:"residency_details,omitempty"`
	DestinationCountry string          `json:"destination_country"`
	TravelPurpose      TravelPurpose   `json:"travel_purpose"`
	TravelDates        string          `json:"travel_dates"`
	Duration           string          `json:"duration"`
	PreviousRejections bool            `json:"previous_rejections"`
	AdditionalInfo     string          `json:"additional_info,omitempty"`
	Email              string          `json:"email"`
}

type DocumentItem struct {
	Name        string   `json:"name"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
	Notes       string   `json:"notes,omitempty"`
}

type ConsultationResult struct {
	ConsultationID          string         `json:"consultation_id"`
	RiskAssessment          string         `json:"risk_assessment"`
	ConfidenceScore         int            `json:"confidence_score"`
	DocumentsRequired       []DocumentItem `json:"documents_required"`
	CoverLetter             string         `json:"cover_letter"`
	StrategicNotes          []string       `json:"strategic_notes"`
	Sources                 []string       `json:"sources"`
	EstimatedProcessingTime string         `json:"estimated_processing_time"`
}

type ResearchSummary struct {
	VisaRequired   bool     `json:"visa_required"`
	ProcessingTime string   `json:"processing_time"`
	Validity       string   `json:"validity"`
	EntryType      string   `json:"entry_type"`
	Sources        []string `json:"sources"`
}

type PreviewSummary struct {
	SampleDocuments     []string `json:"sample_documents"`
	EstimatedProcessing string   `json:"estimated_processing"`
	ConfidencePreview   string   `json:"confidence_preview"`
	Note                string   `json:"note"`
}

// ParseConsultationRequest validates a raw JSON body against the request
// schema and decodes it. Every offending field is reported at once.
func ParseConsultationRequest(raw []byte) (*ConsultationRequest, error) {
	var document interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&document); err != nil {
		return nil, errors.NewInvalidJSONError(err)
	}

	result, err := validation.ValidateDocument(validation.ConsultationRequestSchema, document)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewValidationError(result.GetErrorMessages())
	}

	var req ConsultationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.NewInvalidJSONError(err)
	}
	req.normalize()
	return &req, nil
}

func (r *ConsultationRequest) normalize() {
	r.Nationality = strings.TrimSpace(r.Nationality)
	r.DualCitizenship = strings.TrimSpace(r.DualCitizenship)
	r.CurrentCountry = strings.TrimSpace(r.CurrentCountry)
	r.ResidencyDetails = strings.TrimSpace(r.ResidencyDetails)
	r.DestinationCountry = strings.TrimSpace(r.DestinationCountry)
	r.TravelDates = strings.TrimSpace(r.TravelDates)
	r.Duration = strings.TrimSpace(r.Duration)
	r.AdditionalInfo = strings.TrimSpace(r.AdditionalInfo)
	r.Email = strings.TrimSpace(r.Email)
}
