package domain

import (
	"math"
	"time"
)

const PredictionSourceML = "ml_service"

type DamageTotals struct {
	SpecialDamages float64 `json:"special_damages"`
	GeneralDamages float64 `json:"general_damages"`
	Total          float64 `json:"total"`
}

type PredictionResult struct {
	SettlementAmount float64   `json:"settlement_amount"`
	ConfidenceScore  float64   `json:"confidence_score"`
	Source           string    `json:"source"`
	Revision         int64     `json:"revision"`
	PredictedAt      time.Time `json:"predicted_at"`
}

// Usable reports whether the result may back a submission.
func (p *PredictionResult) Usable() bool {
	return p != nil && p.SettlementAmount > 0 && !math.IsInf(p.SettlementAmount, 0) && !math.IsNaN(p.SettlementAmount)
}

type PredictionStatus string

const (
	PredictionNone        PredictionStatus = "none"
	PredictionPredicting  PredictionStatus = "predicting"
	PredictionReady       PredictionStatus = "ready"
	PredictionUnavailable PredictionStatus = "unavailable"
)

type NoticeKind string

const (
	NoticePredictionRetrying  NoticeKind = "prediction_retrying"
	NoticePredictionSucceeded NoticeKind = "prediction_succeeded"
	NoticePredictionFailed    NoticeKind = "prediction_failed"
	NoticeClaimSubmitted      NoticeKind = "claim_submitted"
	NoticeClaimFailed         NoticeKind = "claim_failed"
	NoticeValidationFailed    NoticeKind = "validation_failed"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	ID        string      `json:"id"`
	DraftID   string      `json:"draft_id"`
	Kind      NoticeKind  `json:"kind"`
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Field     string      `json:"field,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SubmissionRecord is the confirmation of a claim the backend accepted.
type SubmissionRecord struct {
	Reference string `json:"reference"`
	// ClaimID is the backend identifier; empty when the response shape was not recognised.
	ClaimID          string    `json:"claim_id,omitempty"`
	Recognized       bool      `json:"recognized"`
	DraftID          string    `json:"draft_id"`
	Title            string    `json:"title"`
	SettlementAmount float64   `json:"settlement_amount"`
	ConfidenceScore  float64   `json:"confidence_score"`
	Source           string    `json:"source"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// MaxNotices bounds the notice history kept on a draft.
const MaxNotices = 50

type ClaimDraft struct {
	ID     string      `json:"id"`
	Fields FieldValues `json:"fields"`
	Step   Step        `json:"step"`
	// Revision increases whenever a predictive field changes.
	Revision            int64               `json:"revision"`
	Prediction          *PredictionResult   `json:"prediction,omitempty"`
	PredictionStatus    PredictionStatus    `json:"prediction_status"`
	PredictionErrorKind PredictionErrorKind `json:"prediction_error_kind,omitempty"`
	PredictionMessage   string              `json:"prediction_message,omitempty"`
	Notices             []Notice            `json:"notices"`
	Confirmation        *SubmissionRecord   `json:"confirmation,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func NewClaimDraft(id string, now time.Time) *ClaimDraft {
	return &ClaimDraft{
		ID:               id,
		Fields:           FieldValues{},
		Step:             StepIncident,
		PredictionStatus: PredictionNone,
		Notices:          []Notice{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (d *ClaimDraft) AddNotice(n Notice) {
	d.Notices = append(d.Notices, n)
	if over := len(d.Notices) - MaxNotices; over > 0 {
		d.Notices = append([]Notice(nil), d.Notices[over:]...)
	}
}

// InvalidatePrediction drops any prediction tied to the current inputs.
func (d *ClaimDraft) InvalidatePrediction() {
	d.Prediction = nil
	d.PredictionErrorKind = ""
	d.PredictionMessage = ""
	if d.PredictionStatus != PredictionPredicting {
		d.PredictionStatus = PredictionNone
	}
}

// Reset clears the form after an accepted submission.
func (d *ClaimDraft) Reset() {
	d.Fields = FieldValues{}
	d.Step = StepIncident
	d.Revision++
	d.Prediction = nil
	d.PredictionStatus = PredictionNone
	d.PredictionErrorKind = ""
	d.PredictionMessage = ""
}

type GateState struct {
	Prediction *PredictionResult
	Predicting bool
}

func (d *ClaimDraft) GateState() GateState {
	return GateState{
		Prediction: d.Prediction,
		Predicting: d.PredictionStatus == PredictionPredicting,
	}
}
