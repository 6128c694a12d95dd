package domain

// PredictionInput is the normalized model input keyed by field name.
// Absent numeric fields are nil so the model can tell gaps from zeros.
type PredictionInput map[string]any

type MLPrediction struct {
	SettlementAmount float64 `json:"settlement_amount"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Source           string  `json:"source"`
}

// ClaimPayload is the body posted to the claims backend.
type ClaimPayload struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Amount       float64        `json:"amount"`
	IncidentDate string         `json:"incident_date"`
	ClaimData    map[string]any `json:"claim_data"`
	Damages      DamageTotals   `json:"damages"`
	MLPrediction MLPrediction   `json:"ml_prediction"`
}

// SubmissionAck is the decoded backend answer to an accepted claim.
type SubmissionAck struct {
	ClaimID    string
	Recognized bool
}

type DraftView struct {
	*ClaimDraft
	StepName  string       `json:"step_name"`
	Totals    DamageTotals `json:"totals"`
	CanSubmit bool         `json:"can_submit"`
}
