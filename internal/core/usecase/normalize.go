package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

// BuildPredictionInput normalizes form values for the prediction model.
// Booleans are always present; numbers absent from the form stay nil.
func BuildPredictionInput(values domain.FieldValues) domain.PredictionInput {
	input := make(domain.PredictionInput)
	for _, f := range domain.ClaimFields() {
		if !f.Predictive() {
			continue
		}
		switch f.Kind {
		case domain.FieldBoolean:
			input[f.Name] = values.Bool(f.Name)
		case domain.FieldNumeric, domain.FieldMonetary:
			if n, ok, err := values.Number(f.Name); ok && err == nil {
				input[f.Name] = n
			} else {
				input[f.Name] = nil
			}
		default:
			if values.Has(f.Name) {
				input[f.Name] = values.String(f.Name)
			} else {
				input[f.Name] = nil
			}
		}
	}
	return input
}

// BuildClaimData renders every enumerated field for the backend, defaulting numbers to 0.
func BuildClaimData(values domain.FieldValues, incidentDate string) map[string]any {
	data := make(map[string]any)
	for _, f := range domain.ClaimFields() {
		if !f.Predictive() {
			continue
		}
		switch f.Kind {
		case domain.FieldBoolean:
			data[f.Name] = values.Bool(f.Name)
		case domain.FieldNumeric, domain.FieldMonetary:
			data[f.Name] = amount(values, f.Name)
		default:
			data[f.Name] = values.String(f.Name)
		}
	}
	data[domain.FieldAccidentDate] = incidentDate
	return data
}

// BuildClaimPayload assembles the backend payload. The submitted amount is the
// predicted settlement; the user's own damage totals are informational.
func BuildClaimPayload(
	values domain.FieldValues,
	incidentDate string,
	prediction domain.PredictionResult,
	totals domain.DamageTotals,
) domain.ClaimPayload {
	title := values.String(domain.FieldTitle)
	if title == "" {
		title = placeholderTitle(values, incidentDate)
	}
	description := values.String(domain.FieldDescription)
	if description == "" {
		description = placeholderDescription(values, incidentDate)
	}

	source := prediction.Source
	if source == "" {
		source = domain.PredictionSourceML
	}

	return domain.ClaimPayload{
		Title:        title,
		Description:  description,
		Amount:       prediction.SettlementAmount,
		IncidentDate: incidentDate,
		ClaimData:    BuildClaimData(values, incidentDate),
		Damages:      totals,
		MLPrediction: domain.MLPrediction{
			SettlementAmount: prediction.SettlementAmount,
			ConfidenceScore:  prediction.ConfidenceScore,
			Source:           source,
		},
	}
}

func placeholderTitle(values domain.FieldValues, incidentDate string) string {
	return fmt.Sprintf("%s claim - %s", accidentLabel(values), incidentDate)
}

func placeholderDescription(values domain.FieldValues, incidentDate string) string {
	return fmt.Sprintf("Claim for a %s incident on %s.", strings.ToLower(accidentLabel(values)), incidentDate)
}

func accidentLabel(values domain.FieldValues) string {
	if label := values.String(domain.FieldAccidentType); label != "" {
		return label
	}
	return "Road traffic"
}

// resolveIncidentDate picks the incident date from the submitted step, then the
// stored draft, then today when that fallback is enabled.
func resolveIncidentDate(stepValues, stored domain.FieldValues, today func() (time.Time, bool)) (string, bool) {
	for _, values := range []domain.FieldValues{stepValues, stored} {
		if parsed, ok, err := values.Date(domain.FieldAccidentDate); ok && err == nil {
			return parsed.Format(domain.DateLayout), true
		}
	}
	if today != nil {
		if now, ok := today(); ok {
			return now.Format(domain.DateLayout), true
		}
	}
	return "", false
}
