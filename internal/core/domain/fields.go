package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type FieldKind string

const (
	FieldCategorical FieldKind = "categorical"
	FieldBoolean     FieldKind = "boolean"
	FieldNumeric     FieldKind = "numeric"
	FieldMonetary    FieldKind = "monetary"
	FieldDate        FieldKind = "date"
	// FieldText values are descriptive only and never reach the prediction model.
	FieldText FieldKind = "text"
)

const DateLayout = "2006-01-02"

type Step int

const (
	StepIncident Step = iota
	StepVehicle
	StepInjury
	StepSpecialDamages
	StepGeneralDamages
	StepReview
)

var stepNames = [...]string{"incident", "vehicle", "injury", "special_damages", "general_damages", "review"}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func (s Step) Valid() bool {
	return s >= StepIncident && s <= StepReview
}

// ParseStep accepts a step name or its index.
func ParseStep(raw string) (Step, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for i, name := range stepNames {
		if name == raw {
			return Step(i), true
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !Step(n).Valid() {
		return 0, false
	}
	return Step(n), true
}

const (
	FieldAccidentType        = "AccidentType"
	FieldAccidentDate        = "AccidentDate"
	FieldAccidentDescription = "AccidentDescription"
	FieldWeatherConditions   = "WeatherConditions"
	FieldPoliceReportFiled   = "PoliceReportFiled"
	FieldWitnessPresent      = "WitnessPresent"

	FieldVehicleType        = "VehicleType"
	FieldVehicleAge         = "VehicleAge"
	FieldDriverAge          = "DriverAge"
	FieldNumberOfPassengers = "NumberOfPassengers"

	FieldDominantInjury           = "DominantInjury"
	FieldInjuryDescription        = "InjuryDescription"
	FieldWhiplash                 = "Whiplash"
	FieldMinorPsychologicalInjury = "MinorPsychologicalInjury"
	FieldExceptionalCircumstances = "ExceptionalCircumstances"
	FieldInjuryPrognosis          = "InjuryPrognosis"

	FieldSpecialHealthExpenses  = "SpecialHealthExpenses"
	FieldSpecialEarningsLoss    = "SpecialEarningsLoss"
	FieldSpecialUsageLoss       = "SpecialUsageLoss"
	FieldSpecialMedications     = "SpecialMedications"
	FieldSpecialAssetDamage     = "SpecialAssetDamage"
	FieldSpecialRehabilitation  = "SpecialRehabilitation"
	FieldSpecialFixes           = "SpecialFixes"
	FieldSpecialLoanerVehicle   = "SpecialLoanerVehicle"
	FieldSpecialTripCosts       = "SpecialTripCosts"
	FieldSpecialJourneyExpenses = "SpecialJourneyExpenses"
	FieldSpecialTherapy         = "SpecialTherapy"
	FieldSpecialReduction       = "SpecialReduction"

	FieldGeneralFixed  = "GeneralFixed"
	FieldGeneralRest   = "GeneralRest"
	FieldGeneralUplift = "GeneralUplift"

	FieldTitle       = "Title"
	FieldDescription = "Description"
)

type FieldSpec struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Step     Step      `json:"step"`
	Required bool      `json:"required"`
}

// Predictive reports whether the field is part of the prediction input.
func (f FieldSpec) Predictive() bool {
	return f.Kind != FieldText
}

var claimFields = []FieldSpec{
	{Name: FieldAccidentType, Kind: FieldCategorical, Step: StepIncident, Required: true},
	{Name: FieldAccidentDate, Kind: FieldDate, Step: StepIncident},
	{Name: FieldAccidentDescription, Kind: FieldCategorical, Step: StepIncident},
	{Name: FieldWeatherConditions, Kind: FieldCategorical, Step: StepIncident},
	{Name: FieldPoliceReportFiled, Kind: FieldBoolean, Step: StepIncident},
	{Name: FieldWitnessPresent, Kind: FieldBoolean, Step: StepIncident},

	{Name: FieldVehicleType, Kind: FieldCategorical, Step: StepVehicle, Required: true},
	{Name: FieldVehicleAge, Kind: FieldNumeric, Step: StepVehicle},
	{Name: FieldDriverAge, Kind: FieldNumeric, Step: StepVehicle, Required: true},
	{Name: FieldNumberOfPassengers, Kind: FieldNumeric, Step: StepVehicle},

	{Name: FieldDominantInjury, Kind: FieldCategorical, Step: StepInjury, Required: true},
	{Name: FieldInjuryDescription, Kind: FieldCategorical, Step: StepInjury},
	{Name: FieldWhiplash, Kind: FieldBoolean, Step: StepInjury},
	{Name: FieldMinorPsychologicalInjury, Kind: FieldBoolean, Step: StepInjury},
	{Name: FieldExceptionalCircumstances, Kind: FieldBoolean, Step: StepInjury},
	{Name: FieldInjuryPrognosis, Kind: FieldNumeric, Step: StepInjury},

	{Name: FieldSpecialHealthExpenses, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialEarningsLoss, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialUsageLoss, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialMedications, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialAssetDamage, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialRehabilitation, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialFixes, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialLoanerVehicle, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialTripCosts, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialJourneyExpenses, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialTherapy, Kind: FieldMonetary, Step: StepSpecialDamages},
	{Name: FieldSpecialReduction, Kind: FieldMonetary, Step: StepSpecialDamages},

	{Name: FieldGeneralFixed, Kind: FieldMonetary, Step: StepGeneralDamages},
	{Name: FieldGeneralRest, Kind: FieldMonetary, Step: StepGeneralDamages},
	{Name: FieldGeneralUplift, Kind: FieldMonetary, Step: StepGeneralDamages},

	{Name: FieldTitle, Kind: FieldText, Step: StepReview},
	{Name: FieldDescription, Kind: FieldText, Step: StepReview},
}

var fieldIndex = func() map[string]FieldSpec {
	out := make(map[string]FieldSpec, len(claimFields))
	for _, f := range claimFields {
		out[f.Name] = f
	}
	return out
}()

// SpecialDamageFields are summed into special damages before the reduction is applied.
var SpecialDamageFields = []string{
	FieldSpecialHealthExpenses,
	FieldSpecialEarningsLoss,
	FieldSpecialUsageLoss,
	FieldSpecialMedications,
	FieldSpecialAssetDamage,
	FieldSpecialRehabilitation,
	FieldSpecialFixes,
	FieldSpecialLoanerVehicle,
	FieldSpecialTripCosts,
	FieldSpecialJourneyExpenses,
	FieldSpecialTherapy,
}

var GeneralDamageFields = []string{
	FieldGeneralFixed,
	FieldGeneralRest,
	FieldGeneralUplift,
}

// ClaimFields returns the enumerated claim fields in form order.
func ClaimFields() []FieldSpec {
	out := make([]FieldSpec, len(claimFields))
	copy(out, claimFields)
	return out
}

func LookupField(name string) (FieldSpec, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// FieldValues holds raw form values as decoded from JSON.
type FieldValues map[string]any

func (v FieldValues) Clone() FieldValues {
	out := make(FieldValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Has reports whether the field carries a non-empty value.
func (v FieldValues) Has(name string) bool {
	raw, ok := v[name]
	if !ok || raw == nil {
		return false
	}
	if s, isString := raw.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (v FieldValues) String(name string) string {
	raw, ok := v[name]
	if !ok || raw == nil {
		return ""
	}
	switch val := raw.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Number parses a numeric field. ok is false when the field is absent.
func (v FieldValues) Number(name string) (value float64, ok bool, err error) {
	return ParseNumber(v[name])
}

// Bool coerces a field to a boolean; absent and unrecognised values are false.
func (v FieldValues) Bool(name string) bool {
	return ParseBool(v[name])
}

// Date parses a date field. ok is false when the field is absent.
func (v FieldValues) Date(name string) (time.Time, bool, error) {
	if !v.Has(name) {
		return time.Time{}, false, nil
	}
	parsed, err := ParseDate(v.String(name))
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}

func ParseNumber(raw any) (float64, bool, error) {
	var n float64
	switch val := raw.(type) {
	case nil:
		return 0, false, nil
	case float64:
		n = val
	case float32:
		n = float64(val)
	case int:
		n = float64(val)
	case int64:
		n = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("parse number %q: %w", val, err)
		}
		n = parsed
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false, fmt.Errorf("parse number %q: %w", trimmed, err)
		}
		n = parsed
	default:
		return 0, false, fmt.Errorf("unsupported numeric value %T", raw)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false, fmt.Errorf("number is not finite")
	}
	return n, true, nil
}

func ParseBool(raw any) bool {
	switch val := raw.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "y", "1", "on":
			return true
		}
	}
	return false
}

func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(DateLayout, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("date %q is not in %s format", raw, DateLayout)
}

// CheckKnownFields rejects field names outside the claim schema.
func CheckKnownFields(values FieldValues) error {
	problems := make(map[string]string)
	for name := range values {
		if _, ok := fieldIndex[name]; !ok {
			problems[name] = "unknown field"
		}
	}
	if len(problems) > 0 {
		return NewValidationError(problems)
	}
	return nil
}

// ValidateFields checks values for the given steps, or every step when none are given.
// It returns nil when the values are acceptable.
func ValidateFields(values FieldValues, steps ...Step) error {
	include := func(Step) bool { return true }
	if len(steps) > 0 {
		wanted := make(map[Step]bool, len(steps))
		for _, s := range steps {
			wanted[s] = true
		}
		include = func(s Step) bool { return wanted[s] }
	}

	problems := make(map[string]string)
	for _, f := range claimFields {
		if !include(f.Step) {
			continue
		}
		if msg := validateField(f, values); msg != "" {
			problems[f.Name] = msg
		}
	}
	if len(problems) > 0 {
		return NewValidationError(problems)
	}
	return nil
}

func validateField(f FieldSpec, values FieldValues) string {
	if !values.Has(f.Name) {
		if f.Required {
			return "is required"
		}
		return ""
	}

	switch f.Kind {
	case FieldNumeric, FieldMonetary:
		n, _, err := values.Number(f.Name)
		if err != nil {
			return "must be a number"
		}
		if n < 0 {
			return "must not be negative"
		}
	case FieldDate:
		if _, _, err := values.Date(f.Name); err != nil {
			return "must be a date in YYYY-MM-DD format"
		}
	case FieldBoolean:
		switch values[f.Name].(type) {
		case bool, string, float64:
		default:
			return "must be true or false"
		}
	}
	return ""
}

// ValidateValues checks the type of every present value without enforcing required fields.
func ValidateValues(values FieldValues) error {
	if err := CheckKnownFields(values); err != nil {
		return err
	}
	problems := make(map[string]string)
	for name := range values {
		f := fieldIndex[name]
		f.Required = false
		if msg := validateField(f, values); msg != "" {
			problems[name] = msg
		}
	}
	if len(problems) > 0 {
		return NewValidationError(problems)
	}
	return nil
}
