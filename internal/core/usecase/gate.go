package usecase

import "github.com/kirillkom/claims-intake/internal/core/domain"

// CanSubmit reports whether a claim may be posted: a usable prediction is
// present and no prediction attempt is in flight.
func CanSubmit(state domain.GateState) bool {
	if state.Predicting {
		return false
	}
	return state.Prediction.Usable()
}
