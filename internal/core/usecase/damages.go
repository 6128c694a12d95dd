package usecase

import "github.com/kirillkom/claims-intake/internal/core/domain"

// AggregateDamages derives special, general and total damages from the form values.
// Absent or unparseable amounts count as zero.
func AggregateDamages(values domain.FieldValues) domain.DamageTotals {
	special := sumAmounts(values, domain.SpecialDamageFields) - amount(values, domain.FieldSpecialReduction)
	if special < 0 {
		special = 0
	}
	general := sumAmounts(values, domain.GeneralDamageFields)

	return domain.DamageTotals{
		SpecialDamages: special,
		GeneralDamages: general,
		Total:          special + general,
	}
}

func sumAmounts(values domain.FieldValues, names []string) float64 {
	total := 0.0
	for _, name := range names {
		total += amount(values, name)
	}
	return total
}

func amount(values domain.FieldValues, name string) float64 {
	n, ok, err := values.Number(name)
	if !ok || err != nil {
		return 0
	}
	return n
}
