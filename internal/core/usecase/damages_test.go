package usecase

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/claims-intake/internal/core/domain"
)

func TestAggregateDamagesScenario(t *testing.T) {
	got := AggregateDamages(domain.FieldValues{
		domain.FieldSpecialHealthExpenses: 100.0,
		domain.FieldSpecialFixes:          200.0,
		domain.FieldGeneralFixed:          50.0,
		domain.FieldSpecialReduction:      0.0,
	})
	want := domain.DamageTotals{SpecialDamages: 300, GeneralDamages: 50, Total: 350}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateDamages() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateDamagesFloorsSpecialAtZero(t *testing.T) {
	got := AggregateDamages(domain.FieldValues{
		domain.FieldSpecialTherapy:   40.0,
		domain.FieldSpecialReduction: 500.0,
		domain.FieldGeneralRest:      25.0,
	})
	want := domain.DamageTotals{SpecialDamages: 0, GeneralDamages: 25, Total: 25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateDamages() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateDamagesTreatsMissingAndMalformedAsZero(t *testing.T) {
	got := AggregateDamages(domain.FieldValues{
		domain.FieldSpecialHealthExpenses: "12.5",
		domain.FieldSpecialFixes:          "not a number",
		domain.FieldSpecialMedications:    nil,
		domain.FieldGeneralUplift:         "",
	})
	want := domain.DamageTotals{SpecialDamages: 12.5, GeneralDamages: 0, Total: 12.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateDamages() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(domain.DamageTotals{}, AggregateDamages(nil)); diff != "" {
		t.Fatalf("AggregateDamages(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateDamagesInvariantsHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		values := domain.FieldValues{}
		specialSum := 0.0
		for _, name := range domain.SpecialDamageFields {
			if rng.IntN(3) == 0 {
				continue
			}
			v := math.Round(rng.Float64()*100000) / 100
			values[name] = v
			specialSum += v
		}
		generalSum := 0.0
		for _, name := range domain.GeneralDamageFields {
			v := math.Round(rng.Float64()*50000) / 100
			values[name] = v
			generalSum += v
		}
		reduction := math.Round(rng.Float64()*200000) / 100
		values[domain.FieldSpecialReduction] = reduction

		before := values.Clone()
		first := AggregateDamages(values)
		second := AggregateDamages(values)

		if first.SpecialDamages < 0 || first.GeneralDamages < 0 {
			t.Fatalf("negative damages %+v for %v", first, values)
		}
		if want := math.Max(0, specialSum-reduction); math.Abs(first.SpecialDamages-want) > 1e-6 {
			t.Fatalf("special = %v, want %v", first.SpecialDamages, want)
		}
		if first.Total != first.SpecialDamages+first.GeneralDamages {
			t.Fatalf("total %v != %v + %v", first.Total, first.SpecialDamages, first.GeneralDamages)
		}
		if first != second {
			t.Fatalf("aggregation not idempotent: %+v vs %+v", first, second)
		}
		if diff := cmp.Diff(before, values); diff != "" {
			t.Fatalf("aggregation mutated its input (-before +after):\n%s", diff)
		}
	}
}
