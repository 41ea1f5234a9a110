package service

import (
	"math"
	"testing"

	"github.com/yuqie6/ecopulse/internal/schema"
)

func TestEstimateSavingsZeroEmissionModes(t *testing.T) {
	p := DefaultSavingsPolicy{}
	// 步行/骑行相对驾车省下全部基准排放
	got := p.EstimateSavings([]string{schema.ModeWalking}, 5)
	if math.Abs(got-1.05) > 1e-9 {
		t.Fatalf("walking 5km savings=%v, want 1.05", got)
	}
	if cyc := p.EstimateSavings([]string{schema.ModeCycling}, 5); cyc != got {
		t.Fatalf("cycling savings=%v, want same as walking %v", cyc, got)
	}
}

func TestEstimateSavingsPicksCleanestMode(t *testing.T) {
	p := DefaultSavingsPolicy{}
	mixed := p.EstimateSavings([]string{schema.ModeCarpooling, schema.ModeCycling}, 10)
	cycling := p.EstimateSavings([]string{schema.ModeCycling}, 10)
	if mixed != cycling {
		t.Fatalf("mixed=%v, want cleanest mode to dominate (%v)", mixed, cycling)
	}
}

func TestEstimateSavingsMonotonicInFactor(t *testing.T) {
	p := DefaultSavingsPolicy{}
	ev := p.EstimateSavings([]string{schema.ModeElectricVehicle}, 10)
	pt := p.EstimateSavings([]string{schema.ModePublicTransport}, 10)
	cp := p.EstimateSavings([]string{schema.ModeCarpooling}, 10)
	if !(ev > pt && pt > cp) {
		t.Fatalf("savings order ev=%v pt=%v carpool=%v, want descending", ev, pt, cp)
	}
	if cp < 0 {
		t.Fatalf("savings must never be negative, got %v", cp)
	}
}

func TestEstimateSavingsDegenerateInputs(t *testing.T) {
	p := DefaultSavingsPolicy{}
	if got := p.EstimateSavings([]string{schema.ModeWalking}, 0); got != 0 {
		t.Fatalf("zero distance savings=%v, want 0", got)
	}
	if got := p.EstimateSavings([]string{schema.ModeWalking}, -3); got != 0 {
		t.Fatalf("negative distance savings=%v, want 0", got)
	}
	if got := p.EstimateSavings(nil, 5); got != 0 {
		t.Fatalf("no modes savings=%v, want 0", got)
	}
	if got := p.EstimateSavings([]string{"jetpack"}, 5); got != 0 {
		t.Fatalf("unknown mode savings=%v, want 0", got)
	}
}
