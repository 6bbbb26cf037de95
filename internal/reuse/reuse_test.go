package reuse_test

import (
	"testing"

	"github.com/arcsim/flock/internal/reuse"
)

func mockingjayConfig() reuse.Config {
	return reuse.Config{
		N: 2048,
		MaxValue: 1023,
		MaxRDThreshold: 22,
		Granularity: 1,
		SingleCore: false,
	}
}

func TestUntrainedCounterPredictsInfiniteMultiCore(t *testing.T) {
	p := reuse.New(mockingjayConfig(), 1)
	sig := p.Signature(0x1000, true, false, 0)
	pred := p.Predict(sig)
	if !pred.Infinite {
		t.Fatalf("expected an untrained multi-core counter to predict infinite reuse distance")
	}
}

func TestUntrainedCounterPredictsZeroSingleCore(t *testing.T) {
	cfg := mockingjayConfig()
	cfg.SingleCore = true
	p := reuse.New(cfg, 1)
	sig := p.Signature(0x1000, true, false, 0)
	pred := p.Predict(sig)
	if pred.Infinite || pred.Value != 0 {
		t.Fatalf("expected an untrained single-core counter to predict 0, got %+v", pred)
	}
}

func TestFirstTrainSeedsCounterWithSampleRD(t *testing.T) {
	p := reuse.New(mockingjayConfig(), 1)
	sig := p.Signature(0x2000, true, false, 0)
	p.TrainHit(sig, 40)
	pred := p.Predict(sig)
	if pred.Infinite || pred.Value != 40 {
		t.Fatalf("expected first training to seed counter at sample_rd, got %+v", pred)
	}
}

func TestTemporalDifferenceStepsTowardObservation(t *testing.T) {
	p := reuse.New(mockingjayConfig(), 1)
	sig := p.Signature(0x2000, true, false, 0)
	p.TrainHit(sig, 100)
	p.TrainHit(sig, 200) // delta=100, step=max(1,100/16)=6 -> 106
	pred := p.Predict(sig)
	if pred.Value != 106 {
		t.Fatalf("expected TD step of 6 toward 200, got %d", pred.Value)
	}
}

func TestTrainScanSaturatesTowardMaxValue(t *testing.T) {
	cfg := mockingjayConfig()
	p := reuse.New(cfg, 1)
	sig := p.Signature(0x3000, false, false, 0)
	p.TrainScan(sig)
	pred := p.Predict(sig)
	if !pred.Infinite {
		t.Fatalf("expected a scan-trained counter to predict infinite reuse distance")
	}
}

// TestBypassScenario exercises a 4-bit ETR (|etr|<=7) scenario: a
// candidate set's max|etr| is 3 and the predictor returns 5 for the new PC.
func TestBypassScenario(t *testing.T) {
	cfg := reuse.Config{N: 2048, MaxValue: 1023, MaxRDThreshold: 22, Granularity: 1, SingleCore: false}
	p := reuse.New(cfg, 1)
	sig := p.Signature(0x4000, false, false, 0)
	p.TrainHit(sig, 5)

	if !p.Bypass(sig, 3) {
		t.Fatalf("expected predicted distance 5 to bypass against max|etr|=3 in set")
	}
}

func TestBypassFalseWhenWithinSetBound(t *testing.T) {
	p := reuse.New(mockingjayConfig(), 1)
	sig := p.Signature(0x5000, false, false, 0)
	p.TrainHit(sig, 2)

	if p.Bypass(sig, 7) {
		t.Fatalf("expected predicted distance 2 not to bypass against max|etr|=7 in set")
	}
}
