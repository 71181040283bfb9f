package detect

import "testing"

func TestHighReworkFiresOnlyAboveThreshold(t *testing.T) {
	if f := HighRework(map[string]int{"a.go": 3}, 3); f != nil {
		t.Fatalf("HighRework(3, k=3) = %+v, want nil (not strictly greater)", f)
	}
	f := HighRework(map[string]int{"a.go": 5}, 3)
	if f == nil {
		t.Fatal("HighRework(5, k=3) = nil, want a finding")
	}
	if f.Type != "high_rework" {
		t.Fatalf("Type = %q, want high_rework", f.Type)
	}
	wantConfidence := 0.5 + 0.1*2
	if f.Confidence != wantConfidence {
		t.Fatalf("Confidence = %v, want %v", f.Confidence, wantConfidence)
	}
}

func TestHighReworkPicksWorstFile(t *testing.T) {
	f := HighRework(map[string]int{"a.go": 4, "b.go": 9}, 3)
	if f == nil {
		t.Fatal("expected a finding")
	}
	if f.Metadata["file"] != "b.go" {
		t.Fatalf("Metadata[file] = %v, want b.go (the worst offender)", f.Metadata["file"])
	}
}

func TestHighReworkConfidenceClampsAtOne(t *testing.T) {
	f := HighRework(map[string]int{"a.go": 100}, 3)
	if f.Confidence != 1.0 {
		t.Fatalf("Confidence = %v, want clamped to 1.0", f.Confidence)
	}
}

func TestHighErrorThreshold(t *testing.T) {
	if f := HighError(0.25, 0.25); f != nil {
		t.Fatalf("HighError(0.25, r=0.25) = %+v, want nil (not strictly greater)", f)
	}
	f := HighError(0.5, 0.25)
	if f == nil {
		t.Fatal("HighError(0.5, r=0.25) = nil, want a finding")
	}
	want := 0.4 + (0.5-0.25)*2
	if f.Confidence != want {
		t.Fatalf("Confidence = %v, want %v", f.Confidence, want)
	}
}

func TestQualityDropRequiresAtLeastThreeScores(t *testing.T) {
	if f := QualityDrop([]float64{1.0, 0.2}, 0.15); f != nil {
		t.Fatalf("QualityDrop(len=2) = %+v, want nil", f)
	}
}

func TestQualityDropRequiresNegativeSlopeAndDropAboveThreshold(t *testing.T) {
	declining := []float64{1.0, 0.8, 0.6, 0.4}
	f := QualityDrop(declining, 0.15)
	if f == nil {
		t.Fatal("QualityDrop(declining) = nil, want a finding")
	}
	if f.Type != "quality_drop" {
		t.Fatalf("Type = %q, want quality_drop", f.Type)
	}

	flat := []float64{0.8, 0.8, 0.8, 0.8}
	if f := QualityDrop(flat, 0.15); f != nil {
		t.Fatalf("QualityDrop(flat) = %+v, want nil", f)
	}

	rising := []float64{0.2, 0.4, 0.6, 0.8}
	if f := QualityDrop(rising, 0.15); f != nil {
		t.Fatalf("QualityDrop(rising) = %+v, want nil", f)
	}

	smallDrop := []float64{1.0, 0.95, 0.9, 0.92}
	if f := QualityDrop(smallDrop, 0.15); f != nil {
		t.Fatalf("QualityDrop(small drop under threshold) = %+v, want nil", f)
	}
}
