package storeschema

import "testing"

func TestBandClassifiesByThreshold(t *testing.T) {
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.95, "high"},
		{ConfidenceHigh, "high"},
		{0.79, "medium"},
		{ConfidenceMedium, "medium"},
		{0.49, "low"},
		{0.0, "low"},
	}
	for _, c := range cases {
		if got := Band(c.confidence); got != c.want {
			t.Fatalf("Band(%v) = %q, want %q", c.confidence, got, c.want)
		}
	}
}

func TestCompileAllSchemaNamesSucceed(t *testing.T) {
	for _, name := range []string{SchemaSession, SchemaTrajectory, SchemaPattern, SchemaClaim} {
		if _, err := Compile(name); err != nil {
			t.Fatalf("Compile(%s): %v", name, err)
		}
	}
}

func TestCompileUnknownSchemaErrors(t *testing.T) {
	if _, err := Compile("does-not-exist"); err == nil {
		t.Fatal("Compile(unknown) = nil, want an error")
	}
}

func TestCompileReturnsUsableValidator(t *testing.T) {
	schema, err := Compile(SchemaClaim)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	valid := map[string]any{
		"issueId":   "a.go",
		"claimant":  "agent-1",
		"status":    "active",
		"claimedAt": "2026-01-01T00:00:00Z",
	}
	if err := schema.Validate(valid); err != nil {
		t.Fatalf("Validate(well-formed claim) = %v, want nil", err)
	}

	invalid := map[string]any{"issueId": "a.go"}
	if err := schema.Validate(invalid); err == nil {
		t.Fatal("Validate(missing required fields) = nil, want an error")
	}
}
