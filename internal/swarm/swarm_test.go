package swarm

import (
	"context"
	"testing"
)

func TestNilGatewayIsNotSupported(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	cases := []Result{
		m.Init(ctx, "mesh"),
		m.Spawn(ctx, 3),
		m.Submit(ctx, "do it", "normal"),
		m.Status(ctx, false),
		m.Consensus(ctx, "topic", []string{"a", "b"}),
		m.Broadcast(ctx, "hi", "all"),
		m.Shutdown(ctx, false),
	}
	for i, r := range cases {
		if r.Success {
			t.Fatalf("case %d: Success = true with a nil gateway, want false", i)
		}
		if r.Reason != "not_supported" {
			t.Fatalf("case %d: Reason = %q, want not_supported", i, r.Reason)
		}
	}
}

func TestExtractOneFindsHiveID(t *testing.T) {
	out := extractOne("hiveId", hiveIDPattern, "Hive ID: abc-123\nother text")
	if out == nil || out["hiveId"] != "abc-123" {
		t.Fatalf("extractOne(hiveId) = %v, want abc-123", out)
	}
}

func TestExtractOneNoMatchReturnsNil(t *testing.T) {
	if out := extractOne("hiveId", hiveIDPattern, "no id here"); out != nil {
		t.Fatalf("extractOne(no match) = %v, want nil", out)
	}
}

func TestExtractAllJoinsMultipleWorkerIDs(t *testing.T) {
	out := extractAll("workerIds", workerIDPattern, "Worker: w1\nWorker: w2\nWorker: w3")
	if out == nil {
		t.Fatal("extractAll returned nil, want matches")
	}
	if out["workerIds"] != "w1,w2,w3" {
		t.Fatalf("workerIds = %q, want w1,w2,w3", out["workerIds"])
	}
}
