package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mehmetkoksal-w/hookbound/internal/hookerr"
)

func TestCallWithoutCommandIsExternalError(t *testing.T) {
	g := &Gateway{}
	_, err := g.Call(context.Background(), []string{"noop"}, nil)
	if err == nil {
		t.Fatal("Call with empty Command should return an error")
	}
	if !errors.Is(err, hookerr.ErrExternal) {
		t.Fatalf("Kind(err) = %v, want ErrExternal", hookerr.Kind(err))
	}
}

func TestDetachWithoutCommandIsExternalError(t *testing.T) {
	g := &Gateway{}
	err := g.Detach([]string{"noop"}, nil)
	if !errors.Is(err, hookerr.ErrExternal) {
		t.Fatalf("Kind(err) = %v, want ErrExternal", hookerr.Kind(err))
	}
}

func TestCallRunsCommandAndCapturesStdout(t *testing.T) {
	g := New("echo")
	result, err := g.Call(context.Background(), []string{"hello"}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !result.Success {
		t.Fatal("expected Success=true for a zero-exit command")
	}
	if result.Stdout == "" {
		t.Fatal("expected non-empty stdout from echo")
	}
}

func TestCallNonexistentCommandIsExternalError(t *testing.T) {
	g := New("hookbound-definitely-not-a-real-binary")
	_, err := g.Call(context.Background(), nil, nil)
	if !errors.Is(err, hookerr.ErrExternal) {
		t.Fatalf("Kind(err) = %v, want ErrExternal", hookerr.Kind(err))
	}
}

func TestTimeoutClampedToMax(t *testing.T) {
	g := &Gateway{Command: "echo", Timeout: time.Hour}
	if got := g.timeout(); got != MaxTimeout {
		t.Fatalf("timeout() = %v, want clamp to %v", got, MaxTimeout)
	}
}

func TestTimeoutDefaultsWhenUnset(t *testing.T) {
	g := &Gateway{Command: "echo"}
	if got := g.timeout(); got != DefaultTimeout {
		t.Fatalf("timeout() = %v, want default %v", got, DefaultTimeout)
	}
}

func TestCallRespectsContextDeadline(t *testing.T) {
	g := &Gateway{Command: "sleep", Timeout: 50 * time.Millisecond}
	_, err := g.Call(context.Background(), []string{"2"}, nil)
	if !errors.Is(err, hookerr.ErrTimeout) {
		t.Fatalf("Kind(err) = %v, want ErrTimeout", hookerr.Kind(err))
	}
}
