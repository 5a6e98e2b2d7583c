package session

import (
	"testing"
	"time"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

func TestStore_CreateAndLoadRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.WithSession("chain-abc", func(existing *core.ChainSession) (*core.ChainSession, error) {
		if existing != nil {
			t.Fatal("expected no existing session")
		}
		return &core.ChainSession{
			ChainID:      "chain-abc",
			PromptID:     "summarize",
			TotalSteps:   1,
			CurrentStep:  1,
			State:        core.StateReadyForStep,
			LastActivity: time.Now(),
		}, nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := store.WithSession("chain-abc", func(existing *core.ChainSession) (*core.ChainSession, error) {
		if existing == nil {
			t.Fatal("expected existing session to load")
		}
		existing.CurrentStep = 2
		return existing, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if loaded.CurrentStep != 2 || loaded.PromptID != "summarize" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestStore_DeleteOnNilReturn(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, _ = store.WithSession("chain-gone", func(existing *core.ChainSession) (*core.ChainSession, error) {
		return &core.ChainSession{ChainID: "chain-gone", State: core.StateComplete}, nil
	})
	_, err = store.WithSession("chain-gone", func(existing *core.ChainSession) (*core.ChainSession, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	reloaded, err := store.WithSession("chain-gone", func(existing *core.ChainSession) (*core.ChainSession, error) {
		if existing != nil {
			t.Fatal("expected session to have been deleted")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	_ = reloaded
}

func TestStore_SweepIdleRemovesExpired(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	_, _ = store.WithSession("chain-old", func(existing *core.ChainSession) (*core.ChainSession, error) {
		return &core.ChainSession{ChainID: "chain-old", State: core.StateReadyForStep, LastActivity: old}, nil
	})
	_, _ = store.WithSession("chain-fresh", func(existing *core.ChainSession) (*core.ChainSession, error) {
		return &core.ChainSession{ChainID: "chain-fresh", State: core.StateReadyForStep, LastActivity: time.Now()}, nil
	})

	expired, err := store.SweepIdle(time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(expired) != 1 || expired[0] != "chain-old" {
		t.Errorf("expired = %v", expired)
	}
}
