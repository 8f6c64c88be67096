package strategies

import (
	"errors"
	"testing"

	"coinback/internal/engine"
	"coinback/strategies/smacross"
)

func testFactory() (engine.Strategy, error) {
	return smacross.New(5, 20)
}

func TestRegistry(t *testing.T) {
	Register("test-sma", testFactory)

	strat, err := New("test-sma")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if strat.Name() != "smacross" {
		t.Errorf("Name() = %q", strat.Name())
	}

	if _, err := New("missing"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("New(missing) error = %v, want ErrUnknownStrategy", err)
	}

	found := false
	for _, name := range Names() {
		if name == "test-sma" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing test-sma", Names())
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register("dup-sma", testFactory)
	Register("dup-sma", testFactory)
}
