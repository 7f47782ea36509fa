package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(Validationf("bad input")) != KindValidation {
		t.Fatalf("expected validation kind")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain errors")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFoundf("report 7 not found")
	wrapped := fmt.Errorf("loading report: %w", base)

	if !Is(wrapped, KindNotFound) {
		t.Fatalf("kind lost through wrapping")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindExecution, cause, "executor is unavailable")

	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable via errors.Is")
	}
	if KindOf(err) != KindExecution {
		t.Fatalf("expected execution kind")
	}
}
