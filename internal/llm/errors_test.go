package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatalAPIError(t *testing.T) {
	fatal := []error{
		errors.New("insufficient credit balance"),
		errors.New("Rate Limit exceeded, retry later"),
		errors.New("monthly quota reached for this key"),
		errors.New("billing account suspended"),
		errors.New("invalid api key"),
		errors.New("authentication failure"),
		errors.New("unauthorized"),
		errors.New("server returned 401"),
		errors.New("server returned 403"),
		fmt.Errorf("generate: %w", errors.New("credit balance too low")),
	}
	for _, err := range fatal {
		if !isFatalAPIError(err) {
			t.Errorf("isFatalAPIError(%q) = false, want true", err)
		}
	}

	transient := []error{
		nil,
		errors.New("connection reset by peer"),
		errors.New("context deadline exceeded"),
		errors.New("server returned 404"),
		errors.New("server returned 500"),
	}
	for _, err := range transient {
		if isFatalAPIError(err) {
			t.Errorf("isFatalAPIError(%v) = true, want false", err)
		}
	}
}

func TestWrapFatalError(t *testing.T) {
	if got := wrapFatalError(nil); got != nil {
		t.Fatalf("wrapFatalError(nil) = %v, want nil", got)
	}

	transient := errors.New("network timeout")
	if got := wrapFatalError(transient); got != transient {
		t.Errorf("transient error should pass through unchanged, got %v", got)
	}

	wrapped := wrapFatalError(errors.New("invalid api key provided"))
	if !errors.Is(wrapped, ErrFatalAPI) {
		t.Errorf("fatal error should wrap ErrFatalAPI, got %v", wrapped)
	}
}
