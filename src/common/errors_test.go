package common

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestIsThroughWrapping(t *testing.T) {
	base := NewInsufficientFundsErr("P1", 0, 10)

	wrapped := errors.Wrap(base, "commit")

	if !Is(wrapped, InsufficientFunds) {
		t.Fatalf("wrapped error should keep its classification")
	}

	if Is(wrapped, Validation) {
		t.Fatalf("wrapped error should not match another type")
	}

	if Is(fmt.Errorf("plain"), Validation) {
		t.Fatalf("plain errors are not classified")
	}
}

func TestStorageErrCause(t *testing.T) {
	cause := fmt.Errorf("disk full")

	err := NewStorageErr("append", cause)

	typ, ok := TypeOf(err)
	if !ok || typ != Storage {
		t.Fatalf("expected Storage, got %v (%v)", typ, ok)
	}

	if errors.Unwrap(err) != cause {
		t.Fatalf("Unwrap should return the cause")
	}
}

func TestIsStore(t *testing.T) {
	err := errors.Wrap(NewStoreErr("Transaction", KeyNotFound, "42"), "get")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}

	if IsStore(err, SkippedIndex) {
		t.Fatalf("did not expect SkippedIndex")
	}
}
