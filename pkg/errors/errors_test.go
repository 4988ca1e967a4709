package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "calling gateway")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %q", err.Code())
	}
}

func TestAsFindsTypedError(t *testing.T) {
	t.Parallel()

	inner := New(CodeStateConflict, "order already cancelled")
	wrapped := fmt.Errorf("outer: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("unexpected code %q", typed.Code())
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("nope"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestDumpChain(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("db down")
	err := Wrap(CodeDependency, cause, "ledger append")

	dump := Dump(err)
	if dump.Code != string(CodeDependency) {
		t.Fatalf("unexpected code %q", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 entries in chain, got %d", len(dump.Chain))
	}
}
