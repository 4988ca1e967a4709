package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit: got %d", got)
	}
	if got := NormalizeLimit(1000); got != MaxLimit {
		t.Fatalf("over max: got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("in range: got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	cursor := Cursor{CreatedAt: time.Now().UTC().Truncate(time.Millisecond), ID: uuid.New()}
	encoded := EncodeCursor(cursor)

	parsed, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cursor)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	t.Parallel()

	parsed, err := ParseCursor("   ")
	if err != nil || parsed != nil {
		t.Fatalf("expected nil cursor, got %v %v", parsed, err)
	}
}

func TestParseCursorInvalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
