package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 50, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	original := Cursor{CreatedAt: time.Now().UTC().Truncate(time.Microsecond), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor")
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) || parsed.ID != original.ID {
		t.Fatalf("round trip mismatch: got %+v want %+v", parsed, original)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	t.Parallel()

	parsed, err := ParseCursor("   ")
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor, got %+v", parsed)
	}
}

func TestParseCursorInvalid(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"not-base64!!", "bm9waXBl", "MjAyNC0wMS0wMVQwMDowMDowMFp8bm90LXV1aWQ="} {
		if _, err := ParseCursor(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}

func TestBuildPage(t *testing.T) {
	t.Parallel()

	type row struct {
		id        uuid.UUID
		createdAt time.Time
	}

	now := time.Now().UTC()
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{id: uuid.New(), createdAt: now.Add(-time.Duration(i) * time.Minute)}
	}

	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.createdAt, ID: r.id} }

	page := BuildPage(rows, 3, cursorOf)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor when extra row buffered")
	}
	parsed, err := ParseCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed.ID != rows[2].id {
		t.Fatalf("cursor should point at last returned row")
	}

	short := BuildPage(rows[:2], 3, cursorOf)
	if short.NextCursor != "" {
		t.Fatal("expected no next cursor on final page")
	}
	if len(short.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(short.Items))
	}
}
