package archive

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeArchiver struct {
	cutoffs []time.Time
}

func (f *fakeArchiver) ArchiveResolvedBets(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return 3, nil
}

func (f *fakeArchiver) ListArchives(context.Context) ([]domain.BlobInfo, error) {
	return nil, nil
}

func TestRunUsesRetentionCutoff(t *testing.T) {
	fake := &fakeArchiver{}
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	runner := NewRunner(fake, 30, logger)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.cutoffs) != 1 {
		t.Fatalf("got %d archive calls", len(fake.cutoffs))
	}

	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if diff := fake.cutoffs[0].Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", fake.cutoffs[0], want)
	}
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, time.January, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, time.January, 16, 3, 0, 0, 0, time.UTC)},
		{"* * * * *", time.Date(2026, time.January, 15, 14, 31, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2026, time.February, 1, 3, 0, 0, 0, time.UTC)},
		{"0,30 15 * * *", time.Date(2026, time.January, 15, 15, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := nextCronTime(tt.expr, after)
		if err != nil {
			t.Errorf("%q: %v", tt.expr, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%q: got %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestParseCronRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "0 3 * *", "x * * * *", "0 3 * * * *"} {
		if _, err := parseCron(expr); err == nil {
			t.Errorf("parseCron(%q) accepted", expr)
		}
	}
}
