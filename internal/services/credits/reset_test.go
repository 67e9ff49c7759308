package credits

import (
	"context"
	"testing"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDueResetsOnlyTouchesOverdueQuotas(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, err := svc.Provision(ctx, "dormant")
	require.NoError(t, err)
	_, err = svc.Provision(ctx, "active")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, "dormant", models.ActionGeneration, 80)
	require.NoError(t, err)

	// Push only the dormant user's boundary into the past.
	require.NoError(t, svc.db.Model(&models.UserQuota{}).
		Where("user_id = ?", "dormant").
		Update("next_reset_at", base.Add(-time.Hour)).Error)

	count, err := svc.ProcessDueResets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	quota, err := svc.GetQuota(ctx, "dormant")
	require.NoError(t, err)
	assert.Equal(t, int64(100), quota.CreditsRemaining)
	assert.True(t, quota.NextResetAt.After(base))

	// Running again finds nothing due.
	count, err = svc.ProcessDueResets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestResetSweeperStops(t *testing.T) {
	svc := newTestService(t)

	sweeper := NewResetSweeper(svc, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
