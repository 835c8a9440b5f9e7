package printjob

import (
	"context"
	"fmt"
)

// activeStatuses are the jobs ahead of a newly quoted one.
var activeStatuses = []Status{StatusApproved, StatusProcessing}

// NextQueuePosition returns a point-in-time position: active jobs + 1.
// Positions are advisory and never renumbered.
func NextQueuePosition(ctx context.Context, repo Repository) (int, error) {
	n, err := repo.CountByStatus(ctx, activeStatuses...)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n + 1, nil
}
