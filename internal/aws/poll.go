package aws

import (
	"context"
	"time"

	"github.com/alexalbu001/ecs-scaler/pkg"
)

// PollTargets re-describes the targets every interval and sends each snapshot
// on the returned channel. Failed polls are dropped. The channel is closed
// when ctx is done.
func PollTargets(ctx context.Context, client ECSAPI, cluster string, services []string, interval time.Duration) <-chan []pkg.TargetStatus {
	updates := make(chan []pkg.TargetStatus)

	go func() {
		defer close(updates)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				statuses, err := DescribeTargets(ctx, client, cluster, services)
				if err != nil {
					continue
				}
				select {
				case updates <- statuses:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates
}
