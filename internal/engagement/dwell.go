package engagement

import (
	"context"
	"time"
)

// Dwell completes a link visit after the user has had the link open for Wait
type Dwell struct {
	Wait time.Duration
}

func (d Dwell) Show(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		return Result{}, ErrUnavailable
	}
	if d.Wait <= 0 {
		return Result{Completed: true}, nil
	}

	timer := time.NewTimer(d.Wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
		return Result{Completed: true}, nil
	}
}
