package engagement

import (
	"context"
	"errors"

	"ton_miner/internal/domain"
)

var (
	ErrDeclined    = errors.New("engagement declined")
	ErrUnavailable = errors.New("engagement provider unavailable")
	ErrNoFill      = errors.New("no ad available right now")
)

// Request asks a collaborator to show one piece of engagement to a user.
// Gate is the action gate waiting on it, e.g. "start_mining" or "complete_task:ad1".
type Request struct {
	UserID    int64
	Gate      string
	Kind      domain.TaskKind
	Placement string
	URL       string
}

// Result is what the collaborator resolved with. Completed=false means declined.
type Result struct {
	Completed bool
	// Reason is set by the provider when it declined, e.g. "no_fill"
	Reason string
}

// Err maps a declined result to the error surfaced to the user
func (r Result) Err() error {
	switch {
	case r.Completed:
		return nil
	case r.Reason == ReasonNoFill:
		return ErrNoFill
	default:
		return ErrDeclined
	}
}

const ReasonNoFill = "no_fill"

// Collaborator shows an ad or a link and reports whether the user finished it
type Collaborator interface {
	Show(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to Collaborator
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Show(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Always confirms immediately. Used when no ad provider is configured (dev mode).
type Always struct{}

func (Always) Show(ctx context.Context, _ Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Completed: true}, nil
}

// Router picks a collaborator by engagement kind
type Router struct {
	Ads   Collaborator
	Links Collaborator
}

func (r Router) Show(ctx context.Context, req Request) (Result, error) {
	var c Collaborator
	switch req.Kind {
	case domain.TaskKindLink:
		c = r.Links
	default:
		c = r.Ads
	}
	if c == nil {
		return Result{}, ErrUnavailable
	}
	return c.Show(ctx, req)
}
