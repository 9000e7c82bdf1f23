package auth

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
)

// Operation names a mutation on an owned resource. It only feeds logs; the
// rule is the same for all of them.
type Operation int

const (
	OpReplacePhoto Operation = iota + 1
	OpDeletePhoto
	OpUpdateProfile
	OpDeleteUser
)

// String returns the name used in denial logs.
func (o Operation) String() string {
	switch o {
	case OpReplacePhoto:
		return "replace_photo"
	case OpDeletePhoto:
		return "delete_photo"
	case OpUpdateProfile:
		return "update_profile"
	case OpDeleteUser:
		return "delete_user"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// Guard allows an operation when the principal owns the resource or holds
// an elevated role. A resource without a recorded owner is always denied.
type Guard struct {
	logger logging.Logger
}

// NewGuard returns a Guard that logs denials to logger.
func NewGuard(logger logging.Logger) *Guard {
	return &Guard{logger: logger.With("module", "guard")}
}

// Authorize returns nil on allow and common.ErrNotAllowed on deny.
func (g *Guard) Authorize(ctx context.Context, p Principal, ownerID string, op Operation) error {
	if ownerID == "" {
		g.logger.Warn(ctx, "denied: resource has no owner", "subject", p.Subject, "op", op.String())
		return common.ErrNotAllowed
	}

	if p.Elevated() {
		if p.Subject != ownerID {
			g.logger.Info(ctx, "elevated access", "subject", p.Subject, "owner", ownerID, "op", op.String())
		}
		return nil
	}

	if p.Subject != "" && p.Subject == ownerID {
		return nil
	}

	g.logger.Debug(ctx, "denied: not owner", "subject", p.Subject, "owner", ownerID, "op", op.String())
	return common.ErrNotAllowed
}
