// Package access decides whether a user may use the downloader.
package access

import (
	"context"
	"log/slog"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/metrics"
)

// DecisionService answers the individual access questions.
type DecisionService interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)
	IsMemberOfAny(ctx context.Context, userID int64, channelIDs []int64) (bool, error)
}

// ChannelSource lists the channels a user must belong to.
type ChannelSource interface {
	ListActive(ctx context.Context) ([]domain.Channel, error)
}

// Alerter receives decision-service failures for operators.
type Alerter interface {
	Alert(ctx context.Context, category domain.EventCategory, source string, err error, metadata domain.EventMetadata)
}

// Config controls the gate.
type Config struct {
	// Enabled turns on channel membership enforcement.
	Enabled bool
}

// Gate runs the ordered access rules. It only reads.
type Gate struct {
	svc      DecisionService
	channels ChannelSource
	alerter  Alerter
	enabled  bool
	logger   *slog.Logger
}

// NewGate creates an access gate. alerter may be nil.
func NewGate(svc DecisionService, channels ChannelSource, alerter Alerter, cfg Config, logger *slog.Logger) *Gate {
	return &Gate{
		svc:      svc,
		channels: channels,
		alerter:  alerter,
		enabled:  cfg.Enabled,
		logger:   logger,
	}
}

// Check returns the access decision for userID. First matching rule wins:
// admin, banned, whitelisted, disabled, channel membership. Any lookup
// error denies with reason error.
func (g *Gate) Check(ctx context.Context, userID int64) domain.AccessDecision {
	decision := g.check(ctx, userID)
	metrics.AccessDecisions.WithLabelValues(string(decision.Reason)).Inc()
	if !decision.Allowed {
		g.logger.Info("access denied", "user_id", userID, "reason", decision.Reason)
	}
	return decision
}

func (g *Gate) check(ctx context.Context, userID int64) domain.AccessDecision {
	isAdmin, err := g.svc.IsAdmin(ctx, userID)
	if err != nil {
		return g.fail(ctx, userID, "admin lookup", err)
	}
	if isAdmin {
		return domain.Allow(domain.AccessReasonAdmin)
	}

	banned, err := g.svc.IsBanned(ctx, userID)
	if err != nil {
		return g.fail(ctx, userID, "ban lookup", err)
	}
	if banned {
		return domain.Deny(domain.AccessReasonBanned)
	}

	whitelisted, err := g.svc.IsWhitelisted(ctx, userID)
	if err != nil {
		return g.fail(ctx, userID, "whitelist lookup", err)
	}
	if whitelisted {
		return domain.Allow(domain.AccessReasonWhitelisted)
	}

	if !g.enabled {
		return domain.Allow(domain.AccessReasonDisabled)
	}

	channels, err := g.channels.ListActive(ctx)
	if err != nil {
		return g.fail(ctx, userID, "channel list", err)
	}
	if len(channels) == 0 {
		return domain.Allow(domain.AccessReasonNoChannelsRequired)
	}

	ids := make([]int64, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ChannelID)
	}

	member, err := g.svc.IsMemberOfAny(ctx, userID, ids)
	if member {
		return domain.Allow(domain.AccessReasonChannelMember)
	}
	if err != nil {
		return g.fail(ctx, userID, "membership lookup", err)
	}
	return domain.Deny(domain.AccessReasonNoChannelMembership)
}

func (g *Gate) fail(ctx context.Context, userID int64, op string, err error) domain.AccessDecision {
	g.logger.Error("access decision failed", "user_id", userID, "op", op, "error", err)
	if g.alerter != nil {
		g.alerter.Alert(ctx, domain.EventCategoryAccess, "access", err, domain.EventMetadata{
			"user_id": userID,
			"op":      op,
		})
	}
	return domain.Deny(domain.AccessReasonError)
}
