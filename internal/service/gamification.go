package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

// Rewards per verified report. Flat constants for now, independent of
// severity.
const (
	XPPerVerifiedReport    = 10
	CoinsPerVerifiedReport = 5
)

type BadgeThreshold struct {
	XP   int64
	Name string
}

// BadgeThresholds is ordered ascending; a single large award can cross
// several at once, so the whole table is checked every time.
var BadgeThresholds = []BadgeThreshold{
	{100, "Explorador Urbano"},
	{250, "Guardián de la Ciudad"},
	{500, "Héroe del Tráfico"},
	{1000, "Leyenda Urbana"},
}

// GamificationEngine turns lifecycle events into reward mutations and backs
// the leaderboard/profile reads. It implements rabbit.MessageHandler.
//
// Delivery is at-least-once and XP/coin increments are applied per delivery,
// so a redelivered event double-counts. Badge grants stay idempotent via the
// owned-badge check plus Redis set semantics.
type GamificationEngine struct {
	store  GameStore
	logger *slog.Logger
}

func NewGamificationEngine(store GameStore, logger *slog.Logger) *GamificationEngine {
	return &GamificationEngine{store: store, logger: logger}
}

// rewardEvent tolerates both the flat producer payload (event_type/user_id)
// and the legacy enveloped aliases (type/usuario_id).
type rewardEvent struct {
	EventType   string `json:"event_type"`
	TypeAlias   string `json:"type"`
	UserID      *int64 `json:"user_id"`
	UserIDAlias *int64 `json:"usuario_id"`
}

func (ev rewardEvent) eventType() string {
	if ev.EventType != "" {
		return ev.EventType
	}
	return ev.TypeAlias
}

func (ev rewardEvent) userID() (int64, bool) {
	if ev.UserID != nil {
		return *ev.UserID, true
	}
	if ev.UserIDAlias != nil {
		return *ev.UserIDAlias, true
	}
	return 0, false
}

func (g *GamificationEngine) Handle(ctx context.Context, body []byte) error {
	var ev rewardEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", e.ErrMalformedEvent, err)
	}

	eventType := ev.eventType()
	switch eventType {
	case domain.EventReportVerified, domain.EventReportValidated:
		userID, ok := ev.userID()
		if !ok {
			return fmt.Errorf("%w: %s without user id", e.ErrMalformedEvent, eventType)
		}
		return g.processVerifiedReport(ctx, userID)

	case domain.EventReportCreated:
		userID, ok := ev.userID()
		if !ok {
			return fmt.Errorf("%w: %s without user id", e.ErrMalformedEvent, eventType)
		}
		// No reward yet; recorded for future rules.
		g.logger.Info("report created registered, pending validation",
			slog.Int64("usuario_id", userID))
		return nil

	case "":
		return fmt.Errorf("%w: missing event type", e.ErrMalformedEvent)

	default:
		g.logger.Warn("ignoring unknown event type", slog.String("event_type", eventType))
		return nil
	}
}

func (g *GamificationEngine) processVerifiedReport(ctx context.Context, userID int64) error {
	totalXP, err := g.store.AddXP(ctx, userID, XPPerVerifiedReport)
	if err != nil {
		return err
	}

	totalCoins, err := g.store.AddCoins(ctx, userID, CoinsPerVerifiedReport)
	if err != nil {
		return err
	}

	newBadges, err := g.awardBadges(ctx, userID, totalXP)
	if err != nil {
		return err
	}

	g.logger.Info("verified report rewarded",
		slog.Int64("usuario_id", userID),
		slog.Int64("xp_total", totalXP),
		slog.Int64("coins_total", totalCoins),
		slog.Any("new_badges", newBadges),
	)
	return nil
}

// awardBadges grants every threshold at or below totalXP that the user does
// not already hold. Never re-grants an owned badge.
func (g *GamificationEngine) awardBadges(ctx context.Context, userID int64, totalXP int64) ([]string, error) {
	existing, err := g.store.Badges(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		owned[b] = struct{}{}
	}

	var newBadges []string
	for _, t := range BadgeThresholds {
		if totalXP < t.XP {
			continue
		}
		if _, ok := owned[t.Name]; ok {
			continue
		}
		if err := g.store.AddBadge(ctx, userID, t.Name); err != nil {
			return newBadges, err
		}
		newBadges = append(newBadges, t.Name)
	}

	return newBadges, nil
}

func (g *GamificationEngine) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return g.store.Leaderboard(ctx, limit)
}

func (g *GamificationEngine) Profile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	return g.store.Profile(ctx, userID)
}
