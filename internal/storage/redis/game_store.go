package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

const leaderboardKey = "leaderboard:xp"

// GameStore keeps per-user reward counters.
//
// Key layout:
//   - user:{id}:xp     total XP (string int)
//   - user:{id}:coins  total UrbanCoins (string int)
//   - user:{id}:badges set of badge names
//   - leaderboard:xp   sorted set, score = total XP
//
// Every mutation is a single-key atomic command; a user's entry is created
// lazily by the first increment.
type GameStore struct {
	client *redis.Client
}

func NewGameStore(client *redis.Client) *GameStore {
	return &GameStore{client: client}
}

func xpKey(userID int64) string     { return fmt.Sprintf("user:%d:xp", userID) }
func coinsKey(userID int64) string  { return fmt.Sprintf("user:%d:coins", userID) }
func badgesKey(userID int64) string { return fmt.Sprintf("user:%d:badges", userID) }

// AddXP increments the user's XP and refreshes the leaderboard score.
// Returns the new total.
func (s *GameStore) AddXP(ctx context.Context, userID int64, xp int64) (int64, error) {
	const op = "redis.GameStore.AddXP"

	total, err := s.client.IncrBy(ctx, xpKey(userID), xp).Result()
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	err = s.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(total),
		Member: fmt.Sprintf("%d", userID),
	}).Err()
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	return total, nil
}

func (s *GameStore) AddCoins(ctx context.Context, userID int64, coins int64) (int64, error) {
	const op = "redis.GameStore.AddCoins"

	total, err := s.client.IncrBy(ctx, coinsKey(userID), coins).Result()
	if err != nil {
		return 0, e.Wrap(op, err)
	}
	return total, nil
}

func (s *GameStore) AddBadge(ctx context.Context, userID int64, badge string) error {
	const op = "redis.GameStore.AddBadge"

	if err := s.client.SAdd(ctx, badgesKey(userID), badge).Err(); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

func (s *GameStore) Badges(ctx context.Context, userID int64) ([]string, error) {
	const op = "redis.GameStore.Badges"

	badges, err := s.client.SMembers(ctx, badgesKey(userID)).Result()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return badges, nil
}

// Leaderboard returns the top users ordered by XP descending, ranks 1..N.
func (s *GameStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const op = "redis.GameStore.Leaderboard"

	if limit < 1 || limit > 100 {
		limit = 10
	}

	zs, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		var userID int64
		if _, err := fmt.Sscanf(member, "%d", &userID); err != nil {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   i + 1,
			UserID: userID,
			XP:     int64(z.Score),
		})
	}

	return entries, nil
}

// Profile reads the user's counters; missing keys read as zero so a user
// that never earned anything still has a coherent profile.
func (s *GameStore) Profile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	const op = "redis.GameStore.Profile"

	profile := domain.UserProfile{UserID: userID, Badges: []string{}}

	xp, err := s.client.Get(ctx, xpKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return profile, e.Wrap(op, err)
	}
	profile.XP = xp

	coins, err := s.client.Get(ctx, coinsKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return profile, e.Wrap(op, err)
	}
	profile.Coins = coins

	badges, err := s.client.SMembers(ctx, badgesKey(userID)).Result()
	if err != nil {
		return profile, e.Wrap(op, err)
	}
	if badges != nil {
		profile.Badges = badges
	}

	profile.Level = domain.LevelForXP(profile.XP)
	return profile, nil
}
