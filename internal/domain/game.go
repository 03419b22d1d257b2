package domain

import "math"

type UserProfile struct {
	UserID int64    `json:"usuario_id"`
	XP     int64    `json:"xp"`
	Coins  int64    `json:"coins"`
	Level  int      `json:"level"`
	Badges []string `json:"badges"`
}

type LeaderboardEntry struct {
	Rank   int   `json:"rank"`
	UserID int64 `json:"usuario_id"`
	XP     int64 `json:"xp"`
}

// LevelForXP derives the level from total XP; levels are never stored.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}
