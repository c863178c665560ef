package service

import (
	"context"
	"encoding/json"
	"time"

	"elevate_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const leaderboardKeyPrefix = "leaderboard:"

// LeaderboardService reads and writes the cached rankings. The sweeper
// is the only writer; reads go straight to the cache.
type LeaderboardService struct {
	redis *redis.Client
}

func NewLeaderboardService(rdb *redis.Client) *LeaderboardService {
	return &LeaderboardService{redis: rdb}
}

// Publish replaces the contest's cached leaderboard.
func (s *LeaderboardService) Publish(ctx context.Context, contestID string, entries []model.LeaderboardEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, leaderboardKeyPrefix+contestID, raw, ttl).Err()
}

// Get returns the cached leaderboard, or an empty slice when the cache
// has not been populated yet.
func (s *LeaderboardService) Get(ctx context.Context, contestID string) ([]model.LeaderboardEntry, error) {
	raw, err := s.redis.Get(ctx, leaderboardKeyPrefix+contestID).Bytes()
	if err == redis.Nil {
		return []model.LeaderboardEntry{}, nil
	}
	if err != nil {
		return nil, model.ServiceUnavailable("leaderboard cache unavailable", err)
	}

	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
