package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amasendi/ridepool-backend/internal/grouping"
)

var RedisClient *redis.Client

// SeriesMutationChannel carries series mutation events for collaborators.
// The bookings side subscribes and treats any booking referencing a listed
// occurrence id as stale.
const SeriesMutationChannel = "series:mutations"

const listingCacheKey = "postings:listing"

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// CacheListing stores the assembled public listing
func CacheListing(ctx context.Context, entries []grouping.ListingEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, listingCacheKey, data, 5*time.Minute).Err()
}

// GetCachedListing retrieves the assembled public listing, if cached
func GetCachedListing(ctx context.Context) ([]grouping.ListingEntry, error) {
	data, err := RedisClient.Get(ctx, listingCacheKey).Result()
	if err != nil {
		return nil, err
	}

	var entries []grouping.ListingEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// InvalidateListing drops the cached listing after any posting mutation
func InvalidateListing(ctx context.Context) error {
	return RedisClient.Del(ctx, listingCacheKey).Err()
}

// SeriesMutationEvent describes one applied bulk mutation
type SeriesMutationEvent struct {
	Action        string `json:"action"` // created, updated, deleted
	PosterID      uint   `json:"posterId"`
	Scope         string `json:"scope,omitempty"`
	OccurrenceIDs []uint `json:"occurrenceIds"`
	Timestamp     int64  `json:"timestamp"`
}

// PublishSeriesMutation publishes a mutation event to Redis pub/sub
func PublishSeriesMutation(ctx context.Context, event SeriesMutationEvent) error {
	event.Timestamp = time.Now().Unix()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, SeriesMutationChannel, data).Err()
}
