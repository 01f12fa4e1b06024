package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CurriculumPreviewKey returns the cache key for a curriculum's raw-text preview
func (r *CacheKeyStruct) CurriculumPreviewKey(documentID string) string {
	return fmt.Sprintf("curriculum:%s:preview", documentID)
}

// CurriculumIngestChannel returns the Redis PubSub channel for a curriculum's ingestion progress
func (r *CacheKeyStruct) CurriculumIngestChannel(documentID string) string {
	return fmt.Sprintf("curriculum:%s:ingest", documentID)
}

// RateLimitKey returns the limiter key for a client on a route
func (r *CacheKeyStruct) RateLimitKey(route, clientIP string) string {
	return fmt.Sprintf("ratelimit:%s:%s", route, clientIP)
}

var CacheKey = NewCacheKeyStruct()
