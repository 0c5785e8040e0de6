package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionStartKey returns the cache key holding the instant a user first opened a simulado.
func (r *CacheKeyStruct) SessionStartKey(sessionID, userID int) string {
	return fmt.Sprintf("simulado:%d:user:%d:started_at", sessionID, userID)
}

var CacheKey = NewCacheKeyStruct()
