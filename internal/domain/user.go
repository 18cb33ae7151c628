package domain

import (
	"encoding/json"
	"time"
)

// User represents an authenticated GitHub identity
type User struct {
	PlatformID  int64
	Username    string
	AccessToken string
	AvatarURL   string
	LastUpdated time.Time
}

// CacheEntry is a stored compatibility result for an unordered user pair
type CacheEntry struct {
	PairKey   string
	Results   json.RawMessage
	Timestamp time.Time
}
