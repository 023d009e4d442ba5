package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionMonitorChannel returns the Redis PubSub channel carrying live log
// events of one exam session.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID int64) string {
	return fmt.Sprintf("exam_session:%d:monitor", sessionID)
}

// RescorePendingKey returns the set of print ids already queued for a cache
// refresh, so a burst of validity flips does not queue the same print twice.
func (r *CacheKeyStruct) RescorePendingKey() string {
	return "rescore:pending"
}

// SweepLockKey returns the key guarding the periodic re-score sweep when
// several servers run the same schedule.
func (r *CacheKeyStruct) SweepLockKey() string {
	return "rescore:sweep_lock"
}

// RevokedTokenKey returns the key marking a token id as revoked until it
// would have expired anyway.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

var CacheKey = NewCacheKeyStruct()
