package redis

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every orbit key
const KeyPrefix = "orbit:"

// Key returns the Redis key for a storage key
func Key(key string) string {
	return KeyPrefix + key
}

// ExtractKey strips the namespace from a Redis key
func ExtractKey(redisKey string) (string, error) {
	if len(redisKey) <= len(KeyPrefix) || !strings.HasPrefix(redisKey, KeyPrefix) {
		return "", fmt.Errorf("invalid orbit key: %s", redisKey)
	}
	return redisKey[len(KeyPrefix):], nil
}
