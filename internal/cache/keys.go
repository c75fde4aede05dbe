package cache

import "fmt"

func PredictionKey(fingerprint string) string {
	return fmt.Sprintf("prediction:%s", fingerprint)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
