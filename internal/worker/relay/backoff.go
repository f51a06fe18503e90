package relay

import "time"

const (
	// initialBackoff は配信失敗後の初回待機時間。
	initialBackoff = 10 * time.Second
	// maxBackoff は待機時間の上限。
	maxBackoff = 5 * time.Minute
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回10秒、2倍ずつ増加、最大5分。
func CalculateBackoff(consecutiveFailures int) time.Duration {
	delay := initialBackoff
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
