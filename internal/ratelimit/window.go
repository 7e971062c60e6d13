package ratelimit

import (
	"time"
)

// WindowState 单个键（手机号或 IP）的限流计数状态。
// Date 为计数所属的本地日历日，跨天后整体重置（固定日界，不是滚动24小时窗口）。
type WindowState struct {
	LastRequest   time.Time `json:"last_request"`
	DailyCount    int       `json:"daily_count"`
	IntervalCount int       `json:"interval_count"`
	Date          string    `json:"date"` // yyyy-MM-dd
}

// Store 限流状态存储。多进程部署时使用 RedisStore，
// 单进程/测试场景使用 MemoryStore。
type Store interface {
	Get(key string) (WindowState, bool, error)
	Set(key string, state WindowState) error
}

// dateOf 返回本地日历日字符串
func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// loadState 读取并按日历日归一化状态：记录的日期与今天不同则计数全部清零
func loadState(store Store, key string, now time.Time) (WindowState, error) {
	today := dateOf(now)

	state, ok, err := store.Get(key)
	if err != nil {
		return WindowState{}, err
	}
	if !ok || state.Date != today {
		return WindowState{Date: today}, nil
	}
	return state, nil
}

// rollInterval 间隔窗口翻转：距上次请求已满 interval 时清零间隔计数。
// 检查与记录两条路径共用此函数，保证翻转规则只有一份。
func rollInterval(state *WindowState, interval time.Duration, now time.Time) {
	if now.Sub(state.LastRequest) >= interval {
		state.IntervalCount = 0
	}
}

// retryAfterSeconds 距窗口结束还需等待的秒数（向上取整，至少 1 秒）
func retryAfterSeconds(elapsed, interval time.Duration) int {
	remain := interval - elapsed
	if remain <= 0 {
		return 0
	}
	secs := int((remain + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
