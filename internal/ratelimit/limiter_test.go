package ratelimit

import (
	"testing"
	"time"
)

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *fakeClock) *Limiter {
	l := NewLimiter(NewMemoryStore(), NewMemoryStore(), Limits{
		PhoneInterval: time.Minute,
		PhoneDailyMax: 5,
		IPInterval:    time.Minute,
		IPIntervalMax: 3,
		IPDailyMax:    20,
	})
	l.SetNow(clock.Now)
	return l
}

func TestCheckPhoneInterval(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	res, err := l.CheckPhone("13800138000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !res.Allowed {
		t.Fatal("首次请求应该放行")
	}
	if err := l.Record("13800138000", "1.2.3.4"); err != nil {
		t.Fatalf("记录失败: %v", err)
	}

	// 60秒内再次请求应被拒
	clock.Advance(10 * time.Second)
	res, err = l.CheckPhone("13800138000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if res.Allowed {
		t.Fatal("间隔内请求应被拒绝")
	}
	if res.Err.Code != "SMS_002" {
		t.Errorf("错误码应为 SMS_002, 实际 %s", res.Err.Code)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 60 {
		t.Errorf("retryAfter 应在 (0, 60] 内, 实际 %d", res.RetryAfter)
	}
	if res.RetryAfter != 50 {
		t.Errorf("已过10秒, retryAfter 应为 50, 实际 %d", res.RetryAfter)
	}

	// 满60秒后放行
	clock.Advance(50 * time.Second)
	res, err = l.CheckPhone("13800138000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !res.Allowed {
		t.Fatal("满间隔后应放行")
	}
}

func TestCheckPhoneDailyLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	// 前5次按间隔发送
	for i := 0; i < 5; i++ {
		res, err := l.CheckPhone("13800138000")
		if err != nil {
			t.Fatalf("检查失败: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("第%d次请求应放行", i+1)
		}
		if err := l.Record("13800138000", "1.2.3.4"); err != nil {
			t.Fatalf("记录失败: %v", err)
		}
		clock.Advance(61 * time.Second)
	}

	// 第6次触发每日上限
	res, err := l.CheckPhone("13800138000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if res.Allowed {
		t.Fatal("超过每日上限应被拒绝")
	}
	if res.Err.Code != "SMS_003" {
		t.Errorf("错误码应为 SMS_003, 实际 %s", res.Err.Code)
	}

	// 其他手机号不受影响
	res, err = l.CheckPhone("13900139000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !res.Allowed {
		t.Fatal("不同手机号的计数应相互独立")
	}
}

func TestCheckPhoneDailyReset(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		if err := l.Record("13800138000", "1.2.3.4"); err != nil {
			t.Fatalf("记录失败: %v", err)
		}
		clock.Advance(61 * time.Second)
	}

	res, _ := l.CheckPhone("13800138000")
	if res.Allowed {
		t.Fatal("当日已达上限应被拒绝")
	}

	// 跨到次日后计数清零
	clock.Advance(24 * time.Hour)
	res, err := l.CheckPhone("13800138000")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !res.Allowed {
		t.Fatal("跨日后每日计数应重置")
	}
}

func TestCheckIPInterval(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	// 60秒内3次放行（用不同手机号避开手机号间隔限制）
	phones := []string{"13800000001", "13800000002", "13800000003"}
	for i, phone := range phones {
		res, err := l.CheckIP("1.2.3.4")
		if err != nil {
			t.Fatalf("检查失败: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("第%d次IP请求应放行", i+1)
		}
		if err := l.Record(phone, "1.2.3.4"); err != nil {
			t.Fatalf("记录失败: %v", err)
		}
		clock.Advance(time.Second)
	}

	// 第4次触发间隔窗口上限
	res, err := l.CheckIP("1.2.3.4")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if res.Allowed {
		t.Fatal("60秒内第4次IP请求应被拒绝")
	}
	if res.Err.Code != "SMS_008" {
		t.Errorf("错误码应为 SMS_008, 实际 %s", res.Err.Code)
	}
	if res.RetryAfter <= 0 {
		t.Errorf("retryAfter 应大于0, 实际 %d", res.RetryAfter)
	}

	// 其他IP不受影响
	res, _ = l.CheckIP("5.6.7.8")
	if !res.Allowed {
		t.Fatal("不同IP的计数应相互独立")
	}

	// 满60秒后窗口翻转，重新放行
	clock.Advance(time.Minute)
	res, err = l.CheckIP("1.2.3.4")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !res.Allowed {
		t.Fatal("间隔窗口翻转后应放行")
	}
}

func TestCheckIPDailyLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	// 20次分散发送，每次间隔超过窗口避免触发间隔限制
	for i := 0; i < 20; i++ {
		res, err := l.CheckIP("1.2.3.4")
		if err != nil {
			t.Fatalf("检查失败: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("第%d次IP请求应放行", i+1)
		}
		if err := l.Record("13800138000", "1.2.3.4"); err != nil {
			t.Fatalf("记录失败: %v", err)
		}
		clock.Advance(61 * time.Second)
	}

	res, err := l.CheckIP("1.2.3.4")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if res.Allowed {
		t.Fatal("超过IP每日上限应被拒绝")
	}
	if res.Err.Code != "SMS_008" {
		t.Errorf("错误码应为 SMS_008, 实际 %s", res.Err.Code)
	}
}

func TestRecordUpdatesBothDimensions(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock)

	if err := l.Record("13800138000", "1.2.3.4"); err != nil {
		t.Fatalf("记录失败: %v", err)
	}

	phoneState, ok, err := l.phones.Get("13800138000")
	if err != nil || !ok {
		t.Fatalf("手机号状态应存在: ok=%v err=%v", ok, err)
	}
	if phoneState.DailyCount != 1 {
		t.Errorf("手机号每日计数应为1, 实际 %d", phoneState.DailyCount)
	}

	ipState, ok, err := l.ips.Get("1.2.3.4")
	if err != nil || !ok {
		t.Fatalf("IP状态应存在: ok=%v err=%v", ok, err)
	}
	if ipState.DailyCount != 1 || ipState.IntervalCount != 1 {
		t.Errorf("IP计数应为 daily=1 interval=1, 实际 daily=%d interval=%d",
			ipState.DailyCount, ipState.IntervalCount)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("13800138000"); got != "138****8000" {
		t.Errorf("脱敏结果错误: %s", got)
	}
	if got := maskPhone("123"); got != "****" {
		t.Errorf("短字符串应整体脱敏: %s", got)
	}
}
