package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ThrottleError 上游限流类错误，是唯一会触发重试的错误类别
type ThrottleError struct {
	Message string
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: %s", e.Message)
}

// ExhaustedError 所有重试次数耗尽后返回，包装最后一次的错误
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("generation exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsThrottle 识别限流类错误。除了本包的类型标记，还按上游常见的
// 错误文案做一次兜底匹配
func IsThrottle(err error) bool {
	var te *ThrottleError
	if errors.As(err, &te) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "ThrottlingException") ||
		strings.Contains(msg, "Too many requests") ||
		strings.Contains(msg, "rate limit")
}

// Invoker 带指数退避的调用器。只有限流类错误会被重试，
// 退避时长为 min(Cap, Base*2^(attempt-1))
type Invoker struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration

	// 可注入的休眠实现，测试用。为空时用带 context 的 time.After
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry 每次进入退避前回调，用于打点
	OnRetry func(attempt int)
}

// NewInvoker 按配置构造，零值参数取默认：5 次、10s 起步、60s 封顶
func NewInvoker(maxAttempts, baseSeconds, capSeconds int) *Invoker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseSeconds <= 0 {
		baseSeconds = 10
	}
	if capSeconds <= 0 {
		capSeconds = 60
	}
	return &Invoker{
		MaxAttempts: maxAttempts,
		Base:        time.Duration(baseSeconds) * time.Second,
		Cap:         time.Duration(capSeconds) * time.Second,
	}
}

// Backoff 第 attempt 次失败后的等待时长，attempt 从 1 开始
func (iv *Invoker) Backoff(attempt int) time.Duration {
	d := iv.Base << (attempt - 1)
	if d > iv.Cap || d <= 0 {
		d = iv.Cap
	}
	return d
}

// Do 执行 op，限流错误按策略重试。非限流错误立即返回，
// ctx 取消会中断退避休眠
func (iv *Invoker) Do(ctx context.Context, op func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= iv.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if !IsThrottle(last) {
			return last
		}
		if attempt == iv.MaxAttempts {
			break
		}

		if iv.OnRetry != nil {
			iv.OnRetry(attempt)
		}
		if err := iv.sleep(ctx, iv.Backoff(attempt)); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: iv.MaxAttempts, Last: last}
}

func (iv *Invoker) sleep(ctx context.Context, d time.Duration) error {
	if iv.Sleep != nil {
		return iv.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
