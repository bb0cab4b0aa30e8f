package rtthread

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// MissedTickBehavior 漏拍处理方式
type MissedTickBehavior int

const (
	// Burst 立即补发所有漏掉的节拍，之后回到原相位
	Burst MissedTickBehavior = iota
	// Delay 从当前时刻起重新计算周期
	Delay
	// Skip 跳过漏掉的节拍，保持原相位
	Skip
)

// String 返回行为名称
func (m MissedTickBehavior) String() string {
	switch m {
	case Burst:
		return "burst"
	case Delay:
		return "delay"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("missed(%d)", int(m))
	}
}

// Interval 周期节拍器
//
// 第一次 Tick 立即返回。
type Interval struct {
	clk      clock.Clock
	period   time.Duration
	next     time.Time
	behavior MissedTickBehavior
}

// NewInterval 创建节拍器，period 必须为正
func NewInterval(clk clock.Clock, period time.Duration) *Interval {
	if period <= 0 {
		panic("rtthread: non-positive interval period")
	}
	return &Interval{
		clk:    clk,
		period: period,
		next:   clk.Now(),
	}
}

// SetMissedTickBehavior 设置漏拍行为
func (i *Interval) SetMissedTickBehavior(b MissedTickBehavior) {
	i.behavior = b
}

// Period 周期
func (i *Interval) Period() time.Duration { return i.period }

// Next 下一拍的计划时刻
func (i *Interval) Next() time.Time { return i.next }

// Reset 从当前时刻起重新计时，下一拍在一个周期后
func (i *Interval) Reset() {
	i.next = i.clk.Now().Add(i.period)
}

// Tick 等待下一拍，返回该拍的计划时刻
func (i *Interval) Tick(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if wait := i.next.Sub(i.clk.Now()); wait > 0 {
		t := i.clk.Timer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return time.Time{}, ctx.Err()
		}
	}

	tick := i.next
	now := i.clk.Now()
	i.next = tick.Add(i.period)
	if now.Before(i.next) {
		return tick, nil
	}

	// 已经落后至少一拍
	switch i.behavior {
	case Delay:
		i.next = now.Add(i.period)
	case Skip:
		behind := now.Sub(tick)
		i.next = tick.Add((behind/i.period + 1) * i.period)
	}
	return tick, nil
}
