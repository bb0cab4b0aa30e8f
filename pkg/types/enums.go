package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              Policy - 投递策略
// ============================================================================

// Policy 投递策略
//
// 策略随每次插入携带，而不是绑定在队列上。
// 决定队列满时的行为，以及是否替换同类条目。
type Policy int

const (
	// PolicyAlways 必须投递，队列满时由通道阻塞发送方
	PolicyAlways Policy = iota
	// PolicyLatest 保持最新，队列满时淘汰最旧/最低优先级条目
	PolicyLatest
	// PolicyOptional 尽力投递，队列满时静默丢弃
	PolicyOptional
	// PolicySingle 同类只保留一个待处理条目，不可丢弃
	PolicySingle
	// PolicySingleOptional 同类只保留一个，队列满时静默丢弃
	PolicySingleOptional
)

// String 返回策略的字符串表示
func (p Policy) String() string {
	switch p {
	case PolicyAlways:
		return "always"
	case PolicyLatest:
		return "latest"
	case PolicyOptional:
		return "optional"
	case PolicySingle:
		return "single"
	case PolicySingleOptional:
		return "single-optional"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// IsSingle 是否为单实例策略（Single/SingleOptional）
func (p Policy) IsSingle() bool {
	return p == PolicySingle || p == PolicySingleOptional
}

// IsOptional 是否为可丢弃策略（Optional/SingleOptional）
func (p Policy) IsOptional() bool {
	return p == PolicyOptional || p == PolicySingleOptional
}

// IsValid 是否为已知策略
func (p Policy) IsValid() bool {
	return p >= PolicyAlways && p <= PolicySingleOptional
}

// MarshalText 实现 encoding.TextMarshaler
func (p Policy) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler（同时用于环境变量解析）
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePolicy 解析策略名称
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "":
		return PolicyAlways, nil
	case "latest":
		return PolicyLatest, nil
	case "optional":
		return PolicyOptional, nil
	case "single":
		return PolicySingle, nil
	case "single-optional", "single_optional", "singleoptional":
		return PolicySingleOptional, nil
	default:
		return PolicyAlways, fmt.Errorf("unknown policy %q", s)
	}
}

// ============================================================================
//                              Priority - 优先级
// ============================================================================

// Priority 条目优先级，数值越大越先投递
type Priority uint32

// PriorityLowest 最低优先级（默认值）
const PriorityLowest Priority = 0

// ============================================================================
//                              Scheduling - 调度策略
// ============================================================================

// Scheduling 线程调度策略
//
// 参见 sched(7)。
type Scheduling int

const (
	// SchedulingOther 普通分时调度（SCHED_OTHER）
	SchedulingOther Scheduling = iota
	// SchedulingFIFO 固定优先级先进先出（SCHED_FIFO）
	SchedulingFIFO
	// SchedulingRoundRobin 固定优先级时间片轮转（SCHED_RR）
	SchedulingRoundRobin
	// SchedulingBatch 批处理（SCHED_BATCH）
	SchedulingBatch
	// SchedulingIdle 空闲（SCHED_IDLE）
	SchedulingIdle
)

// String 返回调度策略的字符串表示
func (s Scheduling) String() string {
	switch s {
	case SchedulingOther:
		return "other"
	case SchedulingFIFO:
		return "fifo"
	case SchedulingRoundRobin:
		return "rr"
	case SchedulingBatch:
		return "batch"
	case SchedulingIdle:
		return "idle"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsRealtime 是否为实时调度类（FIFO/RR）
func (s Scheduling) IsRealtime() bool {
	return s == SchedulingFIFO || s == SchedulingRoundRobin
}

// MarshalText 实现 encoding.TextMarshaler
func (s Scheduling) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Scheduling) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "other", "normal", "":
		*s = SchedulingOther
	case "fifo":
		*s = SchedulingFIFO
	case "rr", "roundrobin", "round-robin":
		*s = SchedulingRoundRobin
	case "batch":
		*s = SchedulingBatch
	case "idle":
		*s = SchedulingIdle
	default:
		return fmt.Errorf("unknown scheduling %q", string(text))
	}
	return nil
}

// ============================================================================
//                              WorkerState - 工作线程状态
// ============================================================================

// WorkerState 工作线程生命周期状态
//
// 状态机: Starting -> Running -> {Stopping -> Stopped | Panicked}
type WorkerState int

const (
	// WorkerStarting 已登记，线程尚未开始执行
	WorkerStarting WorkerState = iota
	// WorkerRunning 运行中
	WorkerRunning
	// WorkerStopping 已请求停止，等待线程退出
	WorkerStopping
	// WorkerStopped 已退出
	WorkerStopped
	// WorkerPanicked 因 panic 退出
	WorkerPanicked
)

// String 返回状态的字符串表示
func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	case WorkerPanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// IsFinished 线程是否已结束（Stopped 或 Panicked）
func (s WorkerState) IsFinished() bool {
	return s == WorkerStopped || s == WorkerPanicked
}
