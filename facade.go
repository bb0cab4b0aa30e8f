package rtsync

import (
	"reflect"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rtsync/internal/core/databuf"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/internal/core/pchannel"
	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/internal/core/semaphore"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/internal/core/ttlcell"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              基础类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// Policy 投递策略
	Policy = types.Policy

	// Priority 投递优先级，值越大越先投递
	Priority = types.Priority

	// Scheduling 线程调度类
	Scheduling = types.Scheduling

	// WorkerState 工作线程状态
	WorkerState = types.WorkerState

	// LockKind 通道锁类型
	LockKind = locking.Kind
)

const (
	PolicyAlways         = types.PolicyAlways
	PolicyLatest         = types.PolicyLatest
	PolicyOptional       = types.PolicyOptional
	PolicySingle         = types.PolicySingle
	PolicySingleOptional = types.PolicySingleOptional

	SchedulingOther      = types.SchedulingOther
	SchedulingFIFO       = types.SchedulingFIFO
	SchedulingRoundRobin = types.SchedulingRoundRobin
	SchedulingBatch      = types.SchedulingBatch
	SchedulingIdle       = types.SchedulingIdle

	LockDefault             = locking.KindDefault
	LockPriorityInheritance = locking.KindPriorityInheritance

	WorkerStateStarting = types.WorkerStarting
	WorkerStateRunning  = types.WorkerRunning
	WorkerStateStopping = types.WorkerStopping
	WorkerStateStopped  = types.WorkerStopped
	WorkerStatePanicked = types.WorkerPanicked
)

// ════════════════════════════════════════════════════════════════════════════
//                              策略通道
// ════════════════════════════════════════════════════════════════════════════

type (
	Sender[T any]        = pchannel.Sender[T]
	Receiver[T any]      = pchannel.Receiver[T]
	AsyncSender[T any]   = pchannel.AsyncSender[T]
	AsyncReceiver[T any] = pchannel.AsyncReceiver[T]

	// ChannelOption 通道选项
	ChannelOption = pchannel.Option

	// SendOption 单次发送选项
	SendOption = pchannel.SendOption

	// ChannelStats 通道计数器快照
	ChannelStats = pchannel.Stats
)

// NewChannel 创建阻塞式策略通道
func NewChannel[T any](opts ...ChannelOption) (*Sender[T], *Receiver[T], error) {
	return pchannel.New[T](opts...)
}

// NewAsyncChannel 创建以 context 等待的策略通道
func NewAsyncChannel[T any](opts ...ChannelOption) (*AsyncSender[T], *AsyncReceiver[T], error) {
	return pchannel.NewAsync[T](opts...)
}

// 通道选项
var (
	ChannelCapacity = pchannel.WithCapacity
	ChannelPolicy   = pchannel.WithPolicy
	ChannelPriority = pchannel.WithPriority
	ChannelLock     = pchannel.WithLock
	ChannelName     = pchannel.WithName
	ChannelClock    = pchannel.WithClock
)

// 发送选项
var (
	SendPolicy   = pchannel.SendPolicy
	SendPriority = pchannel.SendPriority
	SendKind     = pchannel.SendKind
	SendDeadline = pchannel.SendDeadline
	SendTTL      = pchannel.SendTTL
)

// ════════════════════════════════════════════════════════════════════════════
//                              数据缓冲区
// ════════════════════════════════════════════════════════════════════════════

type (
	Buffer[T any] = databuf.Buffer[T]

	// BufferOption 缓冲区选项
	BufferOption = databuf.Option

	// BufferStats 缓冲区计数器快照
	BufferStats = databuf.Stats
)

// NewBuffer 创建容量为 capacity 的缓冲区
func NewBuffer[T any](capacity int, opts ...BufferOption) (*Buffer[T], error) {
	return databuf.New[T](capacity, opts...)
}

// 缓冲区选项
var (
	BufferLock = databuf.WithLock
	BufferName = databuf.WithName
)

// ════════════════════════════════════════════════════════════════════════════
//                              信号量
// ════════════════════════════════════════════════════════════════════════════

type (
	Semaphore      = semaphore.Semaphore
	SemaphoreGuard = semaphore.Guard

	// SemaphoreOption 信号量选项
	SemaphoreOption = semaphore.Option
)

// NewSemaphore 创建容量为 capacity 的信号量
func NewSemaphore(capacity int, opts ...SemaphoreOption) (*Semaphore, error) {
	return semaphore.New(capacity, opts...)
}

// 信号量选项
var (
	SemaphoreLock  = semaphore.WithLock
	SemaphoreClock = semaphore.WithClock
)

// ════════════════════════════════════════════════════════════════════════════
//                              Hub
// ════════════════════════════════════════════════════════════════════════════

type (
	Hub[T any]         = hub.Hub[T]
	Client[T any]      = hub.Client[T]
	AsyncClient[T any] = hub.AsyncClient[T]

	// HubOption Hub 选项
	HubOption = hub.Option

	// SubscribeOption 订阅选项
	SubscribeOption = hub.SubscribeOption

	// HubStats Hub 计数器快照
	HubStats = hub.Stats
)

// NewHub 创建 Hub
func NewHub[T any](opts ...HubOption) *Hub[T] {
	return hub.New[T](opts...)
}

// Hub 选项
var (
	HubCapacity = hub.WithCapacity
	HubPolicy   = hub.WithPolicy
	HubLock     = hub.WithLock
	HubClock    = hub.WithClock
)

// 订阅选项
var (
	SubscribeName     = hub.Name
	SubscribePolicy   = hub.Policy
	SubscribeCapacity = hub.Capacity
	SubscribePriority = hub.Priority
)

// SubscribeTypes 只接收指定动态类型的帧
func SubscribeTypes(ts ...reflect.Type) SubscribeOption { return hub.Types(ts...) }

// SubscribeOfType 只接收类型为 F 的帧
func SubscribeOfType[F any]() SubscribeOption { return hub.OfType[F]() }

// SubscribeMatch 只接收满足谓词的帧
func SubscribeMatch[T any](fn func(T) bool) SubscribeOption { return hub.Match[T](fn) }

// ════════════════════════════════════════════════════════════════════════════
//                              实时线程与监督
// ════════════════════════════════════════════════════════════════════════════

type (
	Builder            = rtthread.Builder
	Task               = rtthread.Task
	Params             = rtthread.Params
	PanicInfo          = rtthread.PanicInfo
	Interval           = rtthread.Interval
	MissedTickBehavior = rtthread.MissedTickBehavior

	Supervisor     = supervisor.Supervisor
	WorkerInfo     = supervisor.WorkerInfo
	WorkerEvent    = supervisor.Event
	JoinReport     = supervisor.JoinReport
	TtlCell[T any] = ttlcell.Cell[T]
)

const (
	MissedTickBurst = rtthread.Burst
	MissedTickDelay = rtthread.Delay
	MissedTickSkip  = rtthread.Skip
)

// NewBuilder 创建线程构建器
func NewBuilder(name string) *Builder { return rtthread.NewBuilder(name) }

// NewInterval 创建周期节拍器，clk 为 nil 时使用系统时钟
func NewInterval(clk clock.Clock, period time.Duration) *Interval {
	if clk == nil {
		clk = clock.New()
	}
	return rtthread.NewInterval(clk, period)
}

// SupervisorOption 监督器选项
type SupervisorOption = supervisor.Option

// 监督器选项
var (
	SupervisorSimulated    = supervisor.WithSimulated
	SupervisorClock        = supervisor.WithClock
	SupervisorEventHandler = supervisor.WithEventHandler
)

// NewSupervisor 创建独立使用的监督器
func NewSupervisor(opts ...SupervisorOption) *Supervisor { return supervisor.New(opts...) }

// NewTtlCell 创建 TTL 单元，clk 为 nil 时使用系统时钟
func NewTtlCell[T any](ttl time.Duration, clk clock.Clock) *TtlCell[T] {
	return ttlcell.New[T](ttl, clk)
}

// PriorityInheritanceSupported 当前平台是否提供真正的优先级继承锁
//
// 返回 false 时 LockPriorityInheritance 退化为默认互斥锁。
func PriorityInheritanceSupported() bool { return locking.PISupported() }
