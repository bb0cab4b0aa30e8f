package rtsync

import (
	"errors"

	"github.com/dep2p/go-rtsync/internal/core/rtthread"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 通道错误（预期内的可恢复结果）
	// ────────────────────────────────────────────────────────────────────────

	// ErrFull 策略拒绝了插入
	ErrFull = types.ErrFull

	// ErrClosed 通道、Hub 或控制器已关闭
	ErrClosed = types.ErrClosed

	// ErrTimeout 等待超时
	ErrTimeout = types.ErrTimeout

	// ErrEmpty 非阻塞接收时通道为空
	ErrEmpty = types.ErrEmpty

	// ────────────────────────────────────────────────────────────────────────
	// 注册与关闭错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrDuplicateName 名称已被存活的工作线程或订阅者占用
	ErrDuplicateName = types.ErrDuplicateName

	// ErrNotFound 名称未注册
	ErrNotFound = types.ErrNotFound

	// ErrJoinTimeout 等待工作线程退出超时
	ErrJoinTimeout = types.ErrJoinTimeout

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = types.ErrInvalidConfig

	// ────────────────────────────────────────────────────────────────────────
	// 调度错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInsufficientPrivilege 没有设置实时调度的权限
	ErrInsufficientPrivilege = rtthread.ErrInsufficientPrivilege

	// ErrInvalidPriority 优先级与调度类不匹配
	ErrInvalidPriority = rtthread.ErrInvalidPriority

	// ErrInvalidAffinity CPU 亲和性无效
	ErrInvalidAffinity = rtthread.ErrInvalidAffinity

	// ErrUnsupported 当前平台不支持所请求的调度参数
	ErrUnsupported = rtthread.ErrUnsupported

	// ErrPanicked 工作线程因 panic 退出
	ErrPanicked = rtthread.ErrPanicked

	// ────────────────────────────────────────────────────────────────────────
	// 控制器错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyStarted 控制器已启动
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrControllerStopped 控制器已关闭
	ErrControllerStopped = errors.New("controller stopped")
)

type (
	// SchedulerError 设置调度参数失败，errors.Is 可匹配调度错误与底层 errno
	SchedulerError = rtthread.SchedulerError

	// WorkerPanicked 工作线程 panic，errors.Is(err, ErrPanicked) 成立
	WorkerPanicked = supervisor.WorkerPanicked
)
