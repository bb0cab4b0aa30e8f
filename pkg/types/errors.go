// Package types 定义 rtsync 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              通道相关错误
// ============================================================================
//
// ErrFull / ErrTimeout / ErrClosed / ErrEmpty 是预期内的可恢复结果，
// 核心组件不会把它们当作失败记录日志。

var (
	// ErrFull 策略拒绝了插入（不阻塞）
	ErrFull = errors.New("channel full")

	// ErrClosed 通道已关闭或对端已全部释放
	ErrClosed = errors.New("channel closed")

	// ErrTimeout 接收超时
	ErrTimeout = errors.New("timed out")

	// ErrEmpty 非阻塞接收时通道为空
	ErrEmpty = errors.New("channel empty")
)

// ============================================================================
//                              注册相关错误
// ============================================================================

var (
	// ErrDuplicateName 名称已被存活的对象占用
	ErrDuplicateName = errors.New("duplicate name")

	// ErrNotFound 名称未注册
	ErrNotFound = errors.New("not found")

	// ErrJoinTimeout 等待工作线程退出超时
	ErrJoinTimeout = errors.New("join deadline exceeded")
)

// ============================================================================
//                              配置相关错误
// ============================================================================

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid config")
)
