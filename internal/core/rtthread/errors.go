package rtthread

import (
	"errors"
	"fmt"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInsufficientPrivilege 无权设置实时调度（通常需要 CAP_SYS_NICE 或 rtprio 限额）
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	// ErrInvalidPriority 优先级超出调度类的有效范围
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidAffinity CPU 编号不存在
	ErrInvalidAffinity = errors.New("invalid affinity")
	// ErrInvalidName 线程名超过内核限制
	ErrInvalidName = errors.New("invalid thread name")
	// ErrUnsupported 当前平台不支持，请使用模拟模式
	ErrUnsupported = errors.New("scheduling unsupported on this platform")
	// ErrPanicked 线程体发生 panic
	ErrPanicked = errors.New("thread panicked")
)

// ErrorKind 调度错误类别
type ErrorKind int

const (
	// KindInsufficientPrivilege 权限不足
	KindInsufficientPrivilege ErrorKind = iota + 1
	// KindInvalidPriority 优先级无效
	KindInvalidPriority
	// KindInvalidAffinity 亲和性无效
	KindInvalidAffinity
	// KindInvalidName 名称无效
	KindInvalidName
	// KindUnsupported 平台不支持
	KindUnsupported
)

// sentinel 返回类别对应的哨兵错误
func (k ErrorKind) sentinel() error {
	switch k {
	case KindInsufficientPrivilege:
		return ErrInsufficientPrivilege
	case KindInvalidPriority:
		return ErrInvalidPriority
	case KindInvalidAffinity:
		return ErrInvalidAffinity
	case KindInvalidName:
		return ErrInvalidName
	default:
		return ErrUnsupported
	}
}

// String 返回类别名称
func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// SchedulerError 线程调度配置失败
//
// 可用 errors.Is 与对应哨兵错误匹配，也可匹配底层 errno。
type SchedulerError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error 实现 error 接口
func (e *SchedulerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rtthread: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("rtthread: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap 返回哨兵错误与底层错误
func (e *SchedulerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func schedErr(kind ErrorKind, op string, err error) error {
	return &SchedulerError{Kind: kind, Op: op, Err: err}
}
