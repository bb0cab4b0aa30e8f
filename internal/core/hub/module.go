package hub

import (
	"context"

	"go.uber.org/fx"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Module 返回提供 *Hub[T] 的 Fx 模块
//
// Hub 在应用停止时关闭。
func Module[T any](opts ...Option) fx.Option {
	return fx.Module("hub",
		fx.Provide(func(lc fx.Lifecycle) *Hub[T] {
			return ProvideHub[T](lc, opts...)
		}),
	)
}

// ProvideHub 创建 Hub 并注册生命周期
func ProvideHub[T any](lc fx.Lifecycle, opts ...Option) *Hub[T] {
	h := New[T](opts...)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return h.Close()
		},
	})
	return h
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// ModuleName 模块名称
	ModuleName = "hub"
	// Description 模块描述
	Description = "进程内发布/订阅路由，每个订阅者独立的策略通道"
)
