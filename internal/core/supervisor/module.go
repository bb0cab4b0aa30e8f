package supervisor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// DefaultJoinTimeout 应用停止时等待工作线程的默认时长
const DefaultJoinTimeout = 5 * time.Second

// ModuleParams 模块参数
type ModuleParams struct {
	JoinTimeout time.Duration
	Options     []Option
}

// Module 返回提供 *Supervisor 的 Fx 模块
//
// 应用停止时请求所有工作线程停止并等待 joinTimeout。
// 超时只记录日志，不阻止应用退出。
func Module(joinTimeout time.Duration, opts ...Option) fx.Option {
	return fx.Module(ModuleName,
		fx.Supply(ModuleParams{JoinTimeout: joinTimeout, Options: opts}),
		fx.Provide(ProvideSupervisor),
	)
}

// supervisorParams 依赖参数
type supervisorParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Params    ModuleParams
}

// ProvideSupervisor 创建监督器并注册停止钩子
func ProvideSupervisor(p supervisorParams) *Supervisor {
	s := New(p.Params.Options...)
	timeout := p.Params.JoinTimeout
	if timeout <= 0 {
		timeout = DefaultJoinTimeout
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			s.RequestStopAll()
			report, err := s.Join(timeout)
			if err != nil && !errors.Is(err, types.ErrJoinTimeout) {
				return err
			}
			if rerr := report.Err(); rerr != nil {
				logger.Warn("工作线程结束时存在错误", "error", rerr)
			}
			return nil
		},
	})
	return s
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// ModuleName 模块名称
	ModuleName = "supervisor"
	// Description 模块描述
	Description = "实时工作线程注册、状态跟踪与协作式关闭"
)
