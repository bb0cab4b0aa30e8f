package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-rtsync/internal/core/pchannel"
)

// AsyncClient 协作式订阅者句柄
//
// 与 Client 共享分发路径，只是接收端在 context 上等待，
// 适合在少量 goroutine 上复用大量订阅者的场景。
type AsyncClient[T any] struct {
	hub  *Hub[T]
	sub  *subscription[T]
	rx   *pchannel.AsyncReceiver[T]
	once sync.Once
}

// ID 订阅 ID
func (c *AsyncClient[T]) ID() uuid.UUID { return c.sub.id }

// Name 订阅者名称
func (c *AsyncClient[T]) Name() string { return c.sub.name }

// Recv 等待下一帧，ctx 取消或超时时返回
func (c *AsyncClient[T]) Recv(ctx context.Context) (T, error) { return c.rx.Recv(ctx) }

// TryRecv 非阻塞接收
func (c *AsyncClient[T]) TryRecv() (T, error) { return c.rx.TryRecv() }

// Len 待接收帧数
func (c *AsyncClient[T]) Len() int { return c.rx.Len() }

// Publish 通过所属 Hub 发布帧
func (c *AsyncClient[T]) Publish(frame T) error { return c.hub.Publish(frame) }

// PublishChecked 通过所属 Hub 发布帧，失败的订阅者回调 onError
func (c *AsyncClient[T]) PublishChecked(frame T, onError func(name string, err error) bool) error {
	return c.hub.PublishChecked(frame, onError)
}

// Stats 订阅通道统计
func (c *AsyncClient[T]) Stats() pchannel.Stats { return c.rx.Stats() }

// Missed 因通道满错过的帧数
func (c *AsyncClient[T]) Missed() uint64 { return c.sub.missed.Load() }

// Close 注销订阅，可重复调用
func (c *AsyncClient[T]) Close() error {
	c.once.Do(func() {
		c.hub.unsubscribe(c.sub.id)
		_ = c.rx.Close()
	})
	return nil
}
