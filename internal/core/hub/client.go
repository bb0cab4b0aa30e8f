package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-rtsync/internal/core/pchannel"
)

// Client 订阅者句柄
//
// 关闭 Client 会注销订阅并关闭其通道。
type Client[T any] struct {
	hub  *Hub[T]
	sub  *subscription[T]
	rx   *pchannel.Receiver[T]
	once sync.Once
}

// ID 订阅 ID
func (c *Client[T]) ID() uuid.UUID { return c.sub.id }

// Name 订阅者名称
func (c *Client[T]) Name() string { return c.sub.name }

// Recv 阻塞接收
func (c *Client[T]) Recv() (T, error) { return c.rx.Recv() }

// RecvTimeout 带超时接收
func (c *Client[T]) RecvTimeout(d time.Duration) (T, error) { return c.rx.RecvTimeout(d) }

// TryRecv 非阻塞接收
func (c *Client[T]) TryRecv() (T, error) { return c.rx.TryRecv() }

// Len 待接收帧数
func (c *Client[T]) Len() int { return c.rx.Len() }

// Publish 通过所属 Hub 发布帧
func (c *Client[T]) Publish(frame T) error { return c.hub.Publish(frame) }

// Stats 订阅通道统计
func (c *Client[T]) Stats() pchannel.Stats { return c.rx.Stats() }

// Missed 因通道满错过的帧数
func (c *Client[T]) Missed() uint64 { return c.sub.missed.Load() }

// Close 注销订阅，可重复调用
func (c *Client[T]) Close() error {
	c.once.Do(func() {
		c.hub.unsubscribe(c.sub.id)
		_ = c.rx.Close()
	})
	return nil
}
