package pchannel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-rtsync/internal/core/locking"
	"github.com/dep2p/go-rtsync/pkg/types"
)

type reading struct {
	id   int
	prio types.Priority
}

func (r reading) Priority() types.Priority { return r.prio }

type telemetry struct{ v int }

func (telemetry) DeliveryPolicy() types.Policy { return types.PolicyOptional }

// ============================================================================
// 构造
// ============================================================================

func TestNew_InvalidOptions(t *testing.T) {
	_, _, err := New[int](WithCapacity(-1))
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, _, err = New[int](WithPolicy(types.Policy(99)))
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, _, err = NewAsync[int](WithClock(nil))
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

// ============================================================================
// 基础收发
// ============================================================================

func TestChannel_SendRecv(t *testing.T) {
	tx, rx, err := New[int](WithCapacity(4), WithName("basic"))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, tx.Send(i))
	}
	assert.Equal(t, 3, tx.Len())
	assert.False(t, tx.IsFull())

	for i := 1; i <= 3; i++ {
		v, err := rx.Recv()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, rx.IsEmpty())

	st := rx.Stats()
	assert.Equal(t, "basic", st.Name)
	assert.Equal(t, uint64(3), st.Sent)
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, 4, st.Cap)
}

func TestChannel_TryRecvEmpty(t *testing.T) {
	_, rx, err := New[int]()
	require.NoError(t, err)

	_, err = rx.TryRecv()
	assert.ErrorIs(t, err, types.ErrEmpty)
}

func TestChannel_ChannelDefaultPriority(t *testing.T) {
	tx, rx, err := New[int](WithPriority(3))
	require.NoError(t, err)

	require.NoError(t, tx.Send(1))
	require.NoError(t, tx.Send(2, SendPriority(7)))
	require.NoError(t, tx.Send(3, SendPriority(0)))

	var got []int
	for i := 0; i < 3; i++ {
		v, err := rx.TryRecv()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 1, 3}, got)
}

// ============================================================================
// 策略
// ============================================================================

// TestChannel_AlwaysBlocksUntilRecv Always 满时阻塞，直到接收释放空间
func TestChannel_AlwaysBlocksUntilRecv(t *testing.T) {
	tx, rx, err := New[int](WithCapacity(1))
	require.NoError(t, err)
	require.NoError(t, tx.Send(1))

	done := make(chan error, 1)
	go func() { done <- tx.Send(2) }()

	select {
	case err := <-done:
		t.Fatalf("Send returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Send not unblocked by Recv")
	}

	v, err = rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 2, v, "payload must not be dropped")
}

// TestChannel_AlwaysBlockedThenClosed 阻塞中的 Always 发送在关闭时返回 ErrClosed
func TestChannel_AlwaysBlockedThenClosed(t *testing.T) {
	tx, _, err := New[int](WithCapacity(1))
	require.NoError(t, err)
	require.NoError(t, tx.Send(1))

	done := make(chan error, 1)
	go func() { done <- tx.Send(2) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, tx.CloseChannel())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Send not woken by close")
	}
}

func TestChannel_TrySendAlwaysFull(t *testing.T) {
	tx, _, err := New[int](WithCapacity(1))
	require.NoError(t, err)
	require.NoError(t, tx.TrySend(1))
	assert.ErrorIs(t, tx.TrySend(2), types.ErrFull)
	assert.True(t, tx.IsFull())
}

func TestChannel_SendTimeout(t *testing.T) {
	tx, _, err := New[int](WithCapacity(1))
	require.NoError(t, err)
	require.NoError(t, tx.Send(1))

	err = tx.SendTimeout(2, 20*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Equal(t, 1, tx.Len())
}

func TestChannel_OptionalNeverBlocks(t *testing.T) {
	tx, rx, err := New[int](WithCapacity(2), WithPolicy(types.PolicyOptional))
	require.NoError(t, err)

	require.NoError(t, tx.Send(1))
	require.NoError(t, tx.Send(2))
	assert.ErrorIs(t, tx.Send(3), types.ErrFull)
	assert.Equal(t, uint64(1), rx.Stats().Dropped)
}

func TestChannel_PayloadPolicy(t *testing.T) {
	tx, rx, err := New[telemetry](WithCapacity(1))
	require.NoError(t, err)

	require.NoError(t, tx.Send(telemetry{1}))
	// 负载声明 Optional，满时不阻塞
	assert.ErrorIs(t, tx.Send(telemetry{2}), types.ErrFull)
	// 发送选项覆盖负载策略：Always 驱逐尽力而为的条目
	require.NoError(t, tx.TrySend(telemetry{3}, SendPolicy(types.PolicyAlways)))
	assert.Equal(t, uint64(1), tx.Stats().Evicted)
	assert.Equal(t, 1, rx.Len())

	// 唯一的条目是 Always 时，Always 发送需要等待
	assert.ErrorIs(t, tx.TrySend(telemetry{4}, SendPolicy(types.PolicyAlways)), types.ErrFull)
	assert.ErrorIs(t, tx.SendTimeout(telemetry{5}, 10*time.Millisecond, SendPolicy(types.PolicyAlways)), types.ErrTimeout)

	v, err := rx.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, telemetry{3}, v)
}

func TestChannel_UncomparableKind(t *testing.T) {
	tx, rx, err := New[int](WithPolicy(types.PolicySingle))
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Send(1, SendKind(map[string]int{})), types.ErrInvalidConfig)
	assert.True(t, rx.IsEmpty())
	assert.Equal(t, uint64(1), rx.Stats().Dropped)
}

func TestChannel_LatestReplaces(t *testing.T) {
	tx, rx, err := New[int](WithCapacity(2), WithPolicy(types.PolicyLatest))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, tx.Send(i, SendKind(i)))
	}
	v1, _ := rx.TryRecv()
	v2, _ := rx.TryRecv()
	assert.Equal(t, []int{8, 9}, []int{v1, v2})
	assert.Equal(t, uint64(8), rx.Stats().Evicted)
}

func TestChannel_SingleCollapses(t *testing.T) {
	tx, rx, err := New[string](WithPolicy(types.PolicySingle))
	require.NoError(t, err)

	require.NoError(t, tx.Send("setpoint=1", SendKind("setpoint")))
	require.NoError(t, tx.Send("setpoint=2", SendKind("setpoint")))
	require.NoError(t, tx.Send("mode=auto", SendKind("mode")))

	assert.Equal(t, 2, rx.Len())
	v, err := rx.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "setpoint=2", v)
	assert.Equal(t, uint64(1), rx.Stats().Replaced)
}

// ============================================================================
// 超时与过期
// ============================================================================

// TestChannel_RecvTimeoutKeepsEntry 超时不影响随后到达的条目
func TestChannel_RecvTimeoutKeepsEntry(t *testing.T) {
	tx, rx, err := New[int]()
	require.NoError(t, err)

	_, err = rx.RecvTimeout(20 * time.Millisecond)
	assert.ErrorIs(t, err, types.ErrTimeout)

	require.NoError(t, tx.Send(42))
	v, err := rx.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestChannel_RecvTimeoutMockClock(t *testing.T) {
	mock := clock.NewMock()
	_, rx, err := New[int](WithClock(mock))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := rx.RecvTimeout(time.Second)
		done <- err
	}()

	// 等待计时器注册后推进时钟
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case err := <-done:
			assert.ErrorIs(t, err, types.ErrTimeout)
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestChannel_TTLExpiry(t *testing.T) {
	mock := clock.NewMock()
	tx, rx, err := New[int](WithClock(mock))
	require.NoError(t, err)

	require.NoError(t, tx.Send(1, SendTTL(time.Second)))
	require.NoError(t, tx.Send(2, SendDeadline(mock.Now().Add(time.Hour))))

	mock.Add(2 * time.Second)
	v, err := rx.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = rx.TryRecv()
	assert.ErrorIs(t, err, types.ErrEmpty)
	assert.Equal(t, uint64(1), rx.Stats().Expired)

	// 发送时已过期
	require.NoError(t, tx.Send(3, SendDeadline(mock.Now())))
	assert.Equal(t, 0, rx.Len())
	assert.Equal(t, uint64(2), rx.Stats().Expired)
}

// ============================================================================
// 关闭与句柄
// ============================================================================

// TestChannel_DrainAfterSendersClosed 发送端全部关闭后接收端先取完剩余条目
func TestChannel_DrainAfterSendersClosed(t *testing.T) {
	tx, rx, err := New[int]()
	require.NoError(t, err)
	tx2 := tx.Clone()

	require.NoError(t, tx.Send(1))
	require.NoError(t, tx2.Send(2))
	require.NoError(t, tx.Close())
	assert.True(t, rx.IsAlive(), "one sender still open")
	require.NoError(t, tx2.Close())
	require.NoError(t, tx2.Close())

	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = rx.Recv()
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.False(t, rx.IsAlive())
}

func TestChannel_RecvWokenBySenderClose(t *testing.T) {
	tx, rx, err := New[int]()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tx.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv not woken")
	}
}

func TestChannel_SendWithoutReceivers(t *testing.T) {
	tx, rx, err := New[int]()
	require.NoError(t, err)
	rx2 := rx.Clone()

	require.NoError(t, rx.Close())
	require.NoError(t, tx.Send(1))
	assert.True(t, tx.IsAlive())

	require.NoError(t, rx2.Close())
	assert.ErrorIs(t, tx.Send(2), types.ErrClosed)
	assert.False(t, tx.IsAlive())

	_, err = rx2.TryRecv()
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestChannel_ClonedClosedHandle(t *testing.T) {
	tx, _, err := New[int]()
	require.NoError(t, err)
	require.NoError(t, tx.Close())

	c := tx.Clone()
	assert.ErrorIs(t, c.Send(1), types.ErrClosed)
	assert.False(t, c.IsAlive())
}

// ============================================================================
// 并发
// ============================================================================

// TestChannel_PriorityEndToEnd 两个生产者并发发送优先级 5 与 1，消费者先收到 5
func TestChannel_PriorityEndToEnd(t *testing.T) {
	for i := 0; i < 20; i++ {
		tx, rx, err := New[reading](WithCapacity(2))
		require.NoError(t, err)

		var g errgroup.Group
		for _, p := range []types.Priority{1, 5} {
			tx := tx.Clone()
			g.Go(func() error {
				defer tx.Close()
				return tx.Send(reading{id: int(p), prio: p})
			})
		}
		require.NoError(t, g.Wait())

		first, err := rx.Recv()
		require.NoError(t, err)
		second, err := rx.Recv()
		require.NoError(t, err)
		assert.Equal(t, types.Priority(5), first.prio)
		assert.Equal(t, types.Priority(1), second.prio)
	}
}

// TestChannel_MPMC 多生产者多消费者，每个条目恰好交付一次
func TestChannel_MPMC(t *testing.T) {
	for _, kind := range []locking.Kind{locking.KindDefault, locking.KindPriorityInheritance} {
		t.Run(kind.String(), func(t *testing.T) {
			const (
				producers = 4
				consumers = 3
				perProd   = 500
			)
			tx, rx, err := New[int](WithCapacity(8), WithLock(kind))
			require.NoError(t, err)

			var producersG errgroup.Group
			for p := 0; p < producers; p++ {
				tx := tx.Clone()
				base := p * perProd
				producersG.Go(func() error {
					defer tx.Close()
					for i := 0; i < perProd; i++ {
						if err := tx.Send(base + i); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, tx.Close())

			var (
				mu    sync.Mutex
				seen  = make(map[int]int)
				total atomic.Int64
				wg    sync.WaitGroup
			)
			wg.Add(consumers)
			for c := 0; c < consumers; c++ {
				rx := rx.Clone()
				go func() {
					defer wg.Done()
					defer rx.Close()
					for {
						v, err := rx.Recv()
						if err != nil {
							return
						}
						mu.Lock()
						seen[v]++
						mu.Unlock()
						total.Add(1)
					}
				}()
			}

			require.NoError(t, producersG.Wait())
			wg.Wait()

			assert.Equal(t, int64(producers*perProd), total.Load())
			for v, n := range seen {
				require.Equal(t, 1, n, "value %d delivered %d times", v, n)
			}
		})
	}
}

// ============================================================================
// 协作式前端
// ============================================================================

func TestAsync_SendRecv(t *testing.T) {
	tx, rx, err := NewAsync[int](WithCapacity(1))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tx.Send(ctx, 1))

	done := make(chan error, 1)
	go func() { done <- tx.Send(ctx, 2) }()

	v, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, <-done)

	v, err = rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAsync_Cancellation(t *testing.T) {
	tx, rx, err := NewAsync[int](WithCapacity(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	tctx, tcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer tcancel()
	_, err = rx.Recv(tctx)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 已就绪时不受已取消 ctx 影响
	require.NoError(t, tx.TrySend(7))
	v, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestAsync_CloseWakesWaiters(t *testing.T) {
	tx, rx, err := NewAsync[int]()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tx.CloseChannel())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv not woken")
	}
	assert.False(t, tx.IsAlive())
}

// ============================================================================
// 等待队列
// ============================================================================

func TestWaitq(t *testing.T) {
	var q waitq
	a, b, c := q.push(), q.push(), q.push()
	assert.Equal(t, 3, q.len())

	assert.True(t, q.remove(b))
	assert.False(t, q.remove(b))

	q.wakeOne()
	select {
	case <-a.ch:
	default:
		t.Fatal("first waiter not woken")
	}
	assert.False(t, q.remove(a), "woken waiter is no longer queued")

	q.wakeAll()
	<-c.ch
	assert.Equal(t, 0, q.len())
}
