package hub

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-rtsync/internal/core/pchannel"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
	"github.com/dep2p/go-rtsync/pkg/types"
)

var logger = log.Logger("core/hub")

// ============================================================================
// 订阅
// ============================================================================

// subscription 单个订阅者
type subscription[T any] struct {
	id       uuid.UUID
	name     string
	policy   types.Policy
	priority int
	types    []reflect.Type
	match    func(T) bool

	tx       outbox[T]
	sendOpts []pchannel.SendOption

	delivered atomic.Uint64
	missed    atomic.Uint64
}

// outbox 订阅通道的发送端，同步与协作两种通道都满足
type outbox[T any] interface {
	TrySend(v T, opts ...pchannel.SendOption) error
	Len() int
	CloseChannel() error
	Close() error
}

// accepts 判断帧是否通过订阅过滤
func (s *subscription[T]) accepts(ft reflect.Type, frame T) bool {
	if len(s.types) > 0 && !typeMatches(s.types, ft) {
		return false
	}
	return s.match == nil || s.match(frame)
}

func typeMatches(ts []reflect.Type, ft reflect.Type) bool {
	if ft == nil {
		return false
	}
	for _, t := range ts {
		if t == ft || (t.Kind() == reflect.Interface && ft.Implements(t)) {
			return true
		}
	}
	return false
}

// label 日志与错误中使用的订阅者标识
func (s *subscription[T]) label() string {
	if s.name != "" {
		return s.name
	}
	return s.id.String()
}

// SubscriberInfo 订阅者信息快照
type SubscriberInfo struct {
	ID        uuid.UUID
	Name      string
	Policy    types.Policy
	Priority  int
	Len       int
	Delivered uint64
	Missed    uint64
}

// Stats Hub 统计
type Stats struct {
	Published   uint64
	Subscribers int
	Delivered   uint64
	Missed      uint64
}

// ============================================================================
// Hub 实现
// ============================================================================

// Hub 进程内发布/订阅路由
//
// Hub 没有自己的线程，Publish 在调用方的栈上完成扇出。
// 每个订阅者持有独立的策略通道，慢订阅者不会阻塞发布方和其它订阅者。
type Hub[T any] struct {
	cfg settings

	// mu 保护订阅注册表变更，发布路径只读取快照
	mu    sync.Mutex
	names map[string]uuid.UUID
	subs  atomic.Pointer[[]*subscription[T]]

	closed atomic.Bool

	published atomic.Uint64
	missed    atomic.Uint64 // 已退订者的累计丢帧

	slowWarn rate.Sometimes
}

// New 创建 Hub
func New[T any](opts ...Option) *Hub[T] {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &Hub[T]{
		cfg:      cfg,
		names:    make(map[string]uuid.UUID),
		slowWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	empty := make([]*subscription[T], 0)
	h.subs.Store(&empty)
	return h
}

// Subscribe 注册订阅者，返回阻塞式客户端
func (h *Hub[T]) Subscribe(opts ...SubscribeOption) (*Client[T], error) {
	var rx *pchannel.Receiver[T]
	sub, err := h.register(opts, func(chOpts []pchannel.Option) (outbox[T], error) {
		tx, r, err := pchannel.New[T](chOpts...)
		if err != nil {
			return nil, err
		}
		rx = r
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return &Client[T]{hub: h, sub: sub, rx: rx}, nil
}

// SubscribeAsync 注册订阅者，返回以 context 等待的客户端
func (h *Hub[T]) SubscribeAsync(opts ...SubscribeOption) (*AsyncClient[T], error) {
	var rx *pchannel.AsyncReceiver[T]
	sub, err := h.register(opts, func(chOpts []pchannel.Option) (outbox[T], error) {
		tx, r, err := pchannel.NewAsync[T](chOpts...)
		if err != nil {
			return nil, err
		}
		rx = r
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return &AsyncClient[T]{hub: h, sub: sub, rx: rx}, nil
}

// register 解析订阅选项，创建订阅通道并加入注册表
func (h *Hub[T]) register(opts []SubscribeOption, open func([]pchannel.Option) (outbox[T], error)) (*subscription[T], error) {
	s := subSettings{
		policy:   h.cfg.policy,
		capacity: h.cfg.capacity,
		priority: DefaultSubscriberPriority,
	}
	for _, opt := range opts {
		opt(&s)
	}

	var match func(T) bool
	if s.match != nil {
		fn, ok := s.match.(func(T) bool)
		if !ok {
			return nil, fmt.Errorf("%w: match predicate %T does not accept %s",
				types.ErrInvalidConfig, s.match, reflect.TypeOf((*T)(nil)).Elem())
		}
		match = fn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return nil, types.ErrClosed
	}
	if s.name != "" {
		if _, exists := h.names[s.name]; exists {
			return nil, fmt.Errorf("subscriber %q: %w", s.name, types.ErrDuplicateName)
		}
	}

	id := uuid.New()
	chName := s.name
	if chName == "" {
		chName = id.String()
	}
	tx, err := open([]pchannel.Option{
		pchannel.WithCapacity(s.capacity),
		pchannel.WithPolicy(s.policy),
		pchannel.WithLock(h.cfg.lock),
		pchannel.WithClock(h.cfg.clock),
		pchannel.WithName(chName),
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	sub := &subscription[T]{
		id:       id,
		name:     s.name,
		policy:   s.policy,
		priority: s.priority,
		types:    s.types,
		match:    match,
		tx:       tx,
		sendOpts: []pchannel.SendOption{pchannel.SendPolicy(s.policy)},
	}

	cur := *h.subs.Load()
	next := make([]*subscription[T], 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, sub)
	sort.SliceStable(next, func(i, j int) bool { return next[i].priority > next[j].priority })
	h.subs.Store(&next)
	if s.name != "" {
		h.names[s.name] = id
	}

	logger.Debug("订阅者已注册", "name", sub.label(), "policy", s.policy, "capacity", s.capacity)
	return sub, nil
}

// Publish 向所有匹配的订阅者投递帧
//
// 每个订阅者使用非阻塞准入：满的订阅者错过该帧并计数，发布方永不阻塞。
func (h *Hub[T]) Publish(frame T) error {
	return h.publish(frame, nil)
}

// PublishChecked 投递帧，每个失败的订阅者回调 onError
//
// onError 返回 false 时中止剩余投递并返回该错误。
func (h *Hub[T]) PublishChecked(frame T, onError func(name string, err error) bool) error {
	return h.publish(frame, onError)
}

func (h *Hub[T]) publish(frame T, onError func(string, error) bool) error {
	if h.closed.Load() {
		return types.ErrClosed
	}
	h.published.Add(1)

	subs := *h.subs.Load()
	ft := reflect.TypeOf(any(frame))

	// 过滤器每帧只求值一次
	var buf [16]*subscription[T]
	matched := buf[:0]
	for _, s := range subs {
		if s.accepts(ft, frame) {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	// 最后一个匹配者直接接收原帧，其余接收克隆
	cloner, canClone := any(frame).(types.Cloner[T])
	last := len(matched) - 1

	for i, s := range matched {
		v := frame
		if canClone && i != last {
			v = cloner.Clone()
		}

		err := s.tx.TrySend(v, s.sendOpts...)
		switch {
		case err == nil:
			s.delivered.Add(1)
			continue
		case errors.Is(err, types.ErrFull):
			s.missed.Add(1)
			if !s.policy.IsOptional() {
				h.slowWarn.Do(func() {
					logger.Warn("慢消费者检测",
						"subscriber", s.label(),
						"policy", s.policy,
						"missed", s.missed.Load(),
						"reason", "subscriber channel full")
				})
			}
		case errors.Is(err, types.ErrClosed):
			// 接收端已释放，移除订阅
			h.unsubscribe(s.id)
		}

		if onError != nil && !onError(s.label(), err) {
			return fmt.Errorf("publish to %q: %w", s.label(), err)
		}
	}
	return nil
}

// unsubscribe 从注册表移除订阅并关闭其通道
func (h *Hub[T]) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := *h.subs.Load()
	idx := -1
	for i, s := range cur {
		if s.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sub := cur[idx]
	next := make([]*subscription[T], 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	h.subs.Store(&next)
	if sub.name != "" {
		delete(h.names, sub.name)
	}
	h.missed.Add(sub.missed.Load())

	_ = sub.tx.CloseChannel()
	_ = sub.tx.Close()
	logger.Debug("订阅者已注销", "name", sub.label())
}

// Subscribers 返回订阅者信息，按分发顺序排列
func (h *Hub[T]) Subscribers() []SubscriberInfo {
	subs := *h.subs.Load()
	out := make([]SubscriberInfo, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubscriberInfo{
			ID:        s.id,
			Name:      s.name,
			Policy:    s.policy,
			Priority:  s.priority,
			Len:       s.tx.Len(),
			Delivered: s.delivered.Load(),
			Missed:    s.missed.Load(),
		})
	}
	return out
}

// Len 订阅者数量
func (h *Hub[T]) Len() int {
	return len(*h.subs.Load())
}

// Stats 统计快照
func (h *Hub[T]) Stats() Stats {
	subs := *h.subs.Load()
	st := Stats{
		Published:   h.published.Load(),
		Subscribers: len(subs),
		Missed:      h.missed.Load(),
	}
	for _, s := range subs {
		st.Delivered += s.delivered.Load()
		st.Missed += s.missed.Load()
	}
	return st
}

// Close 关闭 Hub，关闭所有订阅通道
//
// 订阅者仍可取完剩余帧，随后得到 ErrClosed。
func (h *Hub[T]) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := *h.subs.Load()
	for _, s := range cur {
		_ = s.tx.CloseChannel()
		_ = s.tx.Close()
	}
	empty := make([]*subscription[T], 0)
	h.subs.Store(&empty)
	clear(h.names)

	logger.Debug("Hub 已关闭", "subscribers", len(cur))
	return nil
}

// IsClosed 是否已关闭
func (h *Hub[T]) IsClosed() bool {
	return h.closed.Load()
}
