package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dep2p/go-rtsync/internal/core/databuf"
	"github.com/dep2p/go-rtsync/internal/core/hub"
	"github.com/dep2p/go-rtsync/internal/core/pchannel"
	"github.com/dep2p/go-rtsync/internal/core/supervisor"
	"github.com/dep2p/go-rtsync/pkg/types"
)

// ============================================================================
// 数据源接口
// ============================================================================

// ChannelSource 通道统计数据源，所有通道句柄都实现该接口
type ChannelSource interface {
	Stats() pchannel.Stats
}

// BufferSource 缓冲区统计数据源
type BufferSource interface {
	Stats() databuf.Stats
}

// HubSource Hub 统计数据源
type HubSource interface {
	Stats() hub.Stats
}

// WorkerSource 工作线程数据源
type WorkerSource interface {
	Workers() []supervisor.WorkerInfo
	Panics() []*supervisor.WorkerPanicked
}

var _ WorkerSource = (*supervisor.Supervisor)(nil)

// ============================================================================
// Registry
// ============================================================================

// Registry 按名称登记的统计数据源
//
// 只在采集时读取数据源，不进入 Send/Recv/Publish 热路径。
type Registry struct {
	mu       sync.RWMutex
	channels map[string]ChannelSource
	buffers  map[string]BufferSource
	hubs     map[string]HubSource
	workers  map[string]WorkerSource
}

// NewRegistry 创建数据源注册表
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]ChannelSource),
		buffers:  make(map[string]BufferSource),
		hubs:     make(map[string]HubSource),
		workers:  make(map[string]WorkerSource),
	}
}

// AddChannel 登记通道
func (r *Registry) AddChannel(name string, src ChannelSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addSource(r.channels, "channel", name, src)
}

// AddBuffer 登记缓冲区
func (r *Registry) AddBuffer(name string, src BufferSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addSource(r.buffers, "buffer", name, src)
}

// AddHub 登记 Hub
func (r *Registry) AddHub(name string, src HubSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addSource(r.hubs, "hub", name, src)
}

// AddSupervisor 登记监督器
func (r *Registry) AddSupervisor(name string, src WorkerSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addSource(r.workers, "supervisor", name, src)
}

// Remove 移除所有类别中同名的数据源
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, name)
	delete(r.buffers, name)
	delete(r.hubs, name)
	delete(r.workers, name)
}

// Len 登记的数据源总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels) + len(r.buffers) + len(r.hubs) + len(r.workers)
}

func addSource[S any](m map[string]S, kind, name string, src S) error {
	if name == "" {
		return fmt.Errorf("%s source without name: %w", kind, types.ErrInvalidConfig)
	}
	if _, ok := m[name]; ok {
		return fmt.Errorf("%s %q: %w", kind, name, types.ErrDuplicateName)
	}
	m[name] = src
	return nil
}

// ============================================================================
// 读取
// ============================================================================

type named[S any] struct {
	name string
	src  S
}

// sorted 按名称排序的快照，调用方在锁外读取数据源
func sorted[S any](m map[string]S) []named[S] {
	out := make([]named[S], 0, len(m))
	for name, src := range m {
		out = append(out, named[S]{name: name, src: src})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Registry) snapshot() (
	[]named[ChannelSource], []named[BufferSource], []named[HubSource], []named[WorkerSource],
) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.channels), sorted(r.buffers), sorted(r.hubs), sorted(r.workers)
}
