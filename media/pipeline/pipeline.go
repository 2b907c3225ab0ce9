package pipeline

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/utils"
)

// Role 节点在图中的位置
type Role int

const (
	RoleSource Role = iota + 1
	RoleStage
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleStage:
		return "stage"
	case RoleSink:
		return "sink"
	}
	return "unknown"
}

// Node 管线节点. Stop必须幂等且之后不再emit, Release不论是否Stop过都可以调用
type Node interface {
	Name() string
	Role() Role
	Start() error
	Pause()
	Resume()
	Stop()
	Release()
}

var ErrPadNotConnected = errors.New("pipeline: pad not connected")

// Pad 单消费者输出口. Emit在调用者的goroutine上同步执行下游, 没有队列
type Pad[T any] struct {
	mu       sync.RWMutex
	consumer func(T) error
}

// Connect 已连接时返回错误
func (p *Pad[T]) Connect(consumer func(T) error) error {
	if consumer == nil {
		return errors.New("pipeline: nil consumer")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumer != nil {
		return errors.New("pipeline: pad already connected")
	}
	p.consumer = consumer
	return nil
}

// Disconnect ...
func (p *Pad[T]) Disconnect() {
	p.mu.Lock()
	p.consumer = nil
	p.mu.Unlock()
}

// Connected ...
func (p *Pad[T]) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.consumer != nil
}

// Emit 慢消费者会直接阻塞生产者
func (p *Pad[T]) Emit(v T) error {
	p.mu.RLock()
	consumer := p.consumer
	p.mu.RUnlock()
	if consumer == nil {
		return ErrPadNotConnected
	}
	return consumer(v)
}

// Pipeline 节点集合, 生命周期调用按添加顺序分发给所有节点
type Pipeline struct {
	mu    sync.Mutex
	nodes []Node
}

func New(nodes ...Node) *Pipeline {
	return &Pipeline{nodes: nodes}
}

// Add ...
func (p *Pipeline) Add(nodes ...Node) {
	p.mu.Lock()
	p.nodes = append(p.nodes, nodes...)
	p.mu.Unlock()
}

// Nodes 返回副本
func (p *Pipeline) Nodes() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Node(nil), p.nodes...)
}

// IsEmpty ...
func (p *Pipeline) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes) == 0
}

// Start 任一节点失败时停掉已启动的节点
func (p *Pipeline) Start() error {
	nodes := p.Nodes()
	for i, n := range nodes {
		if err := n.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				nodes[j].Stop()
			}
			return errors.Wrapf(err, "pipeline: start %s", n.Name())
		}
	}
	return nil
}

func (p *Pipeline) Pause() {
	for _, n := range p.Nodes() {
		n.Pause()
	}
}

func (p *Pipeline) Resume() {
	for _, n := range p.Nodes() {
		n.Resume()
	}
}

func (p *Pipeline) Stop() {
	for _, n := range p.Nodes() {
		n.Stop()
	}
}

// Release 单个节点panic不影响其他节点
func (p *Pipeline) Release() {
	for _, n := range p.Nodes() {
		release(n)
	}
}

// Shutdown 先Stop再Release每个节点
func (p *Pipeline) Shutdown() {
	p.Stop()
	p.Release()
	log.Debug().Int("nodes", len(p.Nodes())).Msg("pipeline shutdown")
}

func release(n Node) {
	defer utils.PanicRecoverWithInfo("pipeline release " + n.Name())
	n.Release()
}
