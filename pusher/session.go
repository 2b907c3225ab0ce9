package pusher

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/pipeline"
	"github.com/bugVanisher/avpush/statistics"
	"github.com/bugVanisher/avpush/transport"
	"github.com/bugVanisher/avpush/utils"
)

// Session 一次推流会话: 一条采集管线, 多个传输, 主传输选择和故障转移.
//
// 锁: stateMu 保护会话状态和状态通知; mu 保护传输表和主传输.
// 持有mu时只调用传输的无锁方法(State/Priority/ID/Stats), 传输的状态回调会反过来获取mu.
type Session struct {
	opts Options

	stateMu sync.Mutex
	state   SessionState
	stateV  atomic.Value // SessionState

	mu         sync.RWMutex
	configs    []transport.Config
	transports map[string]*entry
	primaryID  string

	pipe      *pipeline.Pipeline
	node      *pipeline.TransportNode
	audioNode *pipeline.AudioCaptureNode
	videoNode *pipeline.VideoCaptureNode

	startedAt     atomic.Int64
	bytesSent     atomic.Uint64
	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
	flow          *statistics.AVFlow
	quality       atomic.Int32
	statsV        atomic.Value // StreamStats
	statsStop     chan struct{}
}

type entry struct {
	t        transport.Transport
	priority int
	cancel   func()
}

// retrier 传输还在连接或者等待重连
type retrier interface {
	Retrying() bool
}

var _ Pusher = (*Session)(nil)

func NewSession(configs []transport.Config, opt ...Option) *Session {
	opts := DefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	if opts.Advanced.StatsInterval <= 0 {
		opts.Advanced.StatsInterval = DefaultStatsInterval
	}
	if opts.NewTransport == nil {
		opts.NewTransport = transport.New
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	withIDs := make([]transport.Config, 0, len(configs))
	for _, cfg := range configs {
		withIDs = append(withIDs, transport.WithDefaultID(cfg))
	}
	s := &Session{
		opts:       opts,
		configs:    withIDs,
		transports: make(map[string]*entry),
		flow:       statistics.NewAVFlow(),
	}
	s.quality.Store(-1)
	s.stateV.Store(s.state)
	s.statsV.Store(StreamStats{OverallQuality: transport.QualityPoor.String()})
	return s
}

// State 无锁读取
func (s *Session) State() SessionState {
	return s.stateV.Load().(SessionState)
}

// Stats 最近一次刷新的统计
func (s *Session) Stats() StreamStats {
	return s.statsV.Load().(StreamStats)
}

// transition 按迁移表改变状态, 非法迁移返回InvalidState且状态不变
func (s *Session) transition(next SessionStateKind, cause *errs.StreamError) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.transitionLocked(next, cause)
}

func (s *Session) transitionLocked(next SessionStateKind, cause *errs.StreamError) error {
	if !s.state.CanTransitionTo(next) {
		return errs.InvalidState("session: cannot transition from %s to %s", s.state.Kind, next)
	}
	s.setStateLocked(SessionState{Kind: next, Err: cause})
	return nil
}

// setStateLocked 须持有stateMu, 通知在同一临界区内完成
func (s *Session) setStateLocked(next SessionState) {
	prev := s.state
	s.state = next
	s.stateV.Store(next)

	m := s.opts.Metrics
	m.SessionState(next.Kind.String())
	if next.Kind == SessionStreaming {
		m.SessionActive(1)
	} else if prev.Kind == SessionStreaming {
		m.SessionActive(-1)
	}
	log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("[session] state")

	l := s.opts.Listener
	notify(func() { l.OnSessionStateChanged(next) })
	if next.Kind == SessionError && next.Err != nil {
		notify(func() { l.OnError(next.Err) })
	}
}

func notify(fn func()) {
	defer utils.PanicRecoverWithInfo("session listener")
	fn()
}

// fail 转到Error并返回原因
func (s *Session) fail(err error) *errs.StreamError {
	se := errs.From(err)
	if terr := s.transition(SessionError, se); terr != nil {
		log.Warn().Err(terr).Msg("[session] fail")
	}
	return se
}

// Prepare 校验配置, 建立采集管线和传输
func (s *Session) Prepare() error {
	if err := s.transition(SessionPreparing, nil); err != nil {
		return err
	}
	// 上一次失败留下的传输
	s.teardown()
	if err := s.prepare(); err != nil {
		s.teardown()
		return s.fail(err)
	}
	return s.transition(SessionPrepared, nil)
}

func (s *Session) prepare() error {
	s.mu.RLock()
	configs := append([]transport.Config(nil), s.configs...)
	s.mu.RUnlock()

	var enabled []transport.Config
	for _, cfg := range configs {
		if !cfg.Meta().Enabled {
			continue
		}
		if res := cfg.Validate(); !res.Valid {
			return res.Err()
		}
		enabled = append(enabled, cfg)
	}
	if len(enabled) == 0 {
		return errs.ConfigurationError(errs.KindInvalidParameter, "session: no enabled transport")
	}

	hasAudio, hasVideo, err := s.buildPipeline()
	if err != nil {
		return err
	}
	video, audio := s.mediaConfig()
	if hasVideo {
		if res := transport.ValidateVideoConfig(video); !res.Valid {
			return res.Err()
		}
	}
	if hasAudio {
		if res := transport.ValidateAudioConfig(audio); !res.Valid {
			return res.Err()
		}
	}

	for _, cfg := range enabled {
		t, err := s.newTransport(cfg, hasVideo, hasAudio)
		if err != nil {
			return err
		}
		if err = s.insert(t); err != nil {
			_ = t.Disconnect()
			return err
		}
	}

	s.mu.Lock()
	s.primaryID = s.lowestLocked(false, "")
	s.mu.Unlock()
	log.Info().Int("transports", len(enabled)).Bool("video", hasVideo).Bool("audio", hasAudio).Msg("[session] prepared")
	return nil
}

// buildPipeline 没有编码器工厂时只建终点节点, 由调用者通过Sink推帧
func (s *Session) mediaConfig() (av.VideoConfig, av.AudioConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Video, s.opts.Audio
}

func (s *Session) buildPipeline() (hasAudio, hasVideo bool, err error) {
	video, audio := s.mediaConfig()
	sink := &sessionSink{s: s}
	node := pipeline.NewTransportNode(func() pipeline.Sink { return sink })
	node.UpdateVideoConfiguration(video)
	node.UpdateAudioConfiguration(audio, nil)
	pipe := pipeline.New(node)

	var audioNode *pipeline.AudioCaptureNode
	var videoNode *pipeline.VideoCaptureNode
	if f := s.opts.Encoders; f != nil {
		ae, err := f.AudioEncoder(audio)
		if err != nil {
			return false, false, errs.SystemError(errs.KindResourceUnavailable, "session: audio encoder", err)
		}
		if ae != nil {
			audioNode = pipeline.NewAudioCaptureNode(ae)
			audioNode.SetFormatListener(node)
			audioNode.SetErrorListener(s.onEncoderError)
			_ = audioNode.Out.Connect(node.AudioPad.Emit)
			pipe.Add(audioNode)
		}
		ve, err := f.VideoEncoder(video)
		if err != nil {
			return false, false, errs.SystemError(errs.KindResourceUnavailable, "session: video encoder", err)
		}
		if ve != nil {
			videoNode = pipeline.NewVideoCaptureNode(ve)
			videoNode.SetFormatListener(node)
			videoNode.SetErrorListener(s.onEncoderError)
			_ = videoNode.Out.Connect(node.VideoPad.Emit)
			pipe.Add(videoNode)
		}
		hasAudio, hasVideo = audioNode != nil, videoNode != nil
		if !hasAudio && !hasVideo {
			return false, false, errs.ConfigurationError(errs.KindInvalidParameter, "session: no audio or video encoder")
		}
	} else {
		hasAudio, hasVideo = true, true
	}

	s.mu.Lock()
	s.pipe, s.node, s.audioNode, s.videoNode = pipe, node, audioNode, videoNode
	s.mu.Unlock()
	return hasAudio, hasVideo, nil
}

func (s *Session) transportOptions(hasVideo, hasAudio bool) []transport.Option {
	opts := []transport.Option{
		transport.WithTracks(hasVideo, hasAudio),
		transport.WithMetrics(s.opts.Metrics),
		transport.WithStatsInterval(s.opts.Advanced.StatsInterval),
	}
	return append(opts, s.opts.TransportOptions...)
}

func (s *Session) newTransport(cfg transport.Config, hasVideo, hasAudio bool) (transport.Transport, error) {
	t, err := s.opts.NewTransport(cfg, s.transportOptions(hasVideo, hasAudio)...)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	node := s.node
	s.mu.RUnlock()
	if node != nil {
		node.Configure(t)
	}
	return t, nil
}

// insert 注册传输并订阅状态, 订阅在mu之外完成
func (s *Session) insert(t transport.Transport) error {
	id := t.ID()
	s.mu.Lock()
	if _, ok := s.transports[id]; ok {
		s.mu.Unlock()
		return errs.ConfigurationError(errs.KindConflictingSettings, "session: duplicate transport id "+id)
	}
	e := &entry{t: t, priority: t.Priority()}
	s.transports[id] = e
	s.mu.Unlock()

	cancel := t.Subscribe(s.onTransportState)
	s.mu.Lock()
	if cur, ok := s.transports[id]; ok && cur == e {
		e.cancel = cancel
		cancel = nil
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Start 启动采集后并发连接所有传输, 至少一个连上才算成功
func (s *Session) Start(ctx context.Context) error {
	s.stateMu.Lock()
	ok := s.state.CanTransitionTo(SessionStreaming)
	kind := s.state.Kind
	s.stateMu.Unlock()
	if !ok {
		return errs.InvalidState("session: cannot start from %s", kind)
	}

	s.startedAt.Store(time.Now().UnixNano())
	s.bytesSent.Store(0)
	s.framesSent.Store(0)
	s.framesDropped.Store(0)

	s.mu.RLock()
	pipe := s.pipe
	s.mu.RUnlock()
	if pipe != nil {
		if err := pipe.Start(); err != nil {
			return s.fail(errs.SystemError(errs.KindResourceUnavailable, "session: start capture", err))
		}
	}

	entries := s.snapshot()
	results := make([]error, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		i, t := i, e.t
		g.Go(func() error {
			defer utils.PanicRecoverWithInfo("session connect " + t.ID())
			if err := t.Connect(ctx); err != nil {
				results[i] = err
				log.Warn().Str("transport", t.ID()).Str("protocol", t.Protocol().String()).Err(err).Msg("[session] connect failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	connected := 0
	var firstErr error
	for i, e := range entries {
		if e.t.State().Healthy() {
			connected++
		} else if firstErr == nil && results[i] != nil {
			firstErr = results[i]
		}
	}
	if connected == 0 {
		if pipe != nil {
			pipe.Stop()
		}
		s.disconnectAll(entries)
		return s.fail(errs.ConnectionFailed("session", "no transport could be connected", firstErr))
	}

	s.mu.Lock()
	s.primaryID = s.lowestLocked(true, "")
	primary := s.primaryID
	s.mu.Unlock()

	if err := s.transition(SessionStreaming, nil); err != nil {
		return err
	}
	s.startStats()
	log.Info().Int("connected", connected).Int("total", len(entries)).Str("primary", primary).Msg("[session] streaming")
	return nil
}

// Stop 停止采集并断开所有传输, 单个传输的错误只记录
func (s *Session) Stop() error {
	if err := s.transition(SessionStopping, nil); err != nil {
		return err
	}
	s.stopStats()
	s.mu.RLock()
	pipe := s.pipe
	s.mu.RUnlock()
	if pipe != nil {
		pipe.Stop()
	}
	s.disconnectAll(s.snapshot())
	s.collectStats()
	return s.transition(SessionIdle, nil)
}

func (s *Session) disconnectAll(entries []*entry) {
	var g errgroup.Group
	for _, e := range entries {
		t := e.t
		g.Go(func() error {
			defer utils.PanicRecoverWithInfo("session disconnect " + t.ID())
			if err := t.Disconnect(); err != nil {
				log.Warn().Str("transport", t.ID()).Err(err).Msg("[session] disconnect")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Release 任何状态下都可以调用, 释放管线和全部传输后回到Idle
func (s *Session) Release() {
	s.stopStats()
	s.teardown()
	s.stateMu.Lock()
	if s.state.Kind != SessionIdle {
		s.setStateLocked(SessionState{Kind: SessionIdle})
	}
	s.stateMu.Unlock()
}

func (s *Session) teardown() {
	s.mu.Lock()
	pipe := s.pipe
	s.pipe, s.node, s.audioNode, s.videoNode = nil, nil, nil, nil
	entries := make([]*entry, 0, len(s.transports))
	for id, e := range s.transports {
		entries = append(entries, e)
		delete(s.transports, id)
	}
	s.primaryID = ""
	s.mu.Unlock()

	if pipe != nil {
		pipe.Shutdown()
	}
	for _, e := range entries {
		if e.cancel != nil {
			e.cancel()
		}
		s.opts.Metrics.RemoveTransport(e.t.ID(), e.t.Protocol().String())
	}
	s.disconnectAll(entries)
}

// Publish Prepare + Start, 一直推到ctx结束或者会话出错
func (s *Session) Publish(ctx context.Context) error {
	defer s.Release()
	if err := s.Prepare(); err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Stop()
		case <-ticker.C:
			if st := s.State(); st.Kind == SessionError {
				if st.Err == nil {
					return errs.Unknown("session failed", nil)
				}
				return st.Err
			}
		}
	}
}

// snapshot 按优先级排序
func (s *Session) snapshot() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Session) sortedLocked() []*entry {
	out := make([]*entry, 0, len(s.transports))
	for _, e := range s.transports {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].t.ID() < out[j].t.ID()
	})
	return out
}

// lowestLocked 优先级最小的传输, healthy为true时只考虑Connected/Streaming
func (s *Session) lowestLocked(healthy bool, exclude string) string {
	for _, e := range s.sortedLocked() {
		if e.t.ID() == exclude {
			continue
		}
		if healthy && !e.t.State().Healthy() {
			continue
		}
		return e.t.ID()
	}
	return ""
}

// onTransportState 在传输的状态临界区内调用
func (s *Session) onTransportState(id string, prev, next transport.State) {
	l := s.opts.Listener
	notify(func() { l.OnTransportStateChanged(id, next) })

	var surfaced *errs.StreamError
	s.mu.Lock()
	if _, ok := s.transports[id]; !ok {
		s.mu.Unlock()
		return
	}
	switch {
	case next.Healthy():
		if s.primaryUnusableLocked() {
			if cand := s.lowestLocked(true, ""); cand != "" && cand != s.primaryID {
				log.Info().Str("from", s.primaryID).Str("to", cand).Msg("[session] primary transport selected")
				s.primaryID = cand
			}
		}
	case prev.Healthy() || next.Kind == transport.StateError:
		if id != s.primaryID {
			break
		}
		if s.opts.Advanced.FallbackEnabled {
			if cand := s.lowestLocked(true, id); cand != "" {
				s.primaryID = cand
				s.opts.Metrics.Failover()
				log.Warn().Str("from", id).Str("to", cand).Str("state", next.String()).Msg("[session] failover")
				break
			}
		}
		if next.Kind == transport.StateError {
			surfaced = next.Err
		}
	}
	entries := s.sortedLocked()
	s.mu.Unlock()

	if surfaced != nil && s.State().Kind == SessionStreaming {
		notify(func() { l.OnError(surfaced) })
	}
	s.checkQuality(entries)
	if next.Kind == transport.StateError {
		s.checkTerminal(entries, next.Err)
	}
}

// primaryUnusableLocked 没有主传输, 或者开启了故障转移且主传输不可用
func (s *Session) primaryUnusableLocked() bool {
	e, ok := s.transports[s.primaryID]
	if !ok {
		return true
	}
	return s.opts.Advanced.FallbackEnabled && !e.t.State().Healthy()
}

func (s *Session) checkQuality(entries []*entry) {
	states := make([]transport.StateKind, 0, len(entries))
	for _, e := range entries {
		states = append(states, e.t.State().Kind)
	}
	q := OverallQuality(states)
	if old := s.quality.Swap(int32(q)); old != int32(q) {
		l := s.opts.Listener
		notify(func() { l.OnConnectionQualityChanged(q) })
	}
}

// checkTerminal 所有传输都不可用且没有在重连时, 推流会话转为Error
func (s *Session) checkTerminal(entries []*entry, cause *errs.StreamError) {
	for _, e := range entries {
		if e.t.State().Healthy() {
			return
		}
		if r, ok := e.t.(retrier); ok && r.Retrying() {
			return
		}
	}
	if cause == nil {
		cause = errs.ConnectionFailed("session", "all transports failed", nil)
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state.Kind != SessionStreaming {
		return
	}
	log.Error().Err(cause).Msg("[session] all transports failed")
	_ = s.transitionLocked(SessionError, cause)
}

func (s *Session) onEncoderError(err error) {
	se := errs.From(err)
	l := s.opts.Listener
	notify(func() { l.OnError(se) })
}

// targets 当前应该收到帧的传输
func (s *Session) targets() []transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.opts.Advanced.EnableSimultaneousPush {
		var out []transport.Transport
		for _, e := range s.sortedLocked() {
			if e.t.State().Healthy() {
				out = append(out, e.t)
			}
		}
		return out
	}
	if e, ok := s.transports[s.primaryID]; ok && e.t.State().Healthy() {
		return []transport.Transport{e.t}
	}
	return nil
}

var errNoTransport = errs.InvalidState("session: no active transport")

// dispatch 多个目标时并发发送, 单个传输失败不影响其他传输
func (s *Session) dispatch(frame av.Frame) error {
	targets := s.targets()
	if len(targets) == 0 {
		s.framesDropped.Add(1)
		s.opts.Metrics.Dropped(frame.Type.String())
		return errNoTransport
	}

	send := func(t transport.Transport) error {
		if frame.Type == av.Video {
			return t.SendVideoData(frame)
		}
		return t.SendAudioData(frame)
	}

	var delivered atomic.Int32
	var firstErr error
	if len(targets) == 1 {
		if firstErr = send(targets[0]); firstErr == nil {
			delivered.Add(1)
		}
	} else {
		results := make([]error, len(targets))
		var g errgroup.Group
		for i, t := range targets {
			i, t := i, t
			g.Go(func() error {
				if results[i] = send(t); results[i] == nil {
					delivered.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
		for i, err := range results {
			if err != nil {
				log.Debug().Str("transport", targets[i].ID()).Err(err).Msg("[session] send")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	if delivered.Load() == 0 {
		s.framesDropped.Add(1)
		return firstErr
	}
	s.bytesSent.Add(uint64(frame.Len()))
	if frame.Type == av.Video {
		s.framesSent.Add(1)
	}
	s.flow.Stat(frame)
	return nil
}

// Sink 管线之外的生产者可以直接推帧
func (s *Session) Sink() pipeline.Sink {
	return &sessionSink{s: s}
}

// AddTransport 准备好或推流中添加时立即创建传输, 推流中还会立即连接
func (s *Session) AddTransport(cfg transport.Config) (string, error) {
	if res := cfg.Validate(); !res.Valid {
		return "", res.Err()
	}
	// 传输和配置用同一个ID, 之后才能按ID移除
	cfg = transport.WithDefaultID(cfg)
	id := cfg.Meta().ID
	s.mu.Lock()
	for _, c := range s.configs {
		if c.Meta().ID == id {
			s.mu.Unlock()
			return "", errs.ConfigurationError(errs.KindConflictingSettings, "session: duplicate transport id "+id)
		}
	}
	s.configs = append(s.configs, cfg)
	s.mu.Unlock()

	st := s.State().Kind
	if st != SessionPrepared && st != SessionStreaming {
		return id, nil
	}
	s.mu.RLock()
	hasVideo := s.node != nil && (s.videoNode != nil || s.opts.Encoders == nil)
	hasAudio := s.node != nil && (s.audioNode != nil || s.opts.Encoders == nil)
	s.mu.RUnlock()

	t, err := s.newTransport(cfg, hasVideo, hasAudio)
	if err != nil {
		return "", err
	}
	if err = s.insert(t); err != nil {
		return "", err
	}

	s.mu.Lock()
	if cur, ok := s.transports[s.primaryID]; !ok || (st == SessionPrepared && t.Priority() < cur.priority) {
		s.primaryID = t.ID()
	}
	s.mu.Unlock()

	if st == SessionStreaming {
		go func() {
			defer utils.PanicRecoverWithInfo("session add transport")
			if err := t.Connect(context.Background()); err != nil {
				log.Warn().Str("transport", t.ID()).Err(err).Msg("[session] connect added transport")
			}
		}()
	}
	log.Info().Str("transport", id).Str("protocol", cfg.Protocol().String()).Msg("[session] transport added")
	return id, nil
}

// RemoveTransport 移除的是主传输时重新选择
func (s *Session) RemoveTransport(id string) error {
	s.mu.Lock()
	found := false
	for i, c := range s.configs {
		if c.Meta().ID == id {
			s.configs = append(s.configs[:i], s.configs[i+1:]...)
			found = true
			break
		}
	}
	e, ok := s.transports[id]
	if ok {
		delete(s.transports, id)
	}
	if s.primaryID == id {
		s.primaryID = s.lowestLocked(true, "")
		if s.primaryID == "" {
			s.primaryID = s.lowestLocked(false, "")
		}
	}
	entries := s.sortedLocked()
	s.mu.Unlock()

	if !found && !ok {
		return errs.ConfigurationError(errs.KindInvalidParameter, "session: transport not found "+id)
	}
	if ok {
		if e.cancel != nil {
			e.cancel()
		}
		if err := e.t.Disconnect(); err != nil {
			log.Warn().Str("transport", id).Err(err).Msg("[session] disconnect removed transport")
		}
		s.opts.Metrics.RemoveTransport(id, e.t.Protocol().String())
		s.checkQuality(entries)
	}
	log.Info().Str("transport", id).Msg("[session] transport removed")
	return nil
}

// SwitchPrimaryTransport 手动指定主传输
func (s *Session) SwitchPrimaryTransport(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transports[id]; !ok {
		return errs.ConfigurationError(errs.KindInvalidParameter, "session: transport not found "+id)
	}
	if s.primaryID != id {
		log.Info().Str("from", s.primaryID).Str("to", id).Msg("[session] switch primary")
		s.primaryID = id
	}
	return nil
}

// Transports 按优先级排序
func (s *Session) Transports() []transport.Transport {
	entries := s.snapshot()
	out := make([]transport.Transport, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.t)
	}
	return out
}

// PrimaryTransport 没有时返回nil
func (s *Session) PrimaryTransport() transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.transports[s.primaryID]; ok {
		return e.t
	}
	return nil
}

func (s *Session) Transport(id string) (transport.Transport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.transports[id]
	if !ok {
		return nil, false
	}
	return e.t, true
}

func (s *Session) UpdateVideoConfig(cfg av.VideoConfig) error {
	if res := transport.ValidateVideoConfig(cfg); !res.Valid {
		return res.Err()
	}
	s.mu.Lock()
	s.opts.Video = cfg
	node := s.node
	s.mu.Unlock()
	if node != nil {
		node.UpdateVideoConfiguration(cfg)
		return nil
	}
	for _, t := range s.Transports() {
		t.UpdateVideoConfig(cfg)
	}
	return nil
}

func (s *Session) UpdateAudioConfig(cfg av.AudioConfig) error {
	if res := transport.ValidateAudioConfig(cfg); !res.Valid {
		return res.Err()
	}
	s.mu.Lock()
	s.opts.Audio = cfg
	node := s.node
	s.mu.Unlock()
	if node != nil {
		node.UpdateAudioConfiguration(cfg, nil)
		return nil
	}
	for _, t := range s.Transports() {
		t.UpdateAudioConfig(cfg, nil)
	}
	return nil
}

// UpdateBitrate 码率交给视频编码器, 传输只记录
func (s *Session) UpdateBitrate(bps int) error {
	if bps <= 0 {
		return errs.ConfigurationError(errs.KindInvalidParameter, "session: bitrate must be positive")
	}
	s.mu.RLock()
	videoNode := s.videoNode
	s.mu.RUnlock()
	var err error
	if videoNode != nil {
		if err = videoNode.SetVideoBitrate(bps); err != nil {
			log.Warn().Int("bps", bps).Err(err).Msg("[session] update encoder bitrate")
		}
	}
	for _, t := range s.Transports() {
		t.UpdateBitrate(bps)
	}
	return err
}

func (s *Session) startStats() {
	s.mu.Lock()
	if s.statsStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.statsStop = stop
	s.mu.Unlock()

	interval := s.opts.Advanced.StatsInterval
	go func() {
		defer utils.PanicRecoverWithInfo("session stats")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				stats := s.collectStats()
				log.Debug().RawJSON("stats", stats.JSON()).Msg("[session] stats")
				l := s.opts.Listener
				notify(func() { l.OnStatsUpdated(stats) })
			}
		}
	}()
}

func (s *Session) stopStats() {
	s.mu.Lock()
	if s.statsStop != nil {
		close(s.statsStop)
		s.statsStop = nil
	}
	s.mu.Unlock()
}

func (s *Session) collectStats() StreamStats {
	entries := s.snapshot()
	var dur time.Duration
	if at := s.startedAt.Load(); at > 0 {
		dur = time.Since(time.Unix(0, at))
	}
	bytes := s.bytesSent.Load()
	stats := StreamStats{
		SessionDuration: dur,
		TotalBytesSent:  bytes,
		AverageBitrate:  averageBitrate(bytes, dur),
		FPS:             s.flow.VideoFPS.GetFPS(),
		FramesSent:      s.framesSent.Load(),
		FramesDropped:   s.framesDropped.Load(),
		Media:           s.flow.Snapshot(),
		Transports:      make(map[string]transport.Stats, len(entries)),
		Protocols:       make(map[string]map[string]interface{}, len(entries)),
	}
	states := make([]transport.StateKind, 0, len(entries))
	for _, e := range entries {
		st := e.t.State()
		states = append(states, st.Kind)
		if st.Healthy() {
			stats.ActiveTransports++
		}
		stats.Transports[e.t.ID()] = e.t.Stats()
		stats.Protocols[e.t.ID()] = e.t.ProtocolStats()
	}
	stats.OverallQuality = OverallQuality(states).String()
	s.statsV.Store(stats)
	return stats
}

// sessionSink 把传输节点的输出分发给会话的传输
type sessionSink struct {
	s *Session
}

var _ pipeline.Sink = (*sessionSink)(nil)

func (k *sessionSink) SendAudioData(frame av.Frame) error {
	return k.s.dispatch(frame)
}

func (k *sessionSink) SendVideoData(frame av.Frame) error {
	return k.s.dispatch(frame)
}

func (k *sessionSink) UpdateAudioConfig(cfg av.AudioConfig, asc []byte) {
	for _, t := range k.s.Transports() {
		t.UpdateAudioConfig(cfg, asc)
	}
}

func (k *sessionSink) UpdateVideoConfig(cfg av.VideoConfig) {
	for _, t := range k.s.Transports() {
		t.UpdateVideoConfig(cfg)
	}
}

func (k *sessionSink) UpdateVideoParameterSets(params [][]byte) {
	for _, t := range k.s.Transports() {
		t.UpdateVideoParameterSets(params)
	}
}
