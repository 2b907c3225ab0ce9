package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/utils"
)

// streamTransport RTMP和SRT共用的状态机: 连接, 失败重连, FLV打包发送, 统计
//
// mu 保护状态和连接; sendMu 保护packer, 加锁顺序 sendMu -> mu.
// 每次连接尝试和Disconnect都会递增gen, 过期的定时器和连接回调据此忽略.
type streamTransport struct {
	id       string
	protocol Protocol
	priority int
	url      string
	policy   RetryPolicy
	dial     Dialer
	opts     Options

	mu            sync.Mutex
	state         State
	observers     map[int]StateObserver
	nextObserver  int
	conn          Conn
	gen           uint64
	timer         *time.Timer
	cancelAttempt context.CancelFunc
	statsStop     chan struct{}

	sendMu    sync.Mutex
	packer    *flv.Packer
	packerGen uint64

	// 以下字段无锁读取
	stateV      atomic.Value // State
	retryCount  atomic.Int32
	bytesSent   atomic.Uint64
	packetsLost atomic.Uint64
	framesSent  atomic.Uint64
	connectedAt atomic.Int64
	bitrate     atomic.Int64
	connRTT     atomic.Int64
	pending     atomic.Bool // 已安排重连
	statsV      atomic.Value // Stats

	statsMu        sync.Mutex
	lastStatsAt    time.Time
	lastStatsBytes uint64
}

func newStreamTransport(id string, protocol Protocol, priority int, url string, policy RetryPolicy, dial Dialer, opts Options) *streamTransport {
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	t := &streamTransport{
		id:        id,
		protocol:  protocol,
		priority:  priority,
		url:       url,
		policy:    policy,
		dial:      dial,
		opts:      opts,
		state:     Disconnected(),
		observers: make(map[int]StateObserver),
		packer:    flv.NewPacker(opts.HasVideo, opts.HasAudio),
	}
	t.stateV.Store(t.state)
	t.statsV.Store(Stats{TransportID: id, Protocol: protocol.String(), State: t.state.String()})
	return t
}

func (t *streamTransport) ID() string { return t.id }

func (t *streamTransport) Protocol() Protocol { return t.protocol }

func (t *streamTransport) Priority() int { return t.priority }

func (t *streamTransport) State() State {
	return t.stateV.Load().(State)
}

func (t *streamTransport) RetryCount() int {
	return int(t.retryCount.Load())
}

func (t *streamTransport) Subscribe(observer StateObserver) (cancel func()) {
	t.mu.Lock()
	id := t.nextObserver
	t.nextObserver++
	t.observers[id] = observer
	t.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.observers, id)
			t.mu.Unlock()
		})
	}
}

// setState 须持有mu, 在同一临界区内通知观察者
func (t *streamTransport) setState(next State) {
	prev := t.state
	t.state = next
	t.stateV.Store(next)
	t.opts.Metrics.SetTransportState(t.id, t.protocol.String(), int(next.Kind))
	if next.Kind == StateError {
		log.Warn().Str("transport", t.id).Str("protocol", t.protocol.String()).
			Str("from", prev.String()).Err(next.Err).Msg("[transport] state error")
	} else {
		log.Debug().Str("transport", t.id).Str("from", prev.String()).Str("to", next.String()).Msg("[transport] state")
	}
	for _, o := range t.observers {
		func() {
			defer utils.PanicRecoverWithInfo("transport observer")
			o(t.id, prev, next)
		}()
	}
}

// Connect 只在Disconnected下发起连接, 连接中或已连接时直接返回
func (t *streamTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	switch t.state.Kind {
	case StateConnecting, StateConnected, StateStreaming, StateReconnecting:
		t.mu.Unlock()
		return nil
	case StateError:
		err := errs.InvalidState("transport %s is in error state, disconnect first", t.id)
		t.mu.Unlock()
		return err
	}
	gen := t.beginAttempt()
	t.mu.Unlock()
	return t.attempt(ctx, gen)
}

// beginAttempt 须持有mu
func (t *streamTransport) beginAttempt() uint64 {
	t.gen++
	t.setState(State{Kind: StateConnecting})
	return t.gen
}

func (t *streamTransport) attempt(parent context.Context, gen uint64) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return errs.InvalidState("transport %s: connect aborted", t.id)
	}
	t.cancelAttempt = cancel
	t.mu.Unlock()

	log.Info().Str("transport", t.id).Str("url", utils.MaskURL(t.url)).Int("retry", t.RetryCount()).Msg("[transport] connecting")
	c, err := t.dial(ctx, t.url)
	t.opts.Metrics.ConnectAttempt(t.protocol.String(), err)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state.Kind != StateConnecting {
		if c != nil {
			go c.Close()
		}
		return errs.InvalidState("transport %s: connect aborted", t.id)
	}
	t.cancelAttempt = nil
	if err != nil {
		se := t.streamError(err)
		t.pending.Store(t.willRetry(se))
		t.setState(ErrorState(se))
		t.scheduleRetry(se)
		return se
	}
	t.conn = c
	t.connRTT.Store(int64(c.RTT()))
	t.retryCount.Store(0)
	t.connectedAt.Store(time.Now().UnixNano())
	t.setState(State{Kind: StateConnected})
	go t.watch(gen, c)
	t.startStats()
	return nil
}

func (t *streamTransport) streamError(err error) *errs.StreamError {
	se := errs.From(err)
	if se.Protocol == "" {
		se.Protocol = t.protocol.String()
	}
	return se
}

// watch 连接被动断开时走失败流程
func (t *streamTransport) watch(gen uint64, c Conn) {
	<-c.Done()
	if err := c.Err(); err != nil {
		t.fail(gen, err)
	}
}

// fail 连接中/已连接/推流中出错 -> Error, 然后尝试重连
func (t *streamTransport) fail(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	switch t.state.Kind {
	case StateConnecting, StateConnected, StateStreaming:
	default:
		return
	}
	if c := t.conn; c != nil {
		t.conn = nil
		go c.Close()
	}
	se := t.streamError(err)
	t.pending.Store(t.willRetry(se))
	t.setState(ErrorState(se))
	t.scheduleRetry(se)
}

func (t *streamTransport) willRetry(se *errs.StreamError) bool {
	return se.Recoverable && int(t.retryCount.Load()) < t.policy.MaxRetries
}

// Retrying 连接中或者已安排重连, 观察者里也可以调用
func (t *streamTransport) Retrying() bool {
	return t.pending.Load() || t.State().Kind == StateConnecting
}

// scheduleRetry 须持有mu. 不可恢复的错误以及重试次数用完时停在Error
func (t *streamTransport) scheduleRetry(se *errs.StreamError) {
	if !t.willRetry(se) {
		t.pending.Store(false)
	}
	if !se.Recoverable {
		log.Error().Str("transport", t.id).Err(se).Msg("[transport] unrecoverable error, not retrying")
		return
	}
	retries := int(t.retryCount.Load())
	if retries >= t.policy.MaxRetries {
		log.Error().Str("transport", t.id).Int("retries", retries).Err(se).Msg("[transport] max retry attempts exceeded")
		return
	}
	delay := t.policy.Delay(retries)
	t.retryCount.Add(1)
	t.opts.Metrics.Reconnect(delay)
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	log.Info().Str("transport", t.id).Dur("delay", delay).Int("attempt", retries+1).Msg("[transport] reconnect scheduled")
	t.timer = time.AfterFunc(delay, func() { t.retry(gen) })
}

func (t *streamTransport) retry(gen uint64) {
	defer utils.PanicRecoverWithInfo("transport retry")
	t.mu.Lock()
	if gen != t.gen || t.state.Kind != StateError {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	next := t.beginAttempt()
	t.pending.Store(false)
	t.mu.Unlock()
	_ = t.attempt(context.Background(), next)
}

// Disconnect 任何状态下都回到Disconnected, 取消重连并清空计数
func (t *streamTransport) Disconnect() error {
	t.mu.Lock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancelAttempt != nil {
		t.cancelAttempt()
		t.cancelAttempt = nil
	}
	if t.statsStop != nil {
		close(t.statsStop)
		t.statsStop = nil
	}
	c := t.conn
	t.conn = nil
	t.pending.Store(false)
	t.retryCount.Store(0)
	t.bytesSent.Store(0)
	t.packetsLost.Store(0)
	t.framesSent.Store(0)
	t.connectedAt.Store(0)
	t.connRTT.Store(0)
	if t.state.Kind != StateDisconnected {
		t.setState(Disconnected())
	}
	t.mu.Unlock()

	t.statsMu.Lock()
	t.lastStatsAt, t.lastStatsBytes = time.Time{}, 0
	t.statsV.Store(Stats{TransportID: t.id, Protocol: t.protocol.String(), State: StateDisconnected.String()})
	t.statsMu.Unlock()

	if c != nil {
		if err := c.Close(); err != nil {
			log.Debug().Str("transport", t.id).Err(err).Msg("[transport] close")
		}
	}
	return nil
}

func (t *streamTransport) SendAudioData(frame av.Frame) error {
	return t.send(frame)
}

func (t *streamTransport) SendVideoData(frame av.Frame) error {
	return t.send(frame)
}

func (t *streamTransport) send(frame av.Frame) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	st, c, gen := t.state, t.conn, t.gen
	t.mu.Unlock()
	if !st.Healthy() || c == nil {
		return errs.InvalidState("transport %s is %s", t.id, st.Kind)
	}
	// 新连接要重新发送metadata和序列头
	if t.packerGen != gen {
		t.packer.Reset()
		t.packerGen = gen
	}

	var tags []flvio.Tag
	var err error
	media := "audio"
	if frame.Type == av.Video {
		media = "video"
		tags, err = t.packer.PackVideo(frame)
	} else {
		tags, err = t.packer.PackAudio(frame)
	}
	if err != nil {
		t.opts.Metrics.Dropped(media)
		return errs.EncodingError(errs.KindFormatNotSupported, err.Error())
	}
	if len(tags) == 0 {
		t.opts.Metrics.Dropped(media)
		return nil
	}

	before := c.TxBytes()
	if err = c.WriteTags(tags); err != nil {
		t.packetsLost.Add(1)
		se := errs.NetworkError(t.protocol.String(), "failed to send data", -1, err)
		t.fail(gen, se)
		return se
	}
	n := c.TxBytes() - before
	t.bytesSent.Add(n)
	t.framesSent.Add(1)
	t.opts.Metrics.Sent(t.protocol.String(), media, int(n))

	if st.Kind == StateConnected {
		t.mu.Lock()
		if gen == t.gen && t.state.Kind == StateConnected {
			t.setState(State{Kind: StateStreaming})
		}
		t.mu.Unlock()
	}
	return nil
}

func (t *streamTransport) UpdateBitrate(bps int) {
	t.bitrate.Store(int64(bps))
	if t.opts.OnBitrate != nil {
		t.opts.OnBitrate(bps)
	}
}

// TargetBitrate 最近一次UpdateBitrate的值
func (t *streamTransport) TargetBitrate() int {
	return int(t.bitrate.Load())
}

func (t *streamTransport) UpdateVideoConfig(cfg av.VideoConfig) {
	t.sendMu.Lock()
	t.packer.SetVideoConfig(cfg)
	t.sendMu.Unlock()
}

func (t *streamTransport) UpdateAudioConfig(cfg av.AudioConfig, asc []byte) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if err := t.packer.SetAudioConfig(cfg, asc); err != nil {
		log.Error().Str("transport", t.id).Err(err).Msg("[transport] audio config rejected")
	}
}

func (t *streamTransport) UpdateVideoParameterSets(params [][]byte) {
	t.sendMu.Lock()
	t.packer.SetParameterSets(params)
	t.sendMu.Unlock()
}

func (t *streamTransport) lossPercent() float64 {
	sent := t.bytesSent.Load()
	if sent == 0 {
		return 0
	}
	return float64(t.packetsLost.Load()) / float64(sent) * 100
}

// rtt 握手测得的值, 没有时按状态估算
func (t *streamTransport) rtt() time.Duration {
	if rtt := time.Duration(t.connRTT.Load()); rtt > 0 && t.State().Healthy() {
		return rtt
	}
	return EstimatedRTT(QualityFor(t.State().Kind, 0, t.lossPercent()))
}

func (t *streamTransport) ConnectionQuality() Quality {
	st := t.State().Kind
	if st != StateStreaming {
		return QualityFor(st, 0, 0)
	}
	return QualityFor(st, t.rtt(), t.lossPercent())
}

// Stats 最近一次刷新的统计
func (t *streamTransport) Stats() Stats {
	return t.statsV.Load().(Stats)
}

// startStats 须持有mu
func (t *streamTransport) startStats() {
	if t.statsStop != nil {
		return
	}
	stop := make(chan struct{})
	t.statsStop = stop
	go func() {
		ticker := time.NewTicker(t.opts.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.updateStats(stop)
			}
		}
	}()
}

func (t *streamTransport) updateStats(stop <-chan struct{}) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	select {
	case <-stop:
		return
	default:
	}
	now := time.Now()
	sent := t.bytesSent.Load()
	var bw int64
	if d := now.Sub(t.lastStatsAt); !t.lastStatsAt.IsZero() && d > 0 && sent >= t.lastStatsBytes {
		bw = int64(float64(sent-t.lastStatsBytes) * 8 / d.Seconds())
	}
	t.lastStatsAt, t.lastStatsBytes = now, sent

	var connTime time.Duration
	if at := t.connectedAt.Load(); at > 0 {
		connTime = now.Sub(time.Unix(0, at))
	}
	st := t.State()
	t.statsV.Store(Stats{
		TransportID:    t.id,
		Protocol:       t.protocol.String(),
		State:          st.String(),
		BytesSent:      sent,
		PacketsLost:    t.packetsLost.Load(),
		RTT:            t.rtt(),
		Jitter:         10 * time.Millisecond,
		Bandwidth:      bw,
		ConnectionTime: connTime,
	})
}

func (t *streamTransport) baseCapabilities() []string {
	return []string{CapAdaptiveBitrate, CapReconnection, CapStatistics, CapQualityMonitoring}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// reconnecting 出错后还在重试流程中
func (t *streamTransport) reconnecting() bool {
	return t.retryCount.Load() > 0 && !t.State().Healthy()
}
