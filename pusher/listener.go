package pusher

import (
	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/transport"
)

// EventListener 会话事件. 回调在会话内部的临界区里执行, 不能再调用会话的
// Prepare/Start/Stop/Release, 需要时另起goroutine.
type EventListener interface {
	OnSessionStateChanged(state SessionState)
	OnTransportStateChanged(id string, state transport.State)
	OnConnectionQualityChanged(quality transport.Quality)
	OnStatsUpdated(stats StreamStats)
	OnError(err *errs.StreamError)
}

// ListenerFuncs 按需填写的EventListener, 为空的回调忽略
type ListenerFuncs struct {
	SessionStateChanged     func(state SessionState)
	TransportStateChanged   func(id string, state transport.State)
	ConnectionQualityChange func(quality transport.Quality)
	StatsUpdated            func(stats StreamStats)
	Error                   func(err *errs.StreamError)
}

var _ EventListener = ListenerFuncs{}

func (l ListenerFuncs) OnSessionStateChanged(state SessionState) {
	if l.SessionStateChanged != nil {
		l.SessionStateChanged(state)
	}
}

func (l ListenerFuncs) OnTransportStateChanged(id string, state transport.State) {
	if l.TransportStateChanged != nil {
		l.TransportStateChanged(id, state)
	}
}

func (l ListenerFuncs) OnConnectionQualityChanged(quality transport.Quality) {
	if l.ConnectionQualityChange != nil {
		l.ConnectionQualityChange(quality)
	}
}

func (l ListenerFuncs) OnStatsUpdated(stats StreamStats) {
	if l.StatsUpdated != nil {
		l.StatsUpdated(stats)
	}
}

func (l ListenerFuncs) OnError(err *errs.StreamError) {
	if l.Error != nil {
		l.Error(err)
	}
}

type nopListener struct{}

func (nopListener) OnSessionStateChanged(SessionState) {}
func (nopListener) OnTransportStateChanged(string, transport.State) {}
func (nopListener) OnConnectionQualityChanged(transport.Quality) {}
func (nopListener) OnStatsUpdated(StreamStats) {}
func (nopListener) OnError(*errs.StreamError) {}
