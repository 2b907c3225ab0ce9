package pusher

import (
	"github.com/bugVanisher/avpush/common/errs"
)

// SessionStateKind 会话状态
type SessionStateKind int

const (
	SessionIdle SessionStateKind = iota
	SessionPreparing
	SessionPrepared
	SessionStreaming
	SessionStopping
	SessionError
)

func (k SessionStateKind) String() string {
	switch k {
	case SessionIdle:
		return "idle"
	case SessionPreparing:
		return "preparing"
	case SessionPrepared:
		return "prepared"
	case SessionStreaming:
		return "streaming"
	case SessionStopping:
		return "stopping"
	case SessionError:
		return "error"
	}
	return "unknown"
}

// SessionState 只有 SessionError 带 Err
type SessionState struct {
	Kind SessionStateKind
	Err  *errs.StreamError
}

func (s SessionState) String() string {
	if s.Kind == SessionError && s.Err != nil {
		return "error(" + s.Err.Error() + ")"
	}
	return s.Kind.String()
}

var transitions = map[SessionStateKind][]SessionStateKind{
	SessionIdle:      {SessionPreparing},
	SessionPreparing: {SessionPrepared, SessionError},
	SessionPrepared:  {SessionStreaming, SessionError},
	SessionStreaming: {SessionStopping, SessionError},
	SessionStopping:  {SessionIdle, SessionError},
	SessionError:     {SessionIdle, SessionPreparing},
}

// CanTransitionTo 合法迁移表, 不包含自迁移
func (s SessionState) CanTransitionTo(next SessionStateKind) bool {
	for _, k := range transitions[s.Kind] {
		if k == next {
			return true
		}
	}
	return false
}
