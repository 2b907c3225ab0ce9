package pusher

import "context"

// Pusher 阻塞推流直到ctx结束或者出错
type Pusher interface {
	Publish(ctx context.Context) error
}
