package downstream

import (
	"context"
)

// DownStreamer 拉流校验推流结果, 返回是否收到过媒体数据
type DownStreamer interface {
	Pull(context.Context) (bool, error)
}
