package transport

import (
	"strings"
	"time"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/utils"
)

// DetectProtocol 按url的scheme识别协议
func DetectProtocol(url string) (Protocol, error) {
	url = strings.TrimSpace(url)
	switch {
	case hasPrefixFold(url, "rtmp://"), hasPrefixFold(url, "rtmps://"):
		return ProtocolRTMP, nil
	case hasPrefixFold(url, "srt://"):
		return ProtocolSRT, nil
	}
	return 0, errs.ConfigurationError(errs.KindUnsupportedConfiguration, "unsupported streaming url "+utils.MaskURL(url))
}

// ConfigFromURL 按协议生成默认配置
func ConfigFromURL(url string) (Config, error) {
	p, err := DetectProtocol(url)
	if err != nil {
		return nil, err
	}
	switch p {
	case ProtocolRTMP:
		c := NewRtmpConfig(url)
		c.RetryPolicy = ExponentialBackoff(3, time.Second, 30*time.Second)
		return c, nil
	case ProtocolSRT:
		c := NewSrtConfig(url)
		c.Latency = 200 * time.Millisecond
		return c, nil
	}
	return nil, errs.ConfigurationError(errs.KindUnsupportedConfiguration, "unsupported protocol "+p.String())
}
