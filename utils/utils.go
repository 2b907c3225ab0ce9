package utils

import (
	"context"
	"net"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TimeToTs duration to timestamp
func TimeToTs(tm time.Duration) uint32 {
	if tm < 0 {
		return 0
	}
	return uint32(tm / time.Millisecond)
}

// RepairHostWithPort 没有端口时补上默认端口
func RepairHostWithPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), port)
	}
	return host
}

// RepairHostWithPort1935 ...
func RepairHostWithPort1935(host string) string {
	return RepairHostWithPort(host, "1935")
}

// PeelOffPort1935 截取IP:1935为IP
func PeelOffPort1935(host string) string {
	if h, port, err := net.SplitHostPort(host); err == nil {
		if port == "1935" {
			return h
		}
	}
	return host
}

// ContextDone 判断一个context是否已经结束/取消/超时
func ContextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// PanicRecoverWithInfo panic恢复处理, 用在后台goroutine的defer里
func PanicRecoverWithInfo(info string) {
	if r := recover(); r != nil {
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		log.Error().Str("stack", string(buf)).Any("error", r).Str("info", info).Msg("panic recover")
	}
}

// MaskURL 隐藏推流地址最后一段(通常是stream key), 只用于打日志
func MaskURL(rawurl string) string {
	if strings.TrimSpace(rawurl) == "" {
		return "null"
	}
	if u, err := url.Parse(rawurl); err == nil && u.RawQuery != "" {
		u.RawQuery = "***"
		rawurl = u.String()
	}
	idx := strings.LastIndex(rawurl, "/")
	if idx <= 0 || idx == len(rawurl)-1 {
		return rawurl
	}
	suffix := rawurl[idx+1:]
	query := ""
	if q := strings.Index(suffix, "?"); q >= 0 {
		suffix, query = suffix[:q], suffix[q:]
	}
	var masked string
	switch {
	case len(suffix) <= 2:
		masked = "**"
	case len(suffix) <= 4:
		masked = suffix[:1] + "***"
	default:
		masked = suffix[:2] + "***" + suffix[len(suffix)-2:]
	}
	return rawurl[:idx+1] + masked + query
}
