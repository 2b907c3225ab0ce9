package rtmp

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/utils"
)

const (
	SchemeRTMP  = "rtmp"
	SchemeRTMPS = "rtmps"

	DefaultPort    = 1935
	DefaultTLSPort = 443
)

var ErrInvalidURL = errors.New("rtmp: invalid url")

// URL 推流地址拆解结果, Port为0表示地址里没有写端口
type URL struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	RawQuery string
	Fragment string

	App    string
	Stream string
}

// ParseURL 只接受rtmp和rtmps, 必须带host
func ParseURL(raw string) (*URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrInvalidURL, "empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidURL, "%s: %v", utils.MaskURL(raw), err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeRTMP && scheme != SchemeRTMPS {
		return nil, errors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.Wrapf(ErrInvalidURL, "%s: missing host", utils.MaskURL(raw))
	}
	ret := &URL{
		Scheme:   scheme,
		Host:     u.Hostname(),
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
		Fragment: u.EscapedFragment(),
	}
	if p := u.Port(); p != "" {
		if ret.Port, err = strconv.Atoi(p); err != nil || ret.Port <= 0 || ret.Port > 65535 {
			return nil, errors.Wrapf(ErrInvalidURL, "bad port %q", p)
		}
	}
	if ret.Path != "" && !strings.HasPrefix(ret.Path, "/") {
		ret.Path = "/" + ret.Path
	}
	ret.App, ret.Stream = SplitPath(ret.Path)
	return ret, nil
}

// SplitPath 第一段为app, 剩余部分为stream. /app/stream, /app/sub/stream
func SplitPath(path string) (app, stream string) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	switch len(segs) {
	case 0:
		return "", ""
	case 1:
		return segs[0], ""
	}
	return segs[0], strings.Join(segs[1:], "/")
}

// TLS ...
func (u *URL) TLS() bool {
	return u.Scheme == SchemeRTMPS
}

// Address 拨号地址, 没写端口时补默认端口
func (u *URL) Address() string {
	port := u.Port
	if port == 0 {
		port = DefaultPort
		if u.TLS() {
			port = DefaultTLSPort
		}
	}
	return utils.RepairHostWithPort(u.hostLiteral(), strconv.Itoa(port))
}

func (u *URL) hostLiteral() string {
	if strings.Contains(u.Host, ":") {
		return "[" + u.Host + "]"
	}
	return u.Host
}

func (u *URL) hostPort() string {
	if u.Port == 0 {
		return u.hostLiteral()
	}
	return u.hostLiteral() + ":" + strconv.Itoa(u.Port)
}

// TcURL connect命令里的tcUrl, 不带stream和query
func (u *URL) TcURL() string {
	return u.Scheme + "://" + u.hostPort() + "/" + u.App
}

// PublishName publish命令的参数, 推流鉴权参数一般放在query里
func (u *URL) PublishName() string {
	if u.RawQuery == "" {
		return u.Stream
	}
	return u.Stream + "?" + u.RawQuery
}

// String scheme://host[:port]/path[?query][#fragment]
func (u *URL) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString("://")
	sb.WriteString(u.hostPort())
	sb.WriteString(u.Path)
	if u.RawQuery != "" {
		sb.WriteString("?")
		sb.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		sb.WriteString("#")
		sb.WriteString(u.Fragment)
	}
	return sb.String()
}

// NormalizeURL 规范化rtmp地址, 路径为空时报错
func NormalizeURL(raw string) (string, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		return "", errors.Wrapf(ErrInvalidURL, "%s: missing path", utils.MaskURL(raw))
	}
	return u.String(), nil
}

func (u *URL) httpScheme() string {
	if u.TLS() {
		return "https"
	}
	return "http"
}

// ToHTTPQueryURL 拉流地址 http(s)://host[:port]/app?app=X&stream=Y[&query][#fragment], 默认端口不写
func ToHTTPQueryURL(raw string) (string, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return "", err
	}
	if u.App == "" {
		return "", errors.Wrapf(ErrInvalidURL, "%s: missing app", utils.MaskURL(raw))
	}
	host := u.hostLiteral()
	switch u.Port {
	case 0, DefaultPort, 80, DefaultTLSPort:
	default:
		host += ":" + strconv.Itoa(u.Port)
	}
	stream := u.Stream
	if stream == "" {
		stream = u.App
	}
	s := u.httpScheme() + "://" + host + "/" + u.App + "?app=" + u.App + "&stream=" + stream
	if u.RawQuery != "" {
		s += "&" + u.RawQuery
	}
	if u.Fragment != "" {
		s += "#" + u.Fragment
	}
	return s, nil
}

// ToHTTPFlvURL http-flv拉流地址, 最后一段补上.flv后缀
func ToHTTPFlvURL(raw string) (string, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return "", err
	}
	idx := strings.LastIndex(u.Path, "/")
	if u.Path == "" || idx == len(u.Path)-1 {
		return "", errors.Wrapf(ErrInvalidURL, "%s: missing stream", utils.MaskURL(raw))
	}
	base, key := u.Path[:idx+1], u.Path[idx+1:]
	if !strings.HasSuffix(strings.ToLower(key), ".flv") {
		key += ".flv"
	}
	s := u.httpScheme() + "://" + u.hostPort() + base + key
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		s += "#" + u.Fragment
	}
	return s, nil
}

// PullURLs 推流地址对应的可用拉流地址, 去重
func PullURLs(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range []func(string) (string, error){NormalizeURL, ToHTTPQueryURL, ToHTTPFlvURL} {
		if s, err := f(raw); err == nil && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
