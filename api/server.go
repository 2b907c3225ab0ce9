package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/pusher"
)

// Streams 正在推的流, 默认是pusher包里的全局管理器
type Streams interface {
	List() []pusher.StreamInfo
	Lookup(name string) (pusher.StreamInfo, bool)
	Stop(name string) error
}

type managerStreams struct{}

func (managerStreams) List() []pusher.StreamInfo { return pusher.GetAllStreamInfos() }
func (managerStreams) Lookup(name string) (pusher.StreamInfo, bool) { return pusher.Lookup(name) }
func (managerStreams) Stop(name string) error { return pusher.Stop(name) }

// Response 统一的返回结构
type Response struct {
	Code int32       `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

type Options struct {
	Streams  Streams
	Gatherer prometheus.Gatherer
}

type Option func(*Options)

func WithStreams(s Streams) Option {
	return func(opts *Options) {
		opts.Streams = s
	}
}

// WithGatherer /metrics 输出的registry, 默认prometheus.DefaultGatherer
func WithGatherer(g prometheus.Gatherer) Option {
	return func(opts *Options) {
		opts.Gatherer = g
	}
}

// Server 查询和控制推流的http接口
type Server struct {
	addr    string
	opts    Options
	router  *gin.Engine
	httpSrv *http.Server
}

func NewServer(addr string, opt ...Option) *Server {
	opts := Options{Streams: managerStreams{}, Gatherer: prometheus.DefaultGatherer}
	for _, o := range opt {
		o(&opts)
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(accessLog(), gin.Recovery())

	s := &Server{addr: addr, opts: opts, router: router}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/ping", s.ping)
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/streams", s.listStreams)
		v1.GET("/streams/:name", s.getStream)
		v1.POST("/streams/:name/stop", s.stopStream)
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
}

// Handler 测试用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 阻塞直到ctx结束, 结束时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("[api] listen")
		errc <- s.httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return errs.Wrapf(err, "api: listen %s", s.addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[api] shutdown")
	}
	return nil
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Msg: errs.Success, Data: "pong"})
}

func (s *Server) listStreams(c *gin.Context) {
	infos := s.opts.Streams.List()
	if infos == nil {
		infos = []pusher.StreamInfo{}
	}
	c.JSON(http.StatusOK, Response{Msg: errs.Success, Data: infos})
}

func (s *Server) getStream(c *gin.Context) {
	info, ok := s.opts.Streams.Lookup(c.Param("name"))
	if !ok {
		fail(c, http.StatusNotFound, errs.ErrStreamNotExist)
		return
	}
	c.JSON(http.StatusOK, Response{Msg: errs.Success, Data: info})
}

func (s *Server) stopStream(c *gin.Context) {
	name := c.Param("name")
	if err := s.opts.Streams.Stop(name); err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	log.Info().Str("name", name).Msg("[api] stop stream")
	c.JSON(http.StatusOK, Response{Msg: errs.Success})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Code: errs.Code(err), Msg: errs.Msg(err)})
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("cost", time.Since(start)).
			Msg("[api] request")
	}
}
