package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bugVanisher/avpush/api"
	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/metrics"
	"github.com/bugVanisher/avpush/pusher"
	"github.com/bugVanisher/avpush/transport"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a flv file to one or more rtmp/srt urls",
	Example: `  avpush push -u rtmp://127.0.0.1/live/test -f test.flv
  avpush push -u rtmp://a/live/k -u srt://b:9000?streamid=k -f test.flv --simultaneous
  avpush push -c session.json --http-addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		session, name, d, err := up.session()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if up.httpAddr == "" {
			return pusher.LaunchContext(ctx, name, session, d)
		}
		g, ctx := errgroup.WithContext(ctx)
		apiCtx, apiCancel := context.WithCancel(ctx)
		g.Go(func() error {
			return api.NewServer(up.httpAddr).Run(apiCtx)
		})
		g.Go(func() error {
			defer apiCancel()
			return pusher.LaunchContext(ctx, name, session, d)
		})
		return g.Wait()
	},
}

type upstreamArgs struct {
	urls         []string
	sourceFile   string
	configFile   string
	name         string
	loop         bool
	simultaneous bool
	noFallback   bool
	maxRetries   int
	chunkSize    int
	httpAddr     string
}

var up upstreamArgs

// 默认registry只能注册一次
var pushMetrics = sync.OnceValue(func() *metrics.Metrics { return metrics.New(nil) })

func (a upstreamArgs) session() (*pusher.Session, string, time.Duration, error) {
	opts := []pusher.Option{pusher.WithMetrics(pushMetrics())}
	name, source, loop, d := a.name, a.sourceFile, a.loop, duration
	var configs []transport.Config

	if a.configFile != "" {
		fc, err := pusher.LoadConfig(a.configFile)
		if err != nil {
			return nil, "", 0, err
		}
		if configs, err = fc.TransportConfigs(); err != nil {
			return nil, "", 0, err
		}
		opts = append(opts, fc.Options()...)
		if fc.Name != "" {
			name = fc.Name
		}
		if source == "" {
			source, loop = fc.Source, fc.Loop
		}
		if fc.Duration > 0 {
			d = time.Duration(fc.Duration)
		}
	}
	for i, u := range a.urls {
		cfg, err := a.urlConfig(u, len(configs)+i)
		if err != nil {
			return nil, "", 0, err
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return nil, "", 0, errs.ConfigurationError(errs.KindInvalidParameter, "at least one --url or --config is required")
	}
	if source == "" {
		return nil, "", 0, errs.ConfigurationError(errs.KindInvalidParameter, "no source file")
	}

	if a.simultaneous {
		opts = append(opts, pusher.WithSimultaneousPush(true))
	}
	if a.noFallback {
		opts = append(opts, pusher.WithFallback(false))
	}
	opts = append(opts, pusher.WithEncoders(pusher.NewFileSource(source, loop)))
	log.Info().Str("name", name).Str("source", source).Int("transports", len(configs)).Msg("[push] session")
	return pusher.NewSession(configs, opts...), name, d, nil
}

// urlConfig 命令行上的地址按出现顺序决定优先级
func (a upstreamArgs) urlConfig(u string, priority int) (transport.Config, error) {
	cfg, err := transport.ConfigFromURL(u)
	if err != nil {
		return nil, err
	}
	switch c := cfg.(type) {
	case transport.RtmpConfig:
		c.Priority = priority
		if a.chunkSize > 0 {
			c.ChunkSize = a.chunkSize
		}
		if a.maxRetries >= 0 {
			c.RetryPolicy.MaxRetries = a.maxRetries
		}
		return c, nil
	case transport.SrtConfig:
		c.Priority = priority
		if a.maxRetries >= 0 {
			c.RetryPolicy.MaxRetries = a.maxRetries
		}
		return c, nil
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(pushCmd)

	pushCmd.Flags().StringSliceVarP(&up.urls, "url", "u", nil, "Upstream URL, repeatable, earlier means higher priority")
	pushCmd.Flags().StringVarP(&up.sourceFile, "file", "f", "", "File to upstream, local path or http(s) url")
	pushCmd.Flags().StringVarP(&up.configFile, "config", "c", "", "Session config file (json)")
	pushCmd.Flags().StringVarP(&up.name, "name", "n", "avpush", "Stream name")
	pushCmd.Flags().BoolVar(&up.loop, "loop", false, "Loop the source file")
	pushCmd.Flags().BoolVar(&up.simultaneous, "simultaneous", false, "Push to every connected url at the same time")
	pushCmd.Flags().BoolVar(&up.noFallback, "no-fallback", false, "Do not switch to another url when the primary fails")
	pushCmd.Flags().IntVar(&up.maxRetries, "max-retries", -1, "Reconnect attempts per url, -1 keeps the default")
	pushCmd.Flags().IntVar(&up.chunkSize, "chunk-size", 0, "RTMP outgoing chunk size")
	pushCmd.Flags().StringVar(&up.httpAddr, "http-addr", "", "Serve the status api and /metrics on this address")
}
