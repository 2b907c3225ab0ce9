package cmd

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avpush",
	Short: "Live audio/video push over RTMP and SRT.",
	Long: `avpush pushes a flv source to one or more rtmp/srt endpoints at once,
with priority based failover or simultaneous push, and can pull the
result back over http-flv to verify it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel, logJSON, logCaller)
	},
	Version:          "v1.0.0",
	TraverseChildren: true, // parses flags on all parents before executing child command
	SilenceUsage:     true, // silence usage when an error occurs
}

var (
	logLevel  string
	logJSON   bool
	logCaller bool
	duration  time.Duration
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() int {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "INFO", "set log level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "set log to json format (default colorized console)")
	rootCmd.PersistentFlags().BoolVar(&logCaller, "log-caller", false, "add file:line to every log line")
	rootCmd.PersistentFlags().DurationVarP(&duration, "duration", "d", 60*time.Second, "set duration, 0 means until interrupted")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("avpush exit")
		return 1
	}
	return 0
}

func initLogger(logLevel string, logJSON, caller bool) {
	// Error Logging with Stacktrace
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// set log timestamp precise to milliseconds
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z0700"

	var writer io.Writer = os.Stderr
	if !logJSON {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
			NoColor:    runtime.GOOS == "windows",
		}
	}
	ctx := zerolog.New(writer).With().Timestamp().Int("pid", os.Getpid())
	if caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	// 不认识的级别保持INFO
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", logLevel).Msg("unknown log level, use info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("log_level", level.String()).Bool("json", logJSON).Msg("logger ready")
}
