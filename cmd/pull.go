package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bugVanisher/avpush/downstream"
	"github.com/bugVanisher/avpush/media/protocol/rtmp"
)

var downstreamCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull http-flv to verify a pushed stream",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		pullURL := down.pUrl
		// 给的是推流地址时换成http-flv地址
		if strings.HasPrefix(strings.ToLower(pullURL), "rtmp") {
			if pullURL, err = rtmp.ToHTTPFlvURL(pullURL); err != nil {
				return err
			}
		}
		var writer io.Writer
		if down.outFile != "" {
			file, err := os.OpenFile(down.outFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			defer func(file *os.File) {
				if err := file.Close(); err != nil {
					log.Warn().Err(err).Str("file", file.Name()).Msg("close output")
				}
			}(file)
			writer = file
		}
		d := downstream.NewFlvDownStreamer(pullURL, writer)
		got, err := downstream.Launch("download", d, duration)
		if err != nil {
			return err
		}
		if !got {
			log.Warn().Str("url", pullURL).Msg("[pull] no data")
		}
		log.Info().Any("result", d.Result()).Msg("[pull] done")
		return nil
	},
}

type downstreamArgs struct {
	pUrl    string
	outFile string
}

var down downstreamArgs

func init() {
	rootCmd.AddCommand(downstreamCmd)

	downstreamCmd.Flags().StringVarP(&down.pUrl, "url", "u", "", "Downstream URL, http-flv or the rtmp push url")
	downstreamCmd.MarkFlagRequired("url")
	downstreamCmd.Flags().StringVarP(&down.outFile, "file", "f", "", "File to save")
}
