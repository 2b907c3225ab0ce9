package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bugVanisher/avpush/media/protocol/rtmp"
	"github.com/bugVanisher/avpush/transport"
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Inspect streaming urls",
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <url>",
	Short: "Print the normalized rtmp url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rtmp.NormalizeURL(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}

var pullURLCmd = &cobra.Command{
	Use:   "pull-url <url>",
	Short: "Print the pull urls of an rtmp push url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := rtmp.PullURLs(args[0])
		if len(urls) == 0 {
			if _, err := rtmp.ParseURL(args[0]); err != nil {
				return err
			}
			return rtmp.ErrInvalidURL
		}
		for _, u := range urls {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <url>",
	Short: "Print the protocol of a push url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := transport.DetectProtocol(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
	urlCmd.AddCommand(normalizeCmd, pullURLCmd, detectCmd)
}
