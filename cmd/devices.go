// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"

	"audiotools/internal/audio"
	applog "audiotools/internal/log"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer func() {
				if err := audio.Terminate(); err != nil {
					applog.Errorf("%v", err)
				}
			}()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}
