package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"geolynx/internal/api/handlers"
)

func newLookupCmd(load configLoader) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "lookup IP [IP...]",
		Short: "Resolve IP addresses against the local databases and print JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			// Keep stdout clean for the JSON output.
			logger = logger.WithWriter(cmd.ErrOrStderr())

			a, err := newApp(cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			results := make([]handlers.IPResponse, 0, len(args))
			for _, ip := range args {
				results = append(results, handlers.IPResponse{IP: ip, Data: a.service.GetIPMetadata(ip)})
			}

			var out []byte
			if compact {
				out, err = json.Marshal(results)
			} else {
				out, err = json.MarshalIndent(results, "", "  ")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print single-line JSON")
	return cmd
}
