package commands

import (
	"github.com/dyluth/tally/internal/printer"
	"github.com/spf13/cobra"
)

func newRelaysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "relays",
		Short: "Check which configured relays accept connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelays(cmd, a)
		},
	}
}

func runRelays(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()

	resolver, store, err := newResolver(ctx, resolverOptions(a.config), a.config)
	if err != nil {
		return err
	}
	defer store.Close()

	up := 0
	results := resolver.ProbeRelays(ctx)
	for _, r := range results {
		printer.RelayStatus(r.Endpoint, r.Latency, r.Err)
		if r.Err == nil {
			up++
		}
	}

	if up == 0 {
		return printer.Error(
			"no relay reachable",
			"None of the configured relays accepted a connection.",
			[]string{"Check your network connection", "Configure other relays in tally.yml or TALLY_RELAYS"},
		)
	}
	printer.Printf("\n%d of %d relays reachable\n", up, len(results))
	return nil
}
