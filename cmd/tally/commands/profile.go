package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/internal/printer"
	"github.com/dyluth/tally/internal/thread"
	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile AUTHOR",
		Short: "Fetch an author's profile",
		Long: `Fetch the newest profile (kind 0 metadata) of an author from the configured
relays. AUTHOR may be an npub1..., nprofile1... or 64-character hex pubkey.

Examples:
  tally profile npub1...
  tally profile npub1... --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, a, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile as JSON")
	return cmd
}

func runProfile(cmd *cobra.Command, a *app, reference string, asJSON bool) error {
	ctx := cmd.Context()

	resolver, store, err := newResolver(ctx, resolverOptions(a.config), a.config)
	if err != nil {
		return err
	}
	defer store.Close()

	profile, found, err := resolver.ResolveProfile(ctx, reference)
	if err != nil {
		if ident.IsInvalidReference(err) {
			return printer.Error(
				"invalid author",
				err.Error(),
				[]string{"Use an npub1..., nprofile1... or 64-character hex pubkey"},
			)
		}
		if thread.IsAllRelaysFailed(err) {
			return printer.Error(
				"no relay answered",
				"Every relay failed or timed out.",
				[]string{"Check relay reachability:\n  tally relays"},
			)
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	if !found {
		return printer.Error(
			"profile not found",
			fmt.Sprintf("No relay returned a usable profile for %s.", reference),
			[]string{"The author may never have published metadata, or uses other relays:\n  tally profile AUTHOR --config=<file with more relays>"},
		)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	fmt.Fprintf(out, "Name:      %s\n", profile.Label())
	fmt.Fprintf(out, "Pubkey:    %s\n", profile.PubKey)
	if profile.Nip05 != "" {
		fmt.Fprintf(out, "NIP-05:    %s\n", profile.Nip05)
	}
	if lightning := firstNonEmpty(profile.Lud16, profile.Lud06); lightning != "" {
		fmt.Fprintf(out, "Lightning: %s\n", lightning)
	}
	if profile.Website != "" {
		fmt.Fprintf(out, "Website:   %s\n", profile.Website)
	}
	if profile.UpdatedAt > 0 {
		fmt.Fprintf(out, "Updated:   %s\n", time.Unix(profile.UpdatedAt, 0).UTC().Format(time.RFC3339))
	}
	if profile.About != "" {
		fmt.Fprintf(out, "\n%s\n", profile.About)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
