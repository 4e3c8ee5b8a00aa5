package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/tally/internal/filter"
	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/internal/printer"
	"github.com/dyluth/tally/internal/thread"
	"github.com/dyluth/tally/internal/timespec"
	"github.com/dyluth/tally/pkg/relay"
	"github.com/spf13/cobra"
)

type threadOptions struct {
	output   string
	since    string
	until    string
	author   string
	search   string
	relays   []string
	maxDepth int
	maxTotal int
}

func newThreadCmd(a *app) *cobra.Command {
	o := &threadOptions{}

	cmd := &cobra.Command{
		Use:   "thread REFERENCE",
		Short: "Resolve a thread and print it",
		Long: `Resolve a Nostr thread from any of its events and print the root post with
every reply found.

REFERENCE may be a note1..., nevent1..., naddr1... or 64-character hex event
id. If it points at a reply, the thread's root is found first. Relay hints
embedded in nevent/naddr references are queried in addition to the
configured relays.

Output Formats:
  text  - ORIGINAL POST / REPLIES block, replies most recent first
  jsonl - Line-delimited JSON, one reply per line
  table - Compact human-readable table

Reply Filters (applied after resolution):
  --since  - Only replies created after this time
  --until  - Only replies created before this time
  --author - Only replies by this author (npub or hex)
  --search - Only replies whose content contains this text

Examples:
  # Resolve a thread from a note id
  tally thread note1...

  # Recent replies as JSONL for piping to jq
  tally thread nevent1... --output=jsonl --since=2h | jq -r .content

  # Walk deeper with an extra relay
  tally thread <hex> --max-depth=4 --relay=wss://relay.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThread(cmd, a, o, args[0])
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "Output format: text, jsonl or table")
	cmd.Flags().StringVar(&o.since, "since", "", "Show replies after time (duration or RFC3339)")
	cmd.Flags().StringVar(&o.until, "until", "", "Show replies before time (duration or RFC3339)")
	cmd.Flags().StringVar(&o.author, "author", "", "Filter replies by author (npub or hex)")
	cmd.Flags().StringVar(&o.search, "search", "", "Filter replies by content substring")
	cmd.Flags().StringSliceVar(&o.relays, "relay", nil, "Additional relay to query (repeatable)")
	cmd.Flags().IntVar(&o.maxDepth, "max-depth", 0, "Reply levels to walk (overrides config)")
	cmd.Flags().IntVar(&o.maxTotal, "max-total", 0, "Maximum replies to collect (overrides config)")

	return cmd
}

func runThread(cmd *cobra.Command, a *app, o *threadOptions, reference string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Phase 1: validate flags
	format, err := thread.ParseOutputFormat(o.output)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", o.output),
			[]string{"Valid formats: text, jsonl, table"},
		)
	}

	since, until, err := timespec.ParseRange(o.since, o.until)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	criteria := &filter.Criteria{Since: since, Until: until, Search: o.search}
	if o.author != "" {
		pk, err := ident.DecodePubKey(o.author)
		if err != nil {
			return printer.Error(
				"invalid author",
				err.Error(),
				[]string{"Use an npub1... key or 64-character hex pubkey"},
			)
		}
		criteria.Author = pk
	}

	for _, r := range o.relays {
		if _, ok := relay.NormalizeEndpoint(r); !ok {
			return printer.Error(
				"invalid relay URL",
				fmt.Sprintf("Not a websocket URL: %s", r),
				[]string{"Use a ws:// or wss:// URL, e.g. --relay=wss://relay.example.com"},
			)
		}
	}

	// Phase 2: build the resolver
	opts := resolverOptions(a.config)
	opts.Relays = relay.Endpoints(opts.Relays, o.relays)
	if cmd.Flags().Changed("max-depth") {
		opts.Limits.MaxDepth = o.maxDepth
	}
	if cmd.Flags().Changed("max-total") {
		opts.Limits.MaxTotal = o.maxTotal
	}
	if err := opts.Limits.Validate(); err != nil {
		return printer.Error(
			"invalid limits",
			err.Error(),
			[]string{"--max-depth and --max-total must be at least 1"},
		)
	}

	resolver, store, err := newResolver(ctx, opts, a.config)
	if err != nil {
		return err
	}
	defer store.Close()

	// Phase 3: resolve
	resolved, err := resolver.Resolve(ctx, reference)
	if err != nil {
		if ident.IsInvalidReference(err) {
			return printer.Error(
				"invalid thread reference",
				err.Error(),
				[]string{"Use a note1..., nevent1..., naddr1... or 64-character hex event id"},
			)
		}
		if thread.IsAllRelaysFailed(err) {
			return printer.ErrorWithContext(
				"no relay answered",
				"Every relay failed or timed out, and nothing was found.",
				map[string]string{"Relays": strings.Join(opts.Relays, ", ")},
				[]string{
					"Check relay reachability:\n  tally relays",
					"Add a relay that carries this thread:\n  tally thread REFERENCE --relay=wss://...",
				},
			)
		}
		return fmt.Errorf("failed to resolve thread: %w", err)
	}

	if !resolved.RootFound {
		printer.Warning("Root event %s was not found on any relay; showing replies only\n", resolved.Root.ID.Short())
	}
	if resolved.Stats.Walk.Truncated {
		printer.Warning("Reply limit of %d reached; the thread may have more replies\n", opts.Limits.MaxTotal)
	}

	// Phase 4: filter and print
	resolved.Replies = criteria.Apply(resolved.Replies)

	switch format {
	case thread.OutputFormatJSONL:
		if err := thread.FormatJSONL(out, resolved.Replies, resolved.Authors); err != nil {
			return fmt.Errorf("failed to write replies: %w", err)
		}
	case thread.OutputFormatTable:
		thread.FormatTable(out, resolved.Root, resolved.Replies, resolved.Authors, time.Now())
	default:
		fmt.Fprint(out, resolved.Text())
	}

	return nil
}
