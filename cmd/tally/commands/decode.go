package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/tally/internal/ident"
	"github.com/dyluth/tally/internal/printer"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"
)

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode REFERENCE",
		Short: "Show what a thread reference points at",
		Long: `Decode a note1, nevent1, naddr1 or hex reference without touching the network.

Examples:
  tally decode nevent1...
  tally decode 3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, args[0])
		},
	}
}

func runDecode(cmd *cobra.Command, reference string) error {
	ptr, err := ident.Decode(reference)
	if err != nil {
		return printer.Error(
			"invalid thread reference",
			err.Error(),
			[]string{"Use a note1..., nevent1..., naddr1... or 64-character hex event id"},
		)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Kind:       %s\n", ptr.Kind)
	fmt.Fprintf(out, "Lookup:     %s\n", ptr.LookupKey())

	if ptr.Address != nil {
		fmt.Fprintf(out, "Address:    %s\n", ptr.Address.Coordinate())
		fmt.Fprintf(out, "Identifier: %s\n", ptr.Address.Identifier)
		fmt.Fprintf(out, "Author:     %s\n", ptr.Address.Author)
	} else {
		fmt.Fprintf(out, "ID:         %s\n", ptr.ID)
		if note, err := nip19.EncodeNote(string(ptr.ID)); err == nil {
			fmt.Fprintf(out, "Note:       %s\n", note)
		}
		if ptr.Author != "" {
			fmt.Fprintf(out, "Author:     %s\n", ptr.Author)
		}
	}

	if len(ptr.Relays) > 0 {
		fmt.Fprintf(out, "Relays:     %s\n", strings.Join(ptr.Relays, ", "))
	}
	return nil
}
