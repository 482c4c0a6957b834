package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
	"mercator-hq/shuttle/pkg/requestid"
)

var idFlags struct {
	count  int
	output string
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Generate and decode request identifiers",
	Long: `Generate and decode request identifiers.

A request identifier has the form req_<32 hex characters> where the hex part
is a version 7 UUID. Its first 48 bits hold the creation time, so an
identifier copied from a log line or an X-Request-ID header tells when the
request arrived.

Examples:
  # Generate one identifier
  shuttle id new

  # Generate five identifiers
  shuttle id new -n 5

  # Decode an identifier
  shuttle id decode req_0190f5a3c2d87c1e9a4b5f6e7d8c9b0a --output json`,
}

var idNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate request identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if idFlags.count < 1 {
			return fmt.Errorf("count must be at least 1, got %d", idFlags.count)
		}
		for range idFlags.count {
			id, err := requestid.New()
			if err != nil {
				return cli.NewCommandError("id new", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

// decodedID is printed by id decode.
type decodedID struct {
	ID      string    `json:"id" yaml:"id"`
	UUID    string    `json:"uuid" yaml:"uuid"`
	Created time.Time `json:"created" yaml:"created"`
}

func (d decodedID) String() string {
	return fmt.Sprintf("ID:      %s\nUUID:    %s\nCreated: %s", d.ID, d.UUID, d.Created.Format(time.RFC3339Nano))
}

var idDecodeCmd = &cobra.Command{
	Use:   "decode <id>",
	Short: "Decode a request identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(idFlags.output)
		if err != nil {
			return err
		}
		decoded, err := decodeID(args[0])
		if err != nil {
			return err
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), decoded)
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.AddCommand(idNewCmd, idDecodeCmd)

	idNewCmd.Flags().IntVarP(&idFlags.count, "count", "n", 1, "number of identifiers to generate")
	idDecodeCmd.Flags().StringVarP(&idFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

func decodeID(s string) (decodedID, error) {
	id, err := requestid.Parse(s)
	if err != nil {
		return decodedID{}, err
	}
	b, err := id.Bytes()
	if err != nil {
		return decodedID{}, err
	}
	created, err := id.Time()
	if err != nil {
		return decodedID{}, err
	}
	return decodedID{
		ID:      id.String(),
		UUID:    uuid.UUID(b).String(),
		Created: created.UTC(),
	}, nil
}
