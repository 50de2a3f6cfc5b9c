package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewBlockCmd создаёт группу команд для типов блоков.
func NewBlockCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Inspect block types",
	}

	cmd.AddCommand(newBlockListCmd(clientFn, outputFn))

	return cmd
}

func newBlockListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List block types and their config fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schemas, err := client.ListBlockTypes()
			if err != nil {
				return err
			}

			headers := []string{"TYPE", "NAME", "FIELDS", "DESCRIPTION"}
			rows := make([][]string, len(schemas))
			for i, s := range schemas {
				fields := make([]string, len(s.Fields))
				for j, f := range s.Fields {
					fields[j] = f.Name
					if f.Required {
						fields[j] += "*"
					}
				}
				rows[i] = []string{s.Type, s.Name, strings.Join(fields, ","), s.Description}
			}

			out.Print(headers, rows, schemas)
			return nil
		},
	}
}
