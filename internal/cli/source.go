package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSourceCmd создаёт группу команд для источников (CSV таблиц сервера).
func NewSourceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage source tables",
	}

	cmd.AddCommand(
		newSourceListCmd(clientFn, outputFn),
		newSourceUploadCmd(clientFn, outputFn),
		newSourceDownloadCmd(clientFn, outputFn),
		newSourcePreviewCmd(clientFn, outputFn),
	)

	return cmd
}

func newSourceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List source tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sources, err := client.ListSources()
			if err != nil {
				return err
			}

			rows := make([][]string, len(sources))
			for i, s := range sources {
				rows[i] = sourceRow(s)
			}

			out.Print([]string{"NAME", "SIZE", "UPDATED"}, rows, sources)
			return nil
		},
	}
}

func newSourceUploadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV file as a source table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if name == "" {
				name = filepath.Base(args[0])
			}

			preview, err := client.UploadSource(name, f)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Source uploaded: %s (%d rows)", preview.Name, preview.RowCount))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Source name (default: file name)")

	return cmd
}

func newSourceDownloadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download NAME",
		Short: "Download a source table as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			w, closeFn, err := openOutput(output, out.w)
			if err != nil {
				return err
			}
			defer closeFn()

			return client.DownloadSource(args[0], w)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func newSourcePreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "preview NAME",
		Short: "Show the first rows of a source table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			preview, err := client.PreviewSource(args[0], rows)
			if err != nil {
				return err
			}

			if !out.jsonMode {
				out.Success(fmt.Sprintf("%s: %d rows", preview.Name, preview.RowCount))
			}
			out.Print(preview.Columns, ResultRows(preview.Columns, preview.Rows), preview)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 10, "Number of rows")

	return cmd
}

// sourceRow — строка таблицы источников.
func sourceRow(s SourceResponse) []string {
	return []string{s.Name, strconv.FormatInt(s.Size, 10), s.UpdatedAt}
}
