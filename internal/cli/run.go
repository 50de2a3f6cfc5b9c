package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/tableflow/internal/graphfile"
	"github.com/shaiso/tableflow/internal/mq"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunSubmitCmd(clientFn, outputFn),
		newRunEnqueueCmd(outputFn),
		newRunStatusCmd(clientFn, outputFn),
		newRunResultCmd(clientFn, outputFn),
		newRunPauseCmd(clientFn, outputFn),
		newRunResumeCmd(clientFn, outputFn),
		newRunWatchCmd(clientFn, outputFn),
		newRunDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "STATUS", "BLOCK", "ROWS", "PARTIAL", "CREATED"}

func runRow(r *RunResponse) []string {
	return []string{
		r.ID,
		r.Status,
		fmt.Sprintf("%d/%d", r.CurrentBlockIndex, len(r.Blocks)),
		strconv.Itoa(r.ResultRowCount),
		strconv.FormatBool(r.IsPartial),
		r.CreatedAt,
	}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(status)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, paused, completed, failed)")

	return cmd
}

func newRunSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a workflow file (.json or .hcl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := graphfile.LoadFile(args[0])
			if err != nil {
				return err
			}

			resp, err := client.SubmitRun(SubmitRequestFromWorkflow(wf))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run submitted: %s", resp.ID))
			if !wait {
				out.Print([]string{"ID", "STATUS"}, [][]string{{resp.ID, resp.Status}}, resp)
				return nil
			}

			return watchRun(cmd.Context(), client, out, resp.ID, interval)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the run completes, fails or pauses")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval for --wait")

	return cmd
}

func newRunEnqueueCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "enqueue FILE",
		Short: "Publish a workflow file to the runs.submit queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := graphfile.LoadFile(args[0])
			if err != nil {
				return err
			}

			conn, err := mq.NewConnection(mq.ConnectionConfig{URL: amqpURL, Name: "tableflow-cli"})
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}

			payload := mq.RunSubmitPayload{
				Nodes: wf.Graph.Nodes,
				Edges: wf.Graph.Edges,
				Order: wf.Order,
			}
			if err := mq.NewPublisher(conn, nil).PublishRunSubmit(ctx, payload); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow enqueued: %d blocks", len(wf.Graph.Nodes)))
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", mq.DefaultURL(), "RabbitMQ URL")

	return cmd
}

func newRunStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show run status and block progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(run)
				return nil
			}

			out.Table(runHeaders, [][]string{runRow(run)})
			if run.Error != "" {
				out.Error(run.Error)
			}
			fmt.Fprintln(out.w)
			out.Table(blockHeaders, blockRows(run))
			return nil
		},
	}
}

var blockHeaders = []string{"#", "BLOCK", "TYPE", "STATUS", "PROGRESS", "ERROR"}

func blockRows(run *RunResponse) [][]string {
	rows := make([][]string, len(run.Blocks))
	for i, b := range run.Blocks {
		rows[i] = []string{
			strconv.Itoa(i),
			b.BlockID,
			b.BlockType,
			b.Status,
			strconv.Itoa(b.Progress) + "%",
			b.Error,
		}
	}
	return rows
}

func newRunResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "result ID",
		Short: "Fetch the run result (full or partial)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if format == "table" {
				result, err := client.GetResult(args[0])
				if err != nil {
					return err
				}
				if result.IsPartial {
					out.Success("Partial result: not every block has completed")
				}
				out.Print(result.Columns, ResultRows(result.Columns, result.Rows), result)
				return nil
			}

			w, closeFn, err := openOutput(output, out.w)
			if err != nil {
				return err
			}
			defer closeFn()

			return client.DownloadResult(args[0], format, w)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, csv, msgpack")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func newRunPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a run at the next block boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.PauseRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pause requested: %s (%s)", run.ID, run.Status))
			return nil
		},
	}
}

func newRunResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a paused run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.ResumeRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run resumed: %s (%s)", run.ID, run.Status))
			return nil
		},
	}
}

func newRunWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll a run until it completes, fails or pauses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRun(cmd.Context(), clientFn(), outputFn(), args[0], interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")

	return cmd
}

func newRunDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a finished or paused run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteRun(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Run deleted: %s", args[0]))
			return nil
		},
	}
}

// ErrRunFailed — run, за которым следил watch, завершился с ошибкой.
var ErrRunFailed = errors.New("run failed")

// watchRun опрашивает run и печатает изменения прогресса, пока run
// не завершится или не встанет на паузу.
func watchRun(ctx context.Context, client *Client, out *Output, id string, interval time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		run, err := client.GetRun(id)
		if err != nil {
			return err
		}

		if line := progressLine(run); line != last {
			out.Success(line)
			last = line
		}

		if run.IsSettled() {
			if out.jsonMode {
				out.JSON(run)
			}
			if run.Status == "failed" {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// progressLine — однострочная сводка: статус и текущий блок.
func progressLine(run *RunResponse) string {
	line := fmt.Sprintf("[%s] %s", run.ID, run.Status)
	if i := run.CurrentBlockIndex; i < len(run.Blocks) {
		b := run.Blocks[i]
		line += fmt.Sprintf(" block %d/%d %s (%s) %d%%", i+1, len(run.Blocks), b.BlockID, b.BlockType, b.Progress)
	}
	if run.HasResult {
		line += fmt.Sprintf(" rows=%d", run.ResultRowCount)
	}
	return line
}

// SubmitRequestFromWorkflow переводит граф из файла в запрос API.
func SubmitRequestFromWorkflow(wf *graphfile.Workflow) SubmitRunRequest {
	req := SubmitRunRequest{
		Nodes: make([]BlockSpec, len(wf.Graph.Nodes)),
		Edges: make([]Edge, len(wf.Graph.Edges)),
		Order: wf.Order,
	}
	for i, n := range wf.Graph.Nodes {
		req.Nodes[i] = BlockSpec{ID: n.ID, Type: string(n.Type), Config: n.Config}
	}
	for i, e := range wf.Graph.Edges {
		req.Edges[i] = Edge{Source: e.Source, Target: e.Target}
	}
	return req
}

// openOutput открывает файл path или возвращает fallback, если path пуст.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
