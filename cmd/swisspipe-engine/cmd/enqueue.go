package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openobserve/swisspipe-engine/pkg/ingress"
	"github.com/openobserve/swisspipe-engine/pkg/logging"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
)

var (
	enqueueWorkflowID string
	enqueueDataJSON   string
	enqueuePriority   int
)

// enqueueCmd is the operator escape hatch for submitting an execution
// without going through whatever HTTP ingestion surface fronts this core
// (spec.md §1: that surface is out of scope here). It calls the same
// ingress.Service.CreateExecution path a route handler would (spec §6).
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Create an execution for a workflow and enqueue its root job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var data map[string]any
		if err := json.Unmarshal([]byte(enqueueDataJSON), &data); err != nil {
			return fmt.Errorf("parse --data as JSON: %w", err)
		}

		log, err := logging.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer log.Sync()

		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		svc := ingress.New(st, queue.New(st), log)
		priority := enqueuePriority
		executionID, err := svc.CreateExecution(ctx, ingress.CreateExecutionRequest{
			WorkflowID: enqueueWorkflowID,
			Data:       data,
			Priority:   &priority,
		})
		if err != nil {
			return err
		}

		cmd.Println(executionID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueWorkflowID, "workflow-id", "", "workflow to execute (required)")
	enqueueCmd.Flags().StringVar(&enqueueDataJSON, "data", "{}", "JSON object to use as the execution's input data")
	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "job priority, higher runs first")
	_ = enqueueCmd.MarkFlagRequired("workflow-id")
	rootCmd.AddCommand(enqueueCmd)
}
