package main

import (
	"fmt"
	"os"

	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/hub"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Seed synthetic tasks and exercise the claim/lease loop",
	Long: `bench creates a batch of synthetic tasks against a throwaway
in-process hub, then drives a small pool of simulated agents through
poll_and_claim / release_task_claim against them, reporting how many
claims each agent completed and how many poll calls failed.

This is a load-shape smoke test, not a correctness suite: it exercises
the same dispatch path a real agent would, just without a network hop.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Int("tasks", 200, "Number of synthetic tasks to seed")
	benchCmd.Flags().Int("agents", 8, "Number of simulated agents, polled in turn")
	benchCmd.Flags().String("data-dir", "", "Data directory for the benchmark run (default: a temp dir)")
}

func runBench(cmd *cobra.Command, args []string) error {
	taskCount, _ := cmd.Flags().GetInt("tasks")
	agentCount, _ := cmd.Flags().GetInt("agents")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		tmp, err := os.MkdirTemp("", "caephub-bench-*")
		if err != nil {
			return fmt.Errorf("failed to create temp data dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		dataDir = tmp
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}
	eng, err := engine.New(engine.Config{NodeID: "bench-1", DataDir: dataDir}, store)
	if err != nil {
		return fmt.Errorf("failed to start engine: %v", err)
	}
	defer eng.Shutdown()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	cfg := config.Default()
	cfg.DataDir = dataDir
	h := hub.New(eng, cfg, broker, nil)
	h.Start()
	defer h.Stop()

	fmt.Printf("Seeding %d tasks...\n", taskCount)
	bar := progressbar.Default(int64(taskCount), "seeding")
	priorities := []types.TaskPriority{types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityCritical}
	taskIDs := make([]int64, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		resp := h.CreateTask(hub.CreateTaskRequest{
			Title:     fmt.Sprintf("synthetic task %d", i),
			CreatedBy: "bench",
			Priority:  priorities[i%len(priorities)],
		})
		if resp["success"].(bool) {
			task := resp["task"].(map[string]interface{})
			taskIDs = append(taskIDs, int64(task["id"].(float64)))
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\nDraining with %d agents...\n", agentCount)
	claimed := make(map[string]int, agentCount)
	failed := 0
	drainBar := progressbar.Default(int64(len(taskIDs)), "draining")
	for range taskIDs {
		claimedAny := false
		for a := 0; a < agentCount; a++ {
			agentID := fmt.Sprintf("bench-agent-%d", a)
			poll := h.PollAndClaim(hub.PollAndClaimRequest{
				Agent:          agentID,
				RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeAny},
			})
			if !poll["success"].(bool) {
				failed++
				continue
			}
			if poll["task"] == nil {
				continue
			}
			task := poll["task"].(map[string]interface{})
			taskID := int64(task["id"].(float64))
			claimedAny = true
			claimed[agentID]++

			confidence := 1.0
			verified := true
			evidence := []string{"bench-run"}
			verifiedBy := agentID
			release := h.ReleaseTaskClaim(hub.ReleaseTaskClaimRequest{
				TaskID: taskID, Agent: agentID, NextStatus: types.TaskStatusDone,
				Confidence: &confidence, VerificationPassed: &verified,
				VerifiedBy: &verifiedBy, EvidenceRefs: &evidence,
			})
			if !release["success"].(bool) {
				color.Red("  release failed for task %d: %v", taskID, release["error"])
			} else {
				drainBar.Add(1)
			}
			break
		}
		if !claimedAny {
			break
		}
	}
	drainBar.Finish()

	fmt.Println()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for a := 0; a < agentCount; a++ {
		agentID := fmt.Sprintf("bench-agent-%d", a)
		fmt.Printf("  %s claimed %s tasks\n", agentID, green(claimed[agentID]))
	}
	if failed > 0 {
		fmt.Printf("  %s poll calls failed\n", red(failed))
	}

	return nil
}
