package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"opsagent/internal/display"
	"opsagent/internal/triage"
	"opsagent/internal/utils"
)

// batchCmd resolves a file of reports concurrently, bounded by
// engine.batch_limit. Each line is either plain text or a JSON object with
// "text" and an optional "id".
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Resolve a file of problem reports, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := loadReports(args[0])
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			return fmt.Errorf("no reports found in %s", args[0])
		}

		limit := cfg.Engine.BatchLimit
		if limit <= 0 {
			limit = 1
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(limit)

		var mu sync.Mutex
		failed := 0
		for _, report := range reports {
			g.Go(func() error {
				result := eng.HandleProblem(ctx, report)
				mu.Lock()
				fmt.Println(display.FormatResult(result))
				if !result.Success {
					failed++
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Resolved %d/%d reports.\n", len(reports)-failed, len(reports))
		if failed > 0 {
			return fmt.Errorf("%d report(s) failed", failed)
		}
		return nil
	},
}

func loadReports(path string) ([]*triage.ProblemReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}

	// A whole-file JSON array of {"id", "text"} objects is also accepted.
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []map[string]any
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("parse batch file: %w", err)
		}
		var reports []*triage.ProblemReport
		for _, entry := range entries {
			text, err := utils.GetStringPayload(entry, "text")
			if err != nil {
				return nil, fmt.Errorf("batch entry: %w", err)
			}
			report := &triage.ProblemReport{
				ID:          uuid.New().String()[:8],
				Text:        text,
				SubmittedAt: time.Now(),
			}
			if id, err := utils.GetStringPayload(entry, "id"); err == nil && id != "" {
				report.ID = id
			}
			reports = append(reports, report)
		}
		return reports, nil
	}

	var reports []*triage.ProblemReport
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reports = append(reports, parseReportLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return reports, nil
}

func parseReportLine(line string) *triage.ProblemReport {
	report := &triage.ProblemReport{
		ID:          uuid.New().String()[:8],
		Text:        line,
		SubmittedAt: time.Now(),
	}
	if !strings.HasPrefix(line, "{") {
		return report
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return report
	}
	text, err := utils.GetStringPayload(entry, "text")
	if err != nil {
		return report
	}
	report.Text = text
	if id, err := utils.GetStringPayload(entry, "id"); err == nil && id != "" {
		report.ID = id
	}
	return report
}
