package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"opsagent/internal/browser"
	"opsagent/internal/config"
	"opsagent/internal/connector"
	"opsagent/internal/display"
	"opsagent/internal/engine"
	"opsagent/internal/listener"
	"opsagent/internal/logger"
	"opsagent/internal/mcp"
	"opsagent/internal/plan"
	"opsagent/internal/rpa"
	"opsagent/internal/utils"
)

var (
	cfg  *config.Config
	eng  *engine.Engine
	pool *browser.Pool
)

var rootCmd = &cobra.Command{
	Use:   "opsagent",
	Short: "An operations problem resolver for industrial systems",
	Long: `Reads free-text problem reports from MES, SCADA, ERP and OA systems,
classifies them, and resolves them over the best available channel:
structured APIs, external tool servers, or GUI automation.`,
	Run: func(cmd *cobra.Command, args []string) {
		runInteractive()
	},
}

// Execute wires the pipeline from configuration and hands control to cobra.
func Execute(c *config.Config) error {
	cfg = c

	pool = browser.NewPool(browser.Config{
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		CommandTimeout: cfg.Browser.CommandTimeout,
	}, cfg.Browser.PoolSize, logger.Log)
	defer pool.Close()

	runner := rpa.NewRunner(cfg.RPA.MaxSteps, cfg.RPA.SettleInterval, cfg.RPA.DegradeOnMalformed, logger.Log)
	bridge := mcp.NewBridge(cfg.MCP.Command, cfg.MCP.DiscoverTimeout, cfg.MCP.CallTimeout, cfg.MCP.MaxOutputBytes)
	registry := connector.BuildRegistry(cfg.Connectors)

	eng = engine.New(cfg.Engine, logger.Log)
	eng.RegisterExecutor("api", engine.NewAPIExecutor(registry, logger.Log))
	eng.RegisterExecutor("mcp", engine.NewToolExecutor(bridge, logger.Log))
	eng.RegisterExecutor("rpa", engine.NewRPAExecutor(pool, runner, cfg.Engine.ExecuteTimeout, logger.Log))

	rootCmd.AddCommand(batchCmd, screenCmd)
	return rootCmd.Execute()
}

func runInteractive() {
	if err := listener.Init(); err != nil {
		fmt.Println("Failed to init terminal input:", err)
		os.Exit(1)
	}
	defer listener.Close()

	// Risky remediation steps need an explicit operator go-ahead.
	eng.SetPlanGate(func(p *plan.ExecutionPlan) bool {
		if !utils.HasRiskySteps(p.Steps) {
			return true
		}
		listener.AsyncPrintln(display.FormatPlan(p))
		return listener.AskYesNo("This plan contains risky steps. Execute it?")
	})

	d := engine.NewDispatcher(eng, logger.Log)
	d.Start()
	go printResults(d)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nGoodbye!")
		os.Exit(0)
	}()

	listener.AsyncPrintln("Describe the problem (type 'exit' to quit, 'cancel' to stop the running report).")

	for {
		input := listener.GetInput()
		lower := strings.ToLower(input)
		switch {
		case lower == "exit" || lower == "quit":
			fmt.Println("Goodbye!")
			return
		case input == "":
			continue
		case lower == "cancel" || strings.HasPrefix(lower, "cancel "):
			cancelReport(d, strings.TrimSpace(strings.TrimPrefix(lower, "cancel")))
			continue
		}

		id := d.Submit(input)
		listener.AsyncPrintln(fmt.Sprintf("[Report %s QUEUED]", id))
	}
}

func cancelReport(d *engine.Dispatcher, id string) {
	if id == "" {
		cancelled, err := d.CancelCurrent()
		if err != nil {
			listener.AsyncPrintln(fmt.Sprintf("[Cancel] %v", err))
			return
		}
		listener.AsyncPrintln(fmt.Sprintf("[Report %s CANCELLED]", cancelled))
		return
	}
	if err := d.Cancel(id); err != nil {
		listener.AsyncPrintln(fmt.Sprintf("[Cancel] %v", err))
		return
	}
	listener.AsyncPrintln(fmt.Sprintf("[Report %s CANCELLED]", id))
}

func printResults(d *engine.Dispatcher) {
	for result := range d.Results {
		if result.Analysis != nil {
			listener.AsyncPrintln(display.FormatAnalysis(result.Analysis))
		}
		listener.AsyncPrintln(display.FormatResult(result))
		if result.Metrics != nil {
			listener.AsyncPrintln(display.FormatResolutionMetrics(result.Metrics))
		}
	}
}
