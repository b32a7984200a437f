package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/obliq-labs/viewscope/internal/config"
	"github.com/obliq-labs/viewscope/internal/llm"
	mcpserver "github.com/obliq-labs/viewscope/internal/mcp"
	"github.com/obliq-labs/viewscope/internal/store"
	"github.com/obliq-labs/viewscope/internal/view"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "live":
		err = runLive(os.Args[2:])
	case "rename":
		err = runRename(os.Args[2:])
	case "seed":
		err = runSeed(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("viewscope %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the flags every subcommand accepts.
type globalFlags struct {
	dbPath     string
	llmFlag    string
	configPath string
	noLLM      bool
	rest       []string
}

// parseGlobalFlags splits --db/--llm/--config/--no-llm out of args; everything
// else stays in rest in order.
func parseGlobalFlags(args []string) (globalFlags, error) {
	var g globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		takeValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s requires a value", arg)
			}
			i++
			return args[i], nil
		}
		var err error
		switch arg {
		case "--db":
			g.dbPath, err = takeValue()
		case "--llm":
			g.llmFlag, err = takeValue()
		case "--config":
			g.configPath, err = takeValue()
		case "--no-llm":
			g.noLLM = true
		default:
			g.rest = append(g.rest, arg)
		}
		if err != nil {
			return g, err
		}
	}
	return g, nil
}

// openEngine resolves configuration and wires up the store, provider, and
// engine. The returned closer must be called when done.
func openEngine(g globalFlags) (*view.Engine, func(), error) {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: g.configPath,
		CLIDBPath:  g.dbPath,
		CLILLM:     g.llmFlag,
	})
	if err != nil {
		return nil, nil, err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	var provider llm.Provider
	if !g.noLLM && cfg.LLM.Value != "" {
		llmCfg, err := llm.ParseProviderFlag(cfg.LLM.Value)
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		llmCfg.APIKey = cfg.LLMAPIKey.Value
		provider, err = llm.NewProvider(llmCfg)
		if err != nil {
			s.Close()
			return nil, nil, err
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}

	engine := view.NewEngine(s, provider, logger)
	closer := func() {
		logger.Sync()
		s.Close()
	}
	return engine, closer, nil
}

func runCreate(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(g.rest) == 0 {
		return fmt.Errorf("usage: viewscope create <criteria> [--llm provider/model] [--no-llm]")
	}
	criteria := strings.Join(g.rest, " ")

	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	ctx := context.Background()
	total, err := engine.CountMessages(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Analyzing %d messages for: %s\n", total, criteria)

	v, err := engine.CreateView(ctx, criteria)
	if err != nil {
		return err
	}

	fmt.Printf("\nCreated view %q (%s)\n", v.Name, v.ID)
	fmt.Printf("  Matches:  %d\n", v.MessageCount)
	fmt.Printf("  Keywords: %s\n", strings.Join(v.Keywords, ", "))
	if v.Context != "" {
		fmt.Printf("  Context:  %s\n", v.Context)
	}
	return nil
}

func runList(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	views, err := engine.ListViews(context.Background())
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("No views yet. Create one with: viewscope create <criteria>")
		return nil
	}

	for _, v := range views {
		live := "live"
		if !v.IsLive {
			live = "paused"
		}
		fmt.Printf("%s  %-30s  %3d messages  %-6s  %s\n",
			v.ID, v.Name, v.MessageCount, live, v.Criteria)
	}
	return nil
}

func runShow(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(g.rest) != 1 {
		return fmt.Errorf("usage: viewscope show <view-id>")
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	v, members, err := engine.GetView(context.Background(), g.rest[0])
	if err != nil {
		return err
	}

	fmt.Printf("View: %s (%s)\n", v.Name, v.ID)
	fmt.Printf("Criteria: %s\n", v.Criteria)
	if v.Context != "" {
		fmt.Printf("Context:  %s\n", v.Context)
	}
	fmt.Printf("Keywords: %s\n", strings.Join(v.Keywords, ", "))
	if len(v.Concepts) > 0 {
		fmt.Printf("Concepts: %s\n", strings.Join(v.Concepts, ", "))
	}
	fmt.Printf("Live:     %v\n", v.IsLive)
	fmt.Printf("Messages: %d\n\n", len(members))

	for _, vm := range members {
		source := vm.SourceContactName
		if vm.IsFromGroup && vm.SourceChatName != nil {
			source = fmt.Sprintf("%s in %s", vm.SourceContactName, *vm.SourceChatName)
		}
		score := "-"
		if vm.RelevanceScore != nil {
			score = strconv.FormatFloat(*vm.RelevanceScore, 'f', 2, 64)
		}
		fmt.Printf("  [%s] %s  (score %s, added %s)\n",
			vm.OriginalMessageID, source, score, vm.AddedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDelete(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}

	all := false
	var ids []string
	for _, arg := range g.rest {
		if arg == "--all" {
			all = true
			continue
		}
		ids = append(ids, arg)
	}

	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()
	ctx := context.Background()

	if all {
		if err := engine.DeleteAllViews(ctx); err != nil {
			return err
		}
		fmt.Println("All views deleted.")
		return nil
	}
	if len(ids) != 1 {
		return fmt.Errorf("usage: viewscope delete <view-id> | viewscope delete --all")
	}
	if err := engine.DeleteView(ctx, ids[0]); err != nil {
		return err
	}
	fmt.Printf("View %s deleted.\n", ids[0])
	return nil
}

func runCheck(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(g.rest) != 1 {
		return fmt.Errorf("usage: viewscope check <message-id>")
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	matches, err := engine.CheckMessage(context.Background(), g.rest[0])
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No live view matched this message.")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("Added to %q (%s), score %.2f\n", m.ViewName, m.ViewID, m.Score)
	}
	return nil
}

func runLive(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(g.rest) != 2 || (g.rest[1] != "on" && g.rest[1] != "off") {
		return fmt.Errorf("usage: viewscope live <view-id> on|off")
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	v, err := engine.SetLive(context.Background(), g.rest[0], g.rest[1] == "on")
	if err != nil {
		return err
	}
	state := "live"
	if !v.IsLive {
		state = "paused"
	}
	fmt.Printf("View %q is now %s.\n", v.Name, state)
	return nil
}

func runRename(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(g.rest) < 2 {
		return fmt.Errorf("usage: viewscope rename <view-id> <new-name>")
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	v, err := engine.Rename(context.Background(), g.rest[0], strings.Join(g.rest[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("View renamed to %q.\n", v.Name)
	return nil
}

func runStats(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()
	ctx := context.Background()

	total, err := engine.CountMessages(ctx)
	if err != nil {
		return err
	}
	views, err := engine.ListViews(ctx)
	if err != nil {
		return err
	}
	live := 0
	collected := 0
	for _, v := range views {
		if v.IsLive {
			live++
		}
		collected += v.MessageCount
	}

	fmt.Printf("Messages:  %d\n", total)
	fmt.Printf("Views:     %d (%d live)\n", len(views), live)
	fmt.Printf("Collected: %d view memberships\n", collected)
	return nil
}

func runMCP(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	engine, closer, err := openEngine(g)
	if err != nil {
		return err
	}
	defer closer()

	s := mcpserver.NewServer(mcpserver.ServerConfig{
		Engine:  engine,
		Version: version,
	})
	// stdout carries the protocol; everything human goes to stderr.
	fmt.Fprintln(os.Stderr, "Viewscope MCP server listening on stdio")
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Printf(`viewscope %s — Dynamic views over your message history

Usage:
  viewscope <command> [arguments]

Commands:
  create <criteria>        Create a view from natural-language criteria
  list                     List all views
  show <view-id>           Show a view and its collected messages
  delete <view-id>         Delete a view (--all deletes every view)
  check <message-id>       Check a message against all live views
  live <view-id> on|off    Toggle live matching for a view
  rename <view-id> <name>  Rename a view
  seed                     Load a demo corpus of contacts and messages
  stats                    Show corpus and view statistics
  mcp                      Serve the MCP interface on stdio
  version                  Print version

Flags:
  --db <path>              Database path (default ~/.viewscope/viewscope.db)
  --llm <provider/model>   LLM for analysis, e.g. anthropic/claude-sonnet-4-20250514
  --no-llm                 Force deterministic keyword analysis
  --config <path>          Config file (default ~/.viewscope/config.yaml)
  -h, --help               Show this help message
  -v, --version            Print version
`, version)
}
