package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banao-ai/jarvisctl/pkg/backend"
	"github.com/banao-ai/jarvisctl/pkg/chat"
	"github.com/banao-ai/jarvisctl/pkg/config"
	"github.com/banao-ai/jarvisctl/pkg/logger"
	"github.com/banao-ai/jarvisctl/pkg/tui"
	"github.com/banao-ai/jarvisctl/pkg/webchat"
)

var (
	// Global flags
	configPath string
	backendURL string
	verbose    bool

	cfg *config.Config
)

// rootCmd launches the interactive terminal console when called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "jarvisctl",
	Short: "Terminal and web console for a Jarvis RAG backend",
	Long: `jarvisctl talks to a running Jarvis backend: ask questions against the
ingested documents, upload new ones, and watch retrieval metrics.

Run without arguments to start the interactive terminal console.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if backendURL != "" {
			cfg.Backend.BaseURL = backendURL
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := logger.SetLevel(level); err != nil {
			return err
		}
		if cfg.LogFilePath() != "" {
			if err := logger.SetLogFile(cfg.LogFilePath()); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	RunE: runConsole,
}

// serveCmd hosts the web console.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web console",
	Long: `Starts an HTTP server hosting the single-page console. Set a username
and password in the config to require a login.`,
	RunE: runServe,
}

// statusCmd probes the backend once.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status",
	RunE:  runStatus,
}

// questionsCmd fetches the example questions.
var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the backend's example questions",
	RunE:  runQuestions,
}

// uploadCmd sends local documents to the backend.
var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload .txt or .pdf documents for ingestion",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

// ingestCmd ingests paths that already live on the backend host.
var ingestCmd = &cobra.Command{
	Use:   "ingest PATH[,PATH...]",
	Short: "Ingest server-side files or directories",
	Long: `Asks the backend to ingest paths on its own filesystem. Multiple paths
can be given as separate arguments or comma-separated.

Example:
  jarvisctl ingest /data/docs
  jarvisctl ingest /data/a.pdf,/data/b.txt --clear-existing`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the jarvisctl config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE:  runConfigShow,
}

var (
	serveHost string
	servePort int

	statusJSON bool

	chunkSize     int
	chunkOverlap  int
	clearExisting bool

	forceInit bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status JSON")

	for _, c := range []*cobra.Command{uploadCmd, ingestCmd} {
		c.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters (default from config)")
		c.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Chunk overlap in characters (default from config)")
	}
	ingestCmd.Flags().BoolVar(&clearExisting, "clear-existing", false, "Clear the index before ingesting")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *backend.Client {
	return backend.New(cfg.BackendURL(), cfg.RequestTimeout())
}

func newController() *chat.Controller {
	opts := chat.DefaultOptions()
	opts.ChunkSize = cfg.Ingest.ChunkSize
	opts.ChunkOverlap = cfg.Ingest.ChunkOverlap
	return chat.New(newClient(), opts)
}

func runConsole(cmd *cobra.Command, args []string) error {
	// The terminal belongs to the console, so logs go to a file.
	if cfg.LogFilePath() == "" {
		if home, err := os.UserHomeDir(); err == nil {
			if err := logger.SetLogFile(filepath.Join(home, ".jarvisctl", "jarvisctl.log")); err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := newController()
	ctrl.Start(ctx)
	defer ctrl.Stop()

	return tui.Run(ctrl)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHost != "" {
		cfg.WebChat.Host = serveHost
	}
	if servePort != 0 {
		cfg.WebChat.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := newController()
	ctrl.Start(ctx)
	defer ctrl.Stop()

	srv := webchat.NewServer(cfg.WebChat, ctrl)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start console: %w", err)
	}

	fmt.Printf("Console listening on http://%s:%d\n", cfg.WebChat.Host, cfg.WebChat.Port)
	<-ctx.Done()

	logger.InfoCF("main", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	info, err := newClient().Status(context.Background())
	if err != nil {
		return fmt.Errorf("status check: %w", err)
	}
	if statusJSON {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	fmt.Printf("status:          %s\n", info.Status)
	fmt.Printf("pinecone index:  %s\n", info.PineconeIndex)
	fmt.Printf("openai model:    %s\n", info.OpenAIModel)
	fmt.Printf("local metrics:   %s\n", info.LocalMetrics)
	return nil
}

func runQuestions(cmd *cobra.Command, args []string) error {
	questions, err := newClient().ExampleQuestions(context.Background())
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	for i, q := range questions {
		fmt.Printf("%d. %s\n", i+1, q)
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	size, overlap := chunking(cmd)
	msg, err := newClient().Upload(context.Background(), args, size, overlap)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	size, overlap := chunking(cmd)
	msg, err := newClient().IngestPaths(context.Background(), args, size, overlap, clearExisting)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

// chunking resolves the chunk flags against the config defaults. The
// overlap flag is checked for presence so an explicit 0 survives.
func chunking(cmd *cobra.Command) (int, int) {
	size := cfg.Ingest.ChunkSize
	if cmd.Flags().Changed("chunk-size") {
		size = chunkSize
	}
	overlap := cfg.Ingest.ChunkOverlap
	if cmd.Flags().Changed("chunk-overlap") {
		overlap = chunkOverlap
	}
	return size, overlap
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Println("Wrote", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
