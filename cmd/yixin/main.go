package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/conversation"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/genai"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/orchestrator"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/risk"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/stages"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/store"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for state data
	DefaultStateDir = "/var/lib/yixin"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "yixin.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	model, err := buildModelClient(flags)
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}

	catalog := stages.NewCatalog()
	engine := stages.NewEngine(catalog)
	analyzer := risk.NewAnalyzer()
	orch := orchestrator.NewOrchestrator(catalog, engine, analyzer, model)
	service := conversation.NewService(st, orch)

	slog.Info("Bootstrapping counseling session console", "db_driver", *flags.dbDriver)
	if err := runConsole(service, *flags.userID); err != nil {
		slog.Error("Console session failed", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	DbDriver  string
	DBDSN     string
	StateDir  string
	OpenAIKey string
	Model     string
	Timeout   string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDriver  *string
	dbDSN     *string
	openaiKey *string
	model     *string
	timeout   *string
	userID    *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DbDriver:  os.Getenv("YIXIN_DB_DRIVER"),
		DBDSN:     os.Getenv("DATABASE_URL"),
		StateDir:  os.Getenv("YIXIN_STATE_DIR"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		Model:     os.Getenv("YIXIN_MODEL"),
		Timeout:   os.Getenv("YIXIN_MODEL_TIMEOUT"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DbDriver == "" {
		if config.DBDSN != "" && strings.HasPrefix(config.DBDSN, "postgres") {
			config.DbDriver = "postgres"
		} else {
			config.DbDriver = "sqlite3"
		}
	}
	if config.DBDSN == "" && config.DbDriver == "sqlite3" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	slog.Debug("environment variables loaded",
		"YIXIN_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DBDSN != "",
		"YIXIN_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"YIXIN_MODEL", config.Model)
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "directory for state data"),
		dbDriver:  flag.String("db-driver", config.DbDriver, "database driver (sqlite3 or postgres)"),
		dbDSN:     flag.String("db-dsn", config.DBDSN, "database DSN (file path for sqlite3, URL for postgres)"),
		openaiKey: flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		model:     flag.String("model", config.Model, "chat model identifier"),
		timeout:   flag.String("model-timeout", config.Timeout, "model call timeout (e.g. 30s)"),
		userID:    flag.String("user", "console-user", "visitor identifier for this session"),
	}
	flag.Parse()

	// Update database DSN if not explicitly set but state directory is provided
	if dsn, updated := rederiveDSN(*flags.dbDSN, config.DBDSN, config.StateDir, *flags.stateDir); updated {
		*flags.dbDSN = dsn
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// rederiveDSN recomputes the default SQLite DSN when the state directory was
// overridden on the command line but the DSN itself was not. An explicitly
// set DSN always wins.
func rederiveDSN(flagDSN, envDSN, envStateDir, flagStateDir string) (string, bool) {
	if flagDSN != envDSN {
		return flagDSN, false
	}
	if envDSN != filepath.Join(envStateDir, DefaultDBFileName) {
		return flagDSN, false
	}
	if flagStateDir == envStateDir {
		return flagDSN, false
	}
	return filepath.Join(flagStateDir, DefaultDBFileName), true
}

// buildStore constructs the configured storage backend.
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	case "sqlite3":
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", *flags.dbDriver)
	}
}

// buildModelClient constructs the GenAI client from flags.
func buildModelClient(flags Flags) (*genai.Client, error) {
	opts := []genai.Option{}
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	if *flags.timeout != "" {
		d, err := time.ParseDuration(*flags.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid model timeout %q: %w", *flags.timeout, err)
		}
		opts = append(opts, genai.WithTimeout(d))
	}
	return genai.NewClient(opts...)
}

// runConsole runs an interactive counseling session on stdin/stdout.
func runConsole(service *conversation.Service, userID string) error {
	session, err := service.StartSession(userID, nil, nil)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s started. Type a message, or /quit to exit.\n\n", session.ID)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}

		result, err := service.HandleMessage(context.Background(), session.ID, line)
		if err != nil {
			slog.Error("Turn failed", "error", err, "sessionID", session.ID)
			fmt.Println("Something went wrong handling that message; please try again.")
			continue
		}

		fmt.Println(result.Reply)
		if result.StageTransition != nil {
			fmt.Printf("[stage advanced: %s → %s]\n", result.StageTransition.From, result.StageTransition.To)
		}
		fmt.Println()
	}
	return scanner.Err()
}
