package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/config"
	"github.com/rgehrsitz/paycalc/internal/logging"
	"github.com/rgehrsitz/paycalc/internal/rules"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	debugMode  bool
)

// app holds what every command needs once settings are loaded.
type app struct {
	settings config.Settings
	logger   *zap.Logger
	engine   *calculation.Engine
	parser   *config.InputParser
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paycalc %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.GoVersion + " " + bi.Main.Path
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:          "paycalc",
	Short:        "Payroll calculation engine CLI",
	Long:         "Calculates payslips and payroll runs from versioned, jurisdiction-specific rule sets",
	SilenceUsage: true,
}

// newApp loads .env, the settings file and the environment, and builds the
// logger and engine.
func newApp() (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v, err := config.NewViper(configFile)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, Debug: debugMode})
	if err != nil {
		return nil, err
	}
	engine, err := calculation.NewEngine(settings.Money)
	if err != nil {
		return nil, err
	}
	return &app{settings: settings, logger: logger, engine: engine, parser: config.NewInputParser()}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// rulesPath picks the --rules flag over the rules_path setting.
func (a *app) rulesPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.settings.RulesPath != "" {
		return a.settings.RulesPath, nil
	}
	return "", fmt.Errorf("a rule catalog is required: pass --rules or set rules_path")
}

func (a *app) loadCatalog(flag string) (*rules.Catalog, string, error) {
	path, err := a.rulesPath(flag)
	if err != nil {
		return nil, "", err
	}
	catalog, err := a.parser.LoadRuleCatalog(path)
	if err != nil {
		return nil, "", err
	}
	a.logger.Debug("rule catalog loaded", zap.String("path", path), zap.Int("rule_sets", catalog.Len()))
	return catalog, path, nil
}

// pick returns the flag value when set, else the setting.
func pick(cmd *cobra.Command, flag, value, setting string) string {
	if cmd.Flags().Changed(flag) || setting == "" {
		return value
	}
	return setting
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", value)
	}
	return t, nil
}

// writeOutput writes data to the named file, or to the command output when
// path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Settings file (default ./paycalc.yaml or $HOME/.paycalc/paycalc.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(grossupCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
