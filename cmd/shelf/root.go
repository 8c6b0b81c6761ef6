package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/output"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "shelf",
		Short: "Organize files into the places they belong",
		Long: `Shelf matches files against prioritized rules and moves, copies,
archives or deletes them. Every change is recorded in an operation log
and can be undone.

Examples:
  shelf organize ~/Downloads             # Preview suggestions (dry run)
  shelf organize --auto ~/Downloads      # Apply confident suggestions
  shelf organize -i ~/Desktop            # Approve each suggestion
  shelf undo                             # Undo the most recent operation
  shelf undo --all-recent                # Undo the most recent batch
  shelf history -o json                  # Operation log as JSON
  shelf rules                            # List the active rules`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/shelf/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty",
		fmt.Sprintf("output format (%s)", strings.Join(output.Available(), ", ")))
	rootCmd.PersistentFlags().String("template", "", "Go template for output (implies -o template)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig enables SHELF_ environment overrides for the global flags.
// The config file itself is read by loadConfig.
func initConfig() {
	viper.SetEnvPrefix("SHELF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the configuration and starts logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, err
	}

	logCfg, err := cfg.LoggingSettings()
	if err != nil {
		return nil, err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return cfg, nil
}

// render writes r in the selected output format.
func render(cmd *cobra.Command, r *output.Report) error {
	var f output.Formatter
	if tmpl := viper.GetString("template"); tmpl != "" {
		f = output.NewTemplateFormatter(tmpl)
	} else {
		format := getOutput()
		if getQuiet() && format == "pretty" {
			return nil
		}
		var err error
		if f, err = output.Get(format); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func getOutput() string {
	if format := viper.GetString("output"); format != "" {
		return strings.ToLower(format)
	}
	return "pretty"
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(cmd *cobra.Command, format string, args ...any) {
	if !getQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}
