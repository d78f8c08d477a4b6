package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sitegen/internal/app"
	"sitegen/internal/config"
	"sitegen/internal/logging"
	"sitegen/internal/pipeline"
	"sitegen/internal/site"
	"sitegen/internal/store"
)

type rootFlags struct {
	configArg   string
	providerArg string
	modelArg    string
	logLevelArg string
}

func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "sitegen",
		Short:         "Generate small business websites with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.HiddenDefaultCmd = true
	root.PersistentFlags().StringVar(&flags.configArg, "config", "", "YAML config file (default $SITEGEN_CONFIG)")
	root.PersistentFlags().StringVar(&flags.providerArg, "provider", "", "provider to use: local, openai, gemini or fake")
	root.PersistentFlags().StringVar(&flags.modelArg, "model", "", "model of the selected provider")
	root.PersistentFlags().StringVar(&flags.logLevelArg, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(flags, stderr),
		newGenerateCmd(flags, stdout, stderr),
		newModelsCmd(flags, stdout, stderr),
		newCheckCmd(flags, stdout, stderr),
	)
	return root
}

// load applies the flags on top of the environment and builds the app.
func load(ctx context.Context, flags *rootFlags, stderr io.Writer) (*app.App, error) {
	overrides := map[string]string{
		"SITEGEN_CONFIG":   flags.configArg,
		"SITEGEN_PROVIDER": flags.providerArg,
		"SITEGEN_MODEL":    flags.modelArg,
		"LOG_LEVEL":        flags.logLevelArg,
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	return app.New(ctx, cfg, log)
}

func newServeCmd(flags *rootFlags, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), flags, stderr)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- a.Start() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
			select {
			case err := <-errCh:
				_ = a.Close()
				return err
			case <-quit:
			}

			a.Log.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			a.Log.Info("server exiting")
			return nil
		},
	}
}

func newGenerateCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var outDir string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "generate <spec.yaml|spec.json>",
		Short: "Generate one website and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpec(args[0])
			if err != nil {
				return err
			}
			a, err := load(cmd.Context(), flags, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			handle, err := a.Orchestrator.Start(spec)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			res, err := a.Orchestrator.Wait(ctx, handle.RunID)
			if err != nil {
				return fmt.Errorf("generation %s: %w", handle.RunID, err)
			}
			p, _ := a.Orchestrator.Progress(handle.RunID)

			printSummary(stdout, handle.RunID, res)
			fmt.Fprintln(stdout, p.Message)
			if outDir != "" {
				if err := writeResult(outDir, res); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "written to %s\n", outDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write the generated documents to")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up waiting after this long")
	return cmd
}

func newModelsCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of the selected provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), flags, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			models := a.Facade.ListModels(cmd.Context())
			if len(models) == 0 {
				return fmt.Errorf("provider %s returned no models", a.Facade.Profile().Provider)
			}
			for _, m := range models {
				fmt.Fprintln(stdout, m)
			}
			return nil
		},
	}
}

func newCheckCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the selected provider is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context(), flags, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			prof := a.Facade.Profile()
			if !a.Facade.CheckReachable(cmd.Context()) {
				return fmt.Errorf("provider %s (%s) is not reachable", prof.Provider, prof.Model)
			}
			fmt.Fprintf(stdout, "provider %s (%s) is reachable\n", prof.Provider, prof.Model)
			return nil
		},
	}
}

// readSpec accepts YAML or JSON; JSON is valid YAML.
func readSpec(path string) (site.WebsiteSpec, error) {
	var spec site.WebsiteSpec
	raw, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read spec: %w", err)
	}
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return spec, nil
}

func printSummary(w io.Writer, runID string, res pipeline.Result) {
	fmt.Fprintf(w, "run %s for website %s\n", runID, res.WebsiteID)
	line := func(label string, fallback bool) {
		source := "generated"
		if fallback {
			source = "fallback"
		}
		fmt.Fprintf(w, "  %-24s %s\n", label, source)
	}
	line("header", res.Header.Fallback)
	line("footer", res.Footer.Fallback)
	for _, p := range res.Pages {
		line("page "+p.Page, p.Fallback)
	}
}

func writeResult(dir string, res pipeline.Result) error {
	files := map[string]any{
		store.HeaderPath: res.Header,
		store.FooterPath: res.Footer,
	}
	for _, p := range res.Pages {
		files[store.PagePath(p.Page)] = p
	}
	for name, doc := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
