// Package main provides the triage-mcp binary, an MCP server over stdio.
package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/config"
	tmcp "github.com/ormasoftchile/triage/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/operations"
	"github.com/ormasoftchile/triage/pkg/planner"
)

var version = "dev"

func main() {
	var configPath, replayPath string
	cmd := &cobra.Command{
		Use:          "triage-mcp",
		Short:        "Serve the triage tools over MCP stdio",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, replayPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default $"+config.EnvFile+")")
	cmd.Flags().StringVar(&replayPath, "replay", "", "Serve recorded plans instead of calling the API")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath, replayPath string) error {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr.
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	reg := operations.NewRegistry(operations.LogNotifier{Logger: logger})
	rules := cfg.Rules.Apply(validate.DefaultRules(reg))

	h := &tmcp.Handlers{
		Engine: engine.New(reg, engine.Config{Logger: logger}),
		Rules:  rules,
		Prices: cfg.Prices,
		Logger: logger,
	}
	if len(cfg.Configurations) > 0 {
		h.Configuration = cfg.Configurations[0]
	}

	switch {
	case replayPath != "":
		r, err := planner.LoadReplay(replayPath)
		if err != nil {
			return err
		}
		h.Planner = r
	case os.Getenv(cfg.Planner.APIKeyEnv) != "":
		data, err := planner.NewPromptData(reg.Contracts(), rules)
		if err != nil {
			return err
		}
		prompt, err := planner.RenderSystemPrompt(data)
		if err != nil {
			return err
		}
		oc := cfg.Planner.OpenAIConfig()
		oc.SystemPrompt = prompt
		oc.Logger = logger
		p, err := planner.NewOpenAIFromEnv(cfg.Planner.APIKeyEnv, oc)
		if err != nil {
			return err
		}
		h.Planner = p
	default:
		logger.Warn("no planner configured; triage/evaluate requires an explicit plan", "api_key_env", cfg.Planner.APIKeyEnv)
	}

	return server.ServeStdio(tmcp.NewServer(version, h))
}
