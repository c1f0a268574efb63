package main

import (
	"fmt"

	"github.com/ormasoftchile/triage/pkg/ecosystem/recorder"
	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/harness"
	"github.com/ormasoftchile/triage/pkg/kernel/registry"
	"github.com/ormasoftchile/triage/pkg/kernel/trace"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/operations"
	"github.com/ormasoftchile/triage/pkg/planner"
)

func (a *app) registry() *registry.Registry {
	return operations.NewRegistry(operations.LogNotifier{Logger: a.logger})
}

func (a *app) rules(reg *registry.Registry) validate.Rules {
	return a.cfg.Rules.Apply(validate.DefaultRules(reg))
}

func (a *app) engine(reg *registry.Registry, tw *trace.Writer) *engine.Engine {
	return engine.New(reg, engine.Config{Trace: tw, Logger: a.logger})
}

// planner returns a replay planner when replayPath is set, and the chat
// completions planner otherwise.
func (a *app) planner(replayPath string, reg *registry.Registry) (planner.Planner, error) {
	if replayPath != "" {
		r, err := planner.LoadReplay(replayPath)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	data, err := planner.NewPromptData(reg.Contracts(), a.rules(reg))
	if err != nil {
		return nil, fmt.Errorf("prompt data: %w", err)
	}
	prompt, err := planner.RenderSystemPrompt(data)
	if err != nil {
		return nil, err
	}
	oc := a.cfg.Planner.OpenAIConfig()
	oc.SystemPrompt = prompt
	oc.Logger = a.logger
	p, err := planner.NewOpenAIFromEnv(a.cfg.Planner.APIKeyEnv, oc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) runner(p planner.Planner, reg *registry.Registry, parallel int) *harness.Runner {
	if parallel == 0 {
		parallel = a.cfg.Parallel
	}
	return &harness.Runner{
		Planner:  p,
		Engine:   a.engine(reg, nil),
		Rules:    a.rules(reg),
		Prices:   a.cfg.Prices,
		Parallel: parallel,
		Logger:   a.logger,
	}
}

// record wraps p in a recorder when path is set. The returned save func
// writes the captured plans; it is a no-op without a path.
func (a *app) record(p planner.Planner, path string) (planner.Planner, func() error) {
	if path == "" {
		return p, func() error { return nil }
	}
	rec := recorder.New(p)
	rec.SetSecrets([]string{a.cfg.Planner.APIKeyEnv})
	return rec, func() error {
		if err := rec.Save(path); err != nil {
			return err
		}
		a.logger.Info("plans recorded", "path", path, "plans", len(rec.Entries()))
		return nil
	}
}
