package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dubline/internal/config"
	"dubline/internal/daemonrun"
	"dubline/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// openRuntime builds the store and stage adapters for one-shot commands.
	openRuntime func(ctx context.Context, cfg *config.Config, cmd *cobra.Command) (*daemonrun.Runtime, error)
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		jsonFlag:    jsonFlag,
		openRuntime: defaultRuntime,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withRuntime opens a runtime for the duration of fn. Poll loops started by
// fn are stopped when it returns; job records keep their last state.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := c.openRuntime(cmd.Context(), cfg, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func defaultRuntime(ctx context.Context, cfg *config.Config, cmd *cobra.Command) (*daemonrun.Runtime, error) {
	logger, err := logging.New(logging.Options{
		Level:  "warn",
		Format: "console",
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return daemonrun.Build(ctx, cfg, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
