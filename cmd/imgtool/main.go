// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command imgtool inspects how buffers map to gpuimage images and round
// trips image files through a gpuimage context.
//
// Usage:
//
//	imgtool formats
//	imgtool probe desc.yaml
//	imgtool roundtrip in.jpg out.tiff
//
// Global flags select a YAML configuration file, the log level and the
// memory backend.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/gogpu/wgpu/hal/vulkan"
	"github.com/spf13/cobra"

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/backend"
	_ "github.com/gogpu/gpuimage/backend/halmem"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	backend    string
	cfg        Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "imgtool",
		Short: "Inspect and round trip images through gpuimage",
		Long: `imgtool shows how buffer descriptions are interpreted as images and
exported in other layouts, and copies image files through a gpuimage context.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&a.backend, "backend", "", "memory backend: auto, "+strings.Join(backend.Available(), ", "))

	cmd.AddCommand(newFormatsCommand())
	cmd.AddCommand(newProbeCommand(a))
	cmd.AddCommand(newRoundtripCommand(a))
	return cmd
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := DefaultConfig()
	if a.configPath != "" {
		var err error
		cfg, err = LoadConfig(a.configPath)
		if err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	level, _ := cfg.level()
	a.cfg = cfg

	h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	gpuimage.SetLogger(logger)
	return nil
}

// newContext creates a gpuimage context on the configured backend. The
// returned function closes the context, then the backend.
func (a *app) newContext() (*gpuimage.Context, func(), error) {
	b, err := a.cfg.openBackend()
	if err != nil {
		return nil, nil, err
	}
	opts := append(a.cfg.Options(),
		gpuimage.WithAllocator(b.Allocator()),
		gpuimage.WithStream(b.Stream()),
	)
	c, err := gpuimage.NewContext(opts...)
	if err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("create context: %w", err)
	}
	slog.Debug("imgtool: context created", "backend", b.Name())
	return c, func() {
		if err := c.Close(); err != nil {
			slog.Warn("imgtool: close context", "err", err)
		}
		b.Close()
	}, nil
}
