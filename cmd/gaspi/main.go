/*
 * MIT License
 *
 * Copyright (c) 2024 gaspi contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Command gaspi is the CLI entry point: "serve" runs the arbiter, the
// internal "run-worker" command is what the arbiter re-execs into for each
// worker child, and "version" prints the build version.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	gaspiarbiter "github.com/sabouaram/gaspi/arbiter"
	"github.com/sabouaram/gaspi/banner"
	gaspiconfig "github.com/sabouaram/gaspi/config"
	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/metrics"
	"github.com/sabouaram/gaspi/reloader"
	"github.com/sabouaram/gaspi/worker"
)

var buildVersion = "dev"

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "gaspi",
		Short: "gaspi runs an HTTP/1.1 gateway-protocol server",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")

	root.AddCommand(serveCmd(), runWorkerCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the arbiter and its pool of workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gaspiconfig.Load(configFile)
			if err != nil {
				return err
			}
			log := logger.New(cmd.Context())
			log.SetLevel(cfg.LogLevelParsed())
			log.SetFormat(cfg.LogFormatParsed())

			banner.Print(cfg.Banner())

			exe, err := os.Executable()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if cfg.MetricsEnabled {
				go metrics.Serve(ctx, cfg.MetricsAddr)
			}

			if cfg.ReloaderEnabled && configFile != "" {
				r := reloader.New(configFile, cfg.Workers, log, func() {
					log.Entry(logger.WarnLevel, "reload requested but restart-on-reload is not wired to process replacement yet").Log()
				})
				go r.Run(ctx)
			}

			workerArgs := []string{}
			if configFile != "" {
				workerArgs = append(workerArgs, "--config", configFile)
			}

			a := gaspiarbiter.New(gaspiarbiter.Config{
				Host:    cfg.Host,
				Port:    cfg.Port,
				Backlog: cfg.Backlog,
				Workers: cfg.Workers,
				Args:    workerArgs,
			}, log)

			return a.Run(ctx, exe)
		},
	}
}

func runWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "run-worker",
		Short:  "internal: run a single worker process (invoked by the arbiter)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gaspiconfig.Load(configFile)
			if err != nil {
				return err
			}
			log := logger.New(cmd.Context())
			log.SetLevel(cfg.LogLevelParsed())
			log.SetFormat(cfg.LogFormatParsed())

			tlsConfig, err := cfg.TLSConfig()
			if err != nil {
				return err
			}

			app := applicationEntryPoint()

			return worker.Run(cmd.Context(), app, worker.Config{
				RootPath:        cfg.RootPath,
				LifespanEnabled: cfg.LifespanEnabled,
				AccessLog:       cfg.AccessLogEnabled,
				TLS:             tlsConfig,
			}, log)
		},
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the gaspi build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildVersion)
		},
	}
}

// applicationEntryPoint resolves the hosted application. The gateway
// contract's Application callable is an external collaborator (spec.md
// §1); this default is a bare 404 responder so the binary still runs
// standalone, and real deployments are expected to link their own
// gateway.Application in place of this function.
func applicationEntryPoint() gateway.Application {
	return func(ctx context.Context, env *gateway.Env, receive gateway.Receive, send gateway.Send) error {
		if _, err := receive(ctx); err != nil {
			return err
		}
		if err := send(ctx, gateway.Event{
			Type:   gateway.EventHTTPResponseStart,
			Status: 404,
			Headers: nil,
		}); err != nil {
			return err
		}
		return send(ctx, gateway.Event{Type: gateway.EventHTTPResponseBody, Body: []byte("not found")})
	}
}
