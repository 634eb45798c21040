// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command sagaecho echoes stdin lines through a saga runtime.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"code.hybscloud.com/saga"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		tracePath  string
		idle       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sagaecho",
		Short: "Echo stdin lines through a saga runtime",
		Long: `sagaecho emits every stdin line as a LINE action. A root saga answers
each one with an ECHO action, and stops after --idle without input.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg := &saga.Config{}
			if configPath != "" {
				if cfg, err = saga.ReadConfig(configPath); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("idle") && cfg.Idle > 0 {
				idle = cfg.Idle
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			opts := cfg.Options()
			if tracePath != "" {
				var (
					tp       *sdktrace.TracerProvider
					shutdown func(context.Context) error
				)
				if tp, shutdown, err = newTracerProvider(cmd.ErrOrStderr(), tracePath); err != nil {
					return err
				}
				defer func() {
					if serr := shutdown(context.Background()); serr != nil {
						err = errors.Join(err, fmt.Errorf("sagaecho: shut down tracing: %w", serr))
					}
				}()
				opts = append(opts, saga.WithTracerProvider(tp))
			}
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), logger, idle, opts...)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML runtime config")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write task spans to this file (- for stderr)")
	cmd.Flags().DurationVar(&idle, "idle", 0, "stop after this long without input (0 waits forever)")
	return cmd
}

// newTracerProvider exports spans synchronously to path, or to stderr for "-".
// shutdown flushes the provider and closes the trace file.
func newTracerProvider(stderr io.Writer, path string) (tp *sdktrace.TracerProvider, shutdown func(context.Context) error, err error) {
	w := stderr
	var f *os.File
	if path != "-" {
		if f, err = os.Create(path); err != nil {
			return nil, nil, err
		}
		w = f
	}
	closeFile := func() error {
		if f == nil {
			return nil
		}
		return f.Close()
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, errors.Join(err, closeFile())
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", "sagaecho")),
	)
	if err != nil {
		return nil, nil, errors.Join(err, closeFile())
	}
	tp = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	shutdown = func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), closeFile())
	}
	return tp, shutdown, nil
}

func run(ctx context.Context, in io.Reader, out io.Writer, logger *slog.Logger, idle time.Duration, opts ...saga.Option) error {
	echo := color.New(color.FgGreen)
	note := color.New(color.FgYellow)
	dispatch := func(msg any) any {
		a, ok := msg.(saga.Action)
		if !ok {
			return nil
		}
		switch a.Type {
		case "ECHO":
			fmt.Fprintln(out, echo.Sprint(a.Payload))
		case "IDLE":
			fmt.Fprintln(out, note.Sprintf("idle for %s, bye", idle))
		}
		return nil
	}
	onError := func(err error, stack saga.Stack) {
		logger.Error("sagaecho: saga failed", "error", err, "stack", stack.String())
	}
	opts = append(opts, saga.WithDispatch(dispatch), saga.WithErrorHandler(onError), saga.WithLogger(logger))
	rt := saga.New(opts...)
	task := rt.Run(echoSaga, idle)

	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			rt.Emit(saga.Action{Type: "LINE", Payload: sc.Text()})
		}
		rt.Close()
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := task.Wait(ctx)
	return err
}

func echoSaga(args ...any) saga.Proc {
	idle := args[0].(time.Duration)
	next := saga.Take("LINE")
	if idle > 0 {
		next = saga.Race(map[string]saga.Effect{
			"line": saga.Take("LINE"),
			"idle": saga.Delay(idle),
		})
	}
	return saga.Loop(0, func(n int) saga.Step[int] {
		return saga.DoStep(next, func(v any) saga.Step[int] {
			if won, ok := v.(map[string]any); ok {
				line, ok := won["line"]
				if !ok {
					return saga.DoStep(saga.Put(saga.Action{Type: "IDLE"}), func(any) saga.Step[int] {
						return saga.Break[int](saga.Result{Value: n})
					})
				}
				v = line
			}
			a, _ := v.(saga.Action)
			return saga.DoStep(saga.Put(saga.Action{Type: "ECHO", Payload: a.Payload}), func(any) saga.Step[int] {
				return saga.Continue(n + 1)
			})
		})
	})
}
