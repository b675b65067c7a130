// shoprec 是推荐引擎的命令行入口：训练、查询推荐、查看状态。
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/pkg/logging"
)

type app struct {
	configPath  string
	dumpMetrics bool
	cfg         *config.Config
	log         zerolog.Logger
	registry    *prometheus.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "shoprec",
		Short:         "Hybrid product recommender (collaborative + content)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cfg.Log)
			a.registry = prometheus.NewRegistry()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !a.dumpMetrics {
				return nil
			}
			return writeMetrics(cmd.ErrOrStderr(), a.registry)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config (default $"+config.PathEnvVar+")")
	root.PersistentFlags().BoolVar(&a.dumpMetrics, "metrics", false, "print engine metrics in Prometheus text format to stderr after the command")

	root.AddCommand(
		newTrainCommand(a),
		newRecommendCommand(a),
		newSimilarCommand(a),
		newStatusCommand(a),
		newResetCommand(a),
		newConfigCommand(a),
	)
	return root
}

// writeMetrics 以 Prometheus 文本格式输出本次命令收集到的指标。
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
