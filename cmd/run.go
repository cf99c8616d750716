package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fairsched/fairsched/internal/workload"
	"github.com/fairsched/fairsched/sched"
)

var (
	horizonNs  uint64
	tickNs     uint64
	seed       int64
	logLevel   string
	numTasks   int
	niceSpread int
	configPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fork a spread of nice-valued tasks and run the scheduler to a fixed horizon",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath != "" {
			data, err := os.ReadFile(configPath)
			if err != nil {
				logrus.Fatalf("reading tunable config: %v", err)
			}
			cfg, err := sched.LoadTunableConfig(data)
			if err != nil {
				logrus.Fatalf("parsing tunable config: %v", err)
			}
			cfg.Apply(sched.DefaultTunables)
		}

		logrus.Infof("starting run: tasks=%d nice_spread=%d horizon=%dns tick=%dns seed=%d",
			numTasks, niceSpread, horizonNs, tickNs, seed)

		d := workload.NewDriver(horizonNs, tickNs, seed)

		denom := max(numTasks-1, 1)
		for i := 0; i < numTasks; i++ {
			nice := -niceSpread + (2*niceSpread*i)/denom
			pid := fmt.Sprintf("task-%d", i)
			d.Schedule(workload.NewForkEvent(0, pid, nice, ""))
		}

		d.Run()
		d.Report().Print()
		logrus.Info("run complete")
	},
}

func init() {
	runCmd.Flags().Uint64Var(&horizonNs, "horizon", 100_000_000, "Run horizon in nanoseconds")
	runCmd.Flags().Uint64Var(&tickNs, "tick", sched.TickNsec, "Scheduler tick period in nanoseconds")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for synthetic workload generation")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().IntVar(&numTasks, "tasks", 4, "Number of synthetic tasks to fork at t=0")
	runCmd.Flags().IntVar(&niceSpread, "nice-spread", 10, "Spread nice values across [-spread, +spread]")
	runCmd.Flags().StringVar(&configPath, "config", "", "Optional YAML file overriding scheduler tunables")

	rootCmd.AddCommand(runCmd)
}
