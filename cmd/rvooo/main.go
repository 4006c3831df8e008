// Command rvooo simulates a single out-of-order RISC-V superscalar core
// over a fixed instruction workload.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvooo/config"
	"github.com/sarchlab/rvooo/timing/core"
	"github.com/sarchlab/rvooo/workload"
)

var (
	instLimit     int
	numCores      int
	showFactories bool
	topologyPath  string
	statsOutPath  string
)

func main() {
	root := &cobra.Command{
		Use:   "rvooo <workload-file>",
		Short: "Cycle-accurate out-of-order RISC-V superscalar core simulator",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	root.Flags().IntVarP(&instLimit, "inst-limit", "i", 0, "retire instruction limit (0 = no limit)")
	root.Flags().IntVar(&numCores, "num-cores", 1, "number of cores (must be 1)")
	root.Flags().BoolVar(&showFactories, "show-factories", false, "print registered components and exit")
	root.Flags().StringVar(&topologyPath, "topology", "", "path to a YAML/JSON execution topology")
	root.Flags().StringVar(&statsOutPath, "stats-out", "", "path to write per-counter statistics JSON")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("rvooo: fatal")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) (err error) {
	if numCores != 1 {
		return fmt.Errorf("rvooo: --num-cores must be 1, got %d", numCores)
	}

	if showFactories {
		printFactories()
		return nil
	}

	topo := config.Default()
	if topologyPath != "" {
		topo, err = config.Load(topologyPath)
		if err != nil {
			return err
		}
	}

	program, err := workload.Load(args[0])
	if err != nil {
		return err
	}
	if instLimit > 0 && instLimit < len(program) {
		program = program[:instLimit]
	}

	logrus.WithFields(logrus.Fields{
		"workload":  args[0],
		"num_insts": len(program),
	}).Info("rvooo: starting simulation")

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("fault", r).Error("rvooo: structural fault")
			err = fmt.Errorf("rvooo: structural fault: %v", r)
		}
	}()

	c := core.NewCore(topo, program)
	cycles := c.Run()
	stats := c.Stats()

	logrus.WithFields(logrus.Fields{
		"cycles":  cycles,
		"retired": stats.Retired,
		"flushes": stats.Flushes,
	}).Info("rvooo: simulation complete")

	if statsOutPath != "" {
		if err := writeStats(statsOutPath, stats); err != nil {
			return err
		}
	}

	return nil
}

func printFactories() {
	components := []string{
		"scoreboard.View", "flush.Manager", "rename.State", "fusion.Table",
		"uopgen.Generator", "dispatch.Dispatch", "issue.Queue",
		"execute.Pipe", "lsu.LSU", "lsu.VLSU", "cache.Cache", "rob.ROB",
	}
	for _, name := range components {
		fmt.Println(name)
	}
}

func writeStats(path string, stats core.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rvooo: write stats: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
