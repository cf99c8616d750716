package sched

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// FairnessReport summarizes how evenly CPU time has been divided among a
// CPU's currently tracked tasks, relative to their weights.
type FairnessReport struct {
	Tasks        int
	MeanRatio    float64
	StddevRatio  float64
	MaxDeviation float64
}

// Fairness computes a FairnessReport over rq's flat task list: for every
// task-level entity reachable from the CPU, sum_exec_runtime/weight is what
// EEVDF promises to keep close together, using gonum.org/v1/gonum/stat's
// MeanStdDev rather than a hand-rolled sum-then-divide pass.
func Fairness(rq *CpuRunQueue) FairnessReport {
	tasks := rq.CfsTasks()
	if len(tasks) == 0 {
		return FairnessReport{}
	}

	ratios := make([]float64, 0, len(tasks))
	for _, se := range tasks {
		w := float64(se.Load.Weight)
		if w == 0 {
			w = 1
		}
		ratios = append(ratios, float64(se.SumExecRuntime)/w)
	}

	mean, stddev := stat.MeanStdDev(ratios, nil)

	maxDev := 0.0
	for _, r := range ratios {
		d := r - mean
		if d < 0 {
			d = -d
		}
		if d > maxDev {
			maxDev = d
		}
	}

	return FairnessReport{
		Tasks:        len(tasks),
		MeanRatio:    mean,
		StddevRatio:  stddev,
		MaxDeviation: maxDev,
	}
}

// Print renders a terse, human-readable summary after a run.
func (r FairnessReport) Print() {
	fmt.Println("=== Fairness Report ===")
	fmt.Printf("Tasks                 : %d\n", r.Tasks)
	fmt.Printf("Mean runtime/weight   : %.2f\n", r.MeanRatio)
	fmt.Printf("Stddev runtime/weight : %.2f\n", r.StddevRatio)
	fmt.Printf("Max deviation         : %.2f\n", r.MaxDeviation)
}
