package importer

import (
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// Plan groups jobs into dependency levels: every job comes after the jobs
// it depends on, and jobs of one level are independent of each other.
// Dependencies on models outside jobs are ignored. Jobs caught in a cycle
// form a final level in declaration order.
func Plan(jobs []ModelJob) [][]ModelJob {
	present := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		present[j.Model] = true
	}

	var levels [][]ModelJob
	done := make(map[string]bool, len(jobs))
	remaining := jobs
	for len(remaining) > 0 {
		var level, rest []ModelJob
		for _, j := range remaining {
			if ready(j, present, done) {
				level = append(level, j)
			} else {
				rest = append(rest, j)
			}
		}
		if len(level) == 0 {
			logger.Warnf("Circular dependency among %v. Importing them last in declaration order.", modelNames(rest))
			levels = append(levels, rest)
			break
		}
		for _, j := range level {
			done[j.Model] = true
		}
		levels = append(levels, level)
		remaining = rest
	}
	return levels
}

func ready(j ModelJob, present, done map[string]bool) bool {
	for _, dep := range j.DependsOn {
		if present[dep] && !done[dep] && dep != j.Model {
			return false
		}
	}
	return true
}

func modelNames(jobs []ModelJob) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Model)
	}
	return out
}

// hasDependents reports the models some other job depends on.
func hasDependents(jobs []ModelJob) map[string]bool {
	out := make(map[string]bool)
	for _, j := range jobs {
		for _, dep := range j.DependsOn {
			if dep != j.Model {
				out[dep] = true
			}
		}
	}
	return out
}
