package cluster

import (
	"errors"
	"fmt"
	"slices"
)

// Resource names a buffer or target that stages exchange.
type Resource string

const (
	ResourceClusters     Resource = "clusters"
	ResourceLightIndices Resource = "light_indices"
	ResourceLightGrid    Resource = "light_grid"
	ResourceCounter      Resource = "counter"
	ResourceLights       Resource = "lights"
	ResourceCamera       Resource = "camera"
	ResourceFrame        Resource = "frame"
)

// Stage is one step of a frame. Stages run in order; a stage may only read what an earlier stage
// wrote or what the frame provides up front.
type Stage struct {
	Name     string
	Pipeline string
	Reads    []Resource
	Writes   []Resource
	// Conditional stages run only when their inputs are stale.
	Conditional bool
	Run         func() error
}

var errNoStages = errors.New("no stages")

// ValidateStages checks that a stage list is well formed: names are unique, every stage can run,
// every read is produced by an earlier stage or listed in external, and the final stage always runs.
//
// Parameters:
//   - stages: the ordered stages
//   - external: resources available before the first stage
//
// Returns:
//   - error: the first violation found, or nil
func ValidateStages(stages []Stage, external ...Resource) error {
	if len(stages) == 0 {
		return errNoStages
	}
	available := slices.Clone(external)
	names := make(map[string]struct{}, len(stages))
	for i, s := range stages {
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("stage %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Run == nil {
			return fmt.Errorf("stage %q: no run function", s.Name)
		}
		for _, r := range s.Reads {
			if !slices.Contains(available, r) {
				return fmt.Errorf("stage %q reads %q before it is written", s.Name, r)
			}
		}
		available = append(available, s.Writes...)
	}
	if last := stages[len(stages)-1]; last.Conditional {
		return fmt.Errorf("stage %q: the final stage cannot be conditional", last.Name)
	}
	return nil
}

// RunStages runs the stages in order, skipping conditional stages when stale is false.
//
// Parameters:
//   - stages: the ordered stages
//   - stale: whether conditional stages must run
//
// Returns:
//   - []string: the names of the stages that ran
//   - error: the first stage error, wrapped with its name
func RunStages(stages []Stage, stale bool) ([]string, error) {
	ran := make([]string, 0, len(stages))
	for _, s := range stages {
		if s.Conditional && !stale {
			continue
		}
		if err := s.Run(); err != nil {
			return ran, fmt.Errorf("stage %q: %w", s.Name, err)
		}
		ran = append(ran, s.Name)
	}
	return ran, nil
}
