package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/validation"
	"gopkg.in/yaml.v3"
)

// Registry holds the fixed routine loaded from the tasks file. It is loaded
// once before any scheduling call and never mutated afterwards.
type Registry struct {
	tasks []models.Task
	names map[string]struct{}
}

// Load reads and validates the tasks file. YAML and JSON are both accepted;
// the format is chosen by file extension (.json vs anything else).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var tasks []models.Task
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse tasks file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse tasks file %s: %w", path, err)
		}
	}

	return New(tasks)
}

// New builds a registry from an already-decoded task list, validating every
// entry and rejecting duplicate names.
func New(tasks []models.Task) (*Registry, error) {
	names := make(map[string]struct{}, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		if err := validation.Validate.Struct(task); err != nil {
			return nil, fmt.Errorf("invalid task %q: %w", task.Name, err)
		}
		if _, exists := names[task.Name]; exists {
			return nil, fmt.Errorf("duplicate task name %q", task.Name)
		}
		names[task.Name] = struct{}{}
	}
	return &Registry{tasks: tasks, names: names}, nil
}

// Tasks returns the registry's tasks in file order.
func (r *Registry) Tasks() []models.Task {
	return r.tasks
}

// Names returns the ownership set: every task name known to the registry.
// Calendar events carrying one of these labels are agent-owned.
func (r *Registry) Names() map[string]struct{} {
	return r.names
}

// Owns reports whether a calendar event label belongs to the registry.
func (r *Registry) Owns(label string) bool {
	_, ok := r.names[label]
	return ok
}

// Len returns the number of tasks in the registry.
func (r *Registry) Len() int {
	return len(r.tasks)
}
