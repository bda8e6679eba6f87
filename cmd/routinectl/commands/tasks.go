package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTasksCmd creates the tasks command
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the configured routine tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			tasks := rt.reg.Tasks()
			if len(tasks) == 0 {
				fmt.Println("No tasks configured")
				return nil
			}

			fmt.Printf("Tasks from %s:\n", rt.cfg.TasksFile)
			for _, task := range tasks {
				fmt.Printf("  %-30s %s at %s for %d min\n",
					task.Name,
					strings.Join(task.Days, ","),
					task.StartTime,
					task.DurationMinutes)
			}
			return nil
		},
	}

	return cmd
}
