package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/firedoc/internal/record"
	"github.com/msto63/firedoc/internal/tasks"
)

var (
	taskCollection string
	taskID         string
	taskDone       bool
	taskUndo       bool
	taskPageToken  string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Work with task documents",
	Long: `Tasks are documents with a string field "name" and a boolean field "done".
A document missing either field, or holding the wrong type, is reported
as an error instead of being skipped.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list [collection]",
	Short: "List one page of tasks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := taskCollection
		if len(args) == 1 {
			collection = args[0]
		}
		return withSession(cmd, func(s *session) error {
			var list []record.Task
			var next string
			err := s.retry(cmd, func(ctx context.Context) (err error) {
				list, next, err = s.tasks().List(ctx, collection, taskPageToken)
				return err
			})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no tasks")
			}
			for _, t := range list {
				fmt.Println(t)
			}
			if next != "" {
				fmt.Printf("more: --page-token %s\n", next)
			}
			return nil
		})
	},
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			var t record.Task
			err := s.retry(cmd, func(ctx context.Context) (err error) {
				t, err = s.tasks().Get(ctx, taskCollection, args[0])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		})
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			t, err := s.tasks().Create(cmd.Context(), taskCollection,
				record.Task{DocumentID: taskID, Name: args[0], Done: taskDone})
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		})
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			var t record.Task
			err := s.retry(cmd, func(ctx context.Context) (err error) {
				t, err = s.tasks().SetDone(ctx, taskCollection, args[0], !taskUndo)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		})
	},
}

func init() {
	tasksCmd.PersistentFlags().StringVarP(&taskCollection, "collection", "c", tasks.DefaultCollection, "task collection path")
	tasksCreateCmd.Flags().StringVar(&taskID, "id", "", "document id (default: assigned by the store)")
	tasksCreateCmd.Flags().BoolVar(&taskDone, "done", false, "create the task already done")
	tasksListCmd.Flags().StringVar(&taskPageToken, "page-token", "", "continue from a previous page")
	tasksDoneCmd.Flags().BoolVar(&taskUndo, "undo", false, "mark the task as not done")

	tasksCmd.AddCommand(tasksListCmd, tasksGetCmd, tasksCreateCmd, tasksDoneCmd)
	rootCmd.AddCommand(tasksCmd)
}
