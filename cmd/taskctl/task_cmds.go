package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/s1natex/tasktracker/internal/client"
	"github.com/s1natex/tasktracker/internal/tasks"
)

func (a *app) listCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := client.ParseFilter(filter)
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			all, err := a.api.ListTasks(a.ctx(cmd), s, "")
			if err != nil {
				return err
			}

			v := client.NewView(all)
			v.Filter = f
			out := cmd.OutOrStdout()
			visible := v.Visible()
			if len(visible) == 0 {
				fmt.Fprintln(out, "No tasks.")
			} else {
				a.printTable(out, visible)
			}
			st := v.Stats()
			fmt.Fprintf(out, "\n%d total, %d completed, %d pending\n", st.Total, st.Completed, st.Pending)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, pending or completed")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.api.GetTask(a.ctx(cmd), s, args[0])
			if err != nil {
				return err
			}
			a.printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

// taskFlags binds the editable task fields. Only flags the user actually
// set end up in the request body.
type taskFlags struct {
	title, description, due, priority, status string
	clearDue                                  bool
}

func (f *taskFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "task title")
	fs.StringVar(&f.description, "description", "", "task description")
	fs.StringVar(&f.due, "due", "", "due date, YYYY-MM-DD")
	fs.StringVar(&f.priority, "priority", "", "Low, Medium or High")
	fs.StringVar(&f.status, "status", "", "Pending or Completed")
}

func (f *taskFlags) input(fs *pflag.FlagSet) client.TaskInput {
	var in client.TaskInput
	set := func(name string, dst **string, v string) {
		if fs.Changed(name) {
			*dst = &v
		}
	}
	set("title", &in.Title, f.title)
	set("description", &in.Description, f.description)
	set("due", &in.DueDate, f.due)
	set("priority", &in.Priority, f.priority)
	set("status", &in.Status, f.status)
	if f.clearDue {
		empty := ""
		in.DueDate = &empty
	}
	return in
}

func (a *app) addCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.api.CreateTask(a.ctx(cmd), s, f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", t.ID)
			a.printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	f.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.api.UpdateTask(a.ctx(cmd), s, args[0], f.input(cmd.Flags()))
			if err != nil {
				return err
			}
			a.printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	f.bind(cmd.Flags())
	cmd.Flags().BoolVar(&f.clearDue, "clear-due", false, "remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a task between Pending and Completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.api.ToggleStatus(a.ctx(cmd), s, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", t.ID, t.Status)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if err := a.api.DeleteTask(a.ctx(cmd), s, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func statusMark(s tasks.Status) string {
	if s == tasks.StatusCompleted {
		return "[x]"
	}
	return "[ ]"
}

func (a *app) printTable(w io.Writer, ts []tasks.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t\tTITLE\tPRIORITY\tDUE")
	for _, t := range ts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, statusMark(t.Status), t.Title, t.Priority, client.DueLabel(t.DueDate, a.now()))
	}
	_ = tw.Flush()
}

func (a *app) printTask(w io.Writer, t tasks.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status)
	fmt.Fprintf(tw, "Priority:\t%s\n", t.Priority)
	due := client.DueLabel(t.DueDate, a.now())
	if t.DueDate != nil {
		due = t.DueDate.String() + " (" + due + ")"
	}
	fmt.Fprintf(tw, "Due:\t%s\n", due)
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	_ = tw.Flush()
}
