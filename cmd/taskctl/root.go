package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1natex/tasktracker/internal/client"
)

type app struct {
	server      string
	sessionPath string
	api         *client.Client
	now         func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage your tasks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.sessionPath == "" {
				p, err := defaultSessionPath()
				if err != nil {
					return err
				}
				a.sessionPath = p
			}
			a.api = client.New(a.server)
			return nil
		},
	}

	server := os.Getenv("TASKCTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "API base URL (env TASKCTL_SERVER)")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", "", "session file (default: user config dir)")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.listCmd(),
		a.showCmd(),
		a.addCmd(),
		a.editCmd(),
		a.toggleCmd(),
		a.rmCmd(),
	)
	return root
}

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "taskctl", "session.json"), nil
}

// session loads the saved session and refuses an expired one.
func (a *app) session() (client.Session, error) {
	s, err := client.LoadSession(a.sessionPath)
	if errors.Is(err, client.ErrNoSession) {
		return client.Session{}, errors.New("not logged in, run: taskctl login")
	}
	if err != nil {
		return client.Session{}, err
	}
	if s.Expired(a.now()) {
		return client.Session{}, errors.New("session expired, run: taskctl login")
	}
	return s, nil
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
