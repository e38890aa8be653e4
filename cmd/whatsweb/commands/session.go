// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/tileo/whatsweb/cmd/whatsweb/cli"
)

func createCommand() *cli.Command {
	var configPath string
	var sessionID string
	var phoneNumber string

	return &cli.Command{
		Name:    "create",
		Summary: "Create a new session",
		Usage:   "whatsweb create [flags]",
		Description: "Create a new session in the configured store. When --session\n" +
			"is omitted a random id is generated and printed.",
		Examples: []cli.Example{
			{Description: "Create a session with a chosen id", Command: "whatsweb create --session work"},
			{Description: "Create a session with a generated id", Command: "whatsweb create"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id (generated when omitted)")
			flags.StringVar(&phoneNumber, "phone", "", "phone number to associate with the session")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("create takes no positional arguments")
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			record, err := e.manager.CreateSession(e.ctx, sessionID, phoneNumber)
			if err != nil {
				return printDomainError(err)
			}
			fmt.Printf("created session %s (status %s)\n", record.SessionID, record.Status)
			return nil
		},
	}
}

func sessionsCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "sessions",
		Summary: "List all stored sessions",
		Usage:   "whatsweb sessions [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("sessions", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			return flags
		},
		Run: func(args []string) error {
			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			ids, err := e.manager.ListSessions(e.ctx)
			if err != nil {
				return printDomainError(err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tAUTHENTICATED\tPHONE")
			for _, id := range ids {
				record, err := e.manager.GetSession(e.ctx, id)
				if err != nil || record == nil {
					fmt.Fprintf(tw, "%s\t?\t?\t?\n", id)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n",
					record.SessionID, record.Status, record.Authenticated, record.PhoneNumber)
			}
			return tw.Flush()
		},
	}
}

func deleteCommand() *cli.Command {
	var configPath string
	var sessionID string

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a session and its messages",
		Usage:   "whatsweb delete --session <id>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}

			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.manager.DeleteSession(e.ctx, sessionID); err != nil {
				return printDomainError(err)
			}
			fmt.Printf("deleted session %s\n", sessionID)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	var configPath string
	var sessionID string

	return &cli.Command{
		Name:    "status",
		Summary: "Show the state of a session",
		Usage:   "whatsweb status --session <id>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}

			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			record, err := e.manager.GetSession(e.ctx, sessionID)
			if err != nil {
				return printDomainError(err)
			}
			if record == nil {
				fmt.Printf("session %s: unknown\n", sessionID)
				return &cli.ExitError{Code: 2}
			}

			fmt.Printf("session:       %s\n", record.SessionID)
			fmt.Printf("status:        %s\n", record.Status)
			fmt.Printf("authenticated: %t\n", record.Authenticated)
			if record.PhoneNumber != "" {
				fmt.Printf("phone:         %s\n", record.PhoneNumber)
			}
			fmt.Printf("created:       %s\n", record.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("updated:       %s\n", record.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func authenticateCommand() *cli.Command {
	var configPath string
	var sessionID string
	var phoneNumber string

	return &cli.Command{
		Name:    "authenticate",
		Summary: "Mark a session as authenticated",
		Usage:   "whatsweb authenticate --session <id> [--phone <number>]",
		Description: "Mark a session authenticated, as the transport does when the\n" +
			"linked device confirms the pairing scan. Useful for recovery\n" +
			"and for driving the client from scripts.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("authenticate", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			flags.StringVar(&phoneNumber, "phone", "", "phone number confirmed by the device")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}

			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			// The record must be active in memory before it can change.
			if record, err := e.manager.GetSession(e.ctx, sessionID); err != nil {
				return printDomainError(err)
			} else if record == nil {
				fmt.Fprintf(os.Stderr, "error: unknown session %s\n", sessionID)
				return &cli.ExitError{Code: 2}
			}

			if err := e.manager.AuthenticateSession(e.ctx, sessionID, phoneNumber); err != nil {
				return printDomainError(err)
			}
			fmt.Printf("session %s authenticated\n", sessionID)
			return nil
		},
	}
}
