// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/tileo/whatsweb/cmd/whatsweb/cli"
	"github.com/tileo/whatsweb/session"
)

func connectCommand() *cli.Command {
	var configPath string
	var sessionID string
	var wait bool
	var timeout time.Duration

	return &cli.Command{
		Name:    "connect",
		Summary: "Connect a session and generate its pairing code",
		Usage:   "whatsweb connect --session <id> [flags]",
		Description: "Open the transport for a session and generate the pairing\n" +
			"payload. The pairing image path is printed so the code can be\n" +
			"scanned from the linked device. With --wait the command blocks\n" +
			"until the device confirms, or until the timeout passes.",
		Examples: []cli.Example{
			{Description: "Connect and print the pairing code location", Command: "whatsweb connect --session work"},
			{Description: "Connect and wait up to two minutes for the scan", Command: "whatsweb connect --session work --wait --timeout 2m"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			flags.BoolVar(&wait, "wait", false, "block until the session authenticates")
			flags.DurationVar(&timeout, "timeout", 0, "authentication wait deadline (default from config)")
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

			c, err := e.openClient(sessionID)
			if err != nil {
				return printDomainError(err)
			}
			defer c.Close(e.ctx)

			info, err := c.Connect(e.ctx)
			if err != nil {
				return printDomainError(err)
			}

			fmt.Printf("pairing payload: %s\n", info.Payload)
			if info.ImagePath != "" {
				fmt.Printf("pairing image:   %s\n", info.ImagePath)
			}

			if !wait {
				return nil
			}
			if timeout <= 0 {
				timeout = e.cfg.AuthTimeout()
			}
			fmt.Printf("waiting up to %s for the device to scan...\n", timeout)
			if err := c.WaitForAuthentication(e.ctx, timeout); err != nil {
				return printDomainError(err)
			}
			fmt.Printf("session %s is ready\n", sessionID)
			return nil
		},
	}
}

func disconnectCommand() *cli.Command {
	var configPath string
	var sessionID string

	return &cli.Command{
		Name:    "disconnect",
		Summary: "Disconnect a session",
		Usage:   "whatsweb disconnect --session <id>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("disconnect", pflag.ContinueOnError)
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

			// Move the record to disconnected regardless of whether this
			// process held the transport open; the status tracks intent.
			record, err := e.manager.GetSession(e.ctx, sessionID)
			if err != nil {
				return printDomainError(err)
			}
			if record == nil {
				return printDomainError(&session.Error{
					Code: session.CodeUnknownSession, Op: "disconnect", SessionID: sessionID,
				})
			}

			if err := e.manager.SetStatus(e.ctx, sessionID, session.StatusDisconnected); err != nil {
				return printDomainError(err)
			}
			fmt.Printf("session %s disconnected\n", sessionID)
			return nil
		},
	}
}
