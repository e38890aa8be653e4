// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/tileo/whatsweb/cmd/whatsweb/cli"
)

func sendCommand() *cli.Command {
	var configPath string
	var sessionID string

	return &cli.Command{
		Name:    "send",
		Summary: "Send a text message",
		Usage:   "whatsweb send --session <id> <number> <text>",
		Examples: []cli.Example{
			{Command: `whatsweb send --session work 11987654321 "meeting at 3"`},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			if len(args) != 2 {
				return fmt.Errorf("send takes exactly two arguments: <number> <text>")
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

			message, err := c.SendMessage(e.ctx, args[0], args[1])
			if err != nil {
				return printDomainError(err)
			}
			fmt.Printf("sent %s to %s\n", message.MessageID, message.ToNumber)
			return nil
		},
	}
}

func sendImageCommand() *cli.Command {
	var configPath string
	var sessionID string
	var caption string

	return &cli.Command{
		Name:    "send-image",
		Summary: "Send an image file",
		Usage:   "whatsweb send-image --session <id> [--caption <text>] <number> <path>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("send-image", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			flags.StringVar(&caption, "caption", "", "caption text")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			if len(args) != 2 {
				return fmt.Errorf("send-image takes exactly two arguments: <number> <path>")
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

			message, err := c.SendImage(e.ctx, args[0], args[1], caption)
			if err != nil {
				return printDomainError(err)
			}
			fmt.Printf("sent %s to %s\n", message.MessageID, message.ToNumber)
			return nil
		},
	}
}

func sendDocumentCommand() *cli.Command {
	var configPath string
	var sessionID string
	var caption string

	return &cli.Command{
		Name:    "send-document",
		Summary: "Send a document file",
		Usage:   "whatsweb send-document --session <id> [--caption <text>] <number> <path>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("send-document", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			flags.StringVar(&caption, "caption", "", "caption text")
			return flags
		},
		Run: func(args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			if len(args) != 2 {
				return fmt.Errorf("send-document takes exactly two arguments: <number> <path>")
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

			message, err := c.SendDocument(e.ctx, args[0], args[1], caption)
			if err != nil {
				return printDomainError(err)
			}
			fmt.Printf("sent %s to %s\n", message.MessageID, message.ToNumber)
			return nil
		},
	}
}
