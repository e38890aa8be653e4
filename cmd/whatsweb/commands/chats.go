// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/tileo/whatsweb/cmd/whatsweb/cli"
)

func chatsCommand() *cli.Command {
	var configPath string
	var sessionID string

	return &cli.Command{
		Name:    "chats",
		Summary: "List the session's conversations",
		Usage:   "whatsweb chats --session <id>",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("chats", pflag.ContinueOnError)
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

			c, err := e.openClient(sessionID)
			if err != nil {
				return printDomainError(err)
			}
			defer c.Close(e.ctx)

			chats, err := c.Chats(e.ctx)
			if err != nil {
				return printDomainError(err)
			}
			if len(chats) == 0 {
				fmt.Println("no chats")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tMESSAGES\tLAST ACTIVITY")
			for _, chat := range chats {
				fmt.Fprintf(tw, "%s\t%d\t%s\n",
					chat.Number, chat.MessageCount,
					chat.LastMessage.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func messagesCommand() *cli.Command {
	var configPath string
	var sessionID string
	var chatNumber string
	var limit int

	return &cli.Command{
		Name:    "messages",
		Summary: "List the session's messages, newest first",
		Usage:   "whatsweb messages --session <id> [--chat <number>] [--limit <n>]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("messages", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&sessionID, "session", "", "session id")
			flags.StringVar(&chatNumber, "chat", "", "restrict to one conversation")
			flags.IntVar(&limit, "limit", 20, "maximum messages to list (0 for all)")
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

			messages, err := c.Messages(e.ctx, chatNumber, limit)
			if err != nil {
				return printDomainError(err)
			}
			if len(messages) == 0 {
				fmt.Println("no messages")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTO\tKIND\tCONTENT")
			for _, message := range messages {
				content := truncateDisplay(message.Content, 60)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					message.Timestamp.Format("2006-01-02 15:04:05"),
					message.ToNumber, message.Kind, content)
			}
			return tw.Flush()
		},
	}
}

// truncateDisplay caps a table cell at max runes, never splitting a
// multi-byte character.
func truncateDisplay(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
