package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"liveclass/internal/app"
	"liveclass/internal/chat"
	"liveclass/internal/config"
	"liveclass/pkg/types"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Inspect and maintain the stored chat history",
	}
	cmd.AddCommand(newChatShowCmd(opts), newChatPruneCmd(opts))
	return cmd
}

func newChatShowCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	var limit int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print stored chat messages as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd)
			if err != nil {
				return err
			}
			store, err := app.OpenChatStore(cmd.Context(), cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer store.Close()

			messages, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read chat history: %w", err)
			}
			renderMessages(cmd.OutOrStdout(), filterMessages(messages, sessionID, limit))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only show this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most the newest n messages")
	config.AddFlags(cmd.Flags())
	return cmd
}

func newChatPruneCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop messages older than the retention window and rewrite the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd)
			if err != nil {
				return err
			}
			store, err := app.OpenChatStore(cmd.Context(), cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			before, err := store.Load(cmd.Context())
			if err != nil {
				_ = store.Close()
				return fmt.Errorf("failed to read chat history: %w", err)
			}

			chatLog := chat.NewLog(store, chat.Options{
				Retention: cfg.Chat.Retention,
				MaxLength: cfg.Chat.MaxLength,
			}, zerolog.Nop(), nil)
			if err := chatLog.Load(cmd.Context()); err != nil {
				_ = chatLog.Close()
				return err
			}
			kept := chatLog.Len()
			if err := chatLog.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d of %d messages older than %s\n",
				len(before)-kept, len(before), cfg.Chat.Retention)
			return nil
		},
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

func filterMessages(messages []types.ChatMessage, sessionID string, limit int) []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if sessionID == "" || m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func renderMessages(w io.Writer, messages []types.ChatMessage) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Session", "User", "Role", "Message"})
	for _, m := range messages {
		role := "student"
		if m.IsTeacher {
			role = "teacher"
		}
		t.AppendRow(table.Row{
			m.Timestamp.Local().Format(time.DateTime),
			m.SessionID,
			m.UserName,
			role,
			m.Text,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(messages)})
	t.Render()
}
