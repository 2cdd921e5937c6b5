package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/deal-tracker/internal/telegram"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram submission bot",
	Long: `Long-poll the Telegram Bot API and queue every URL sent to the bot.

Requires TELEGRAM_BOT_TOKEN. TELEGRAM_ALLOWED_USERS restricts who may submit
(comma-separated user ids); when empty every user is accepted.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := a.bot()
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}

// bot builds the Telegram bot over the ingestion gateway.
func (a *app) bot() (*telegram.Bot, error) {
	if a.cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	}
	allowed, err := telegram.ParseAllowedUsers(a.cfg.TelegramAllowedUsers)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		a.logger.Warn("TELEGRAM_ALLOWED_USERS not set; accepting submissions from anyone")
	}
	client := telegram.NewClient(a.cfg.TelegramToken, "")
	return telegram.NewBot(client, a.gateway(), a.store, allowed, a.cfg.ChatMaxURLs, a.logger), nil
}
