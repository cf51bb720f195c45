package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/satriahrh/irp-helper/adapters/terminal"
	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/usecase"
	"github.com/satriahrh/irp-helper/utils/log"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Debug {
				log.Configure(true)
			} else {
				log.Quiet()
			}

			completer, err := newCompleter(cmd.Context(), cfg.Gemini)
			if err != nil {
				return err
			}
			sessions := usecase.NewSessionStore(usecase.NewChatService(completer))

			rl, err := terminal.NewReadline()
			if err != nil {
				return err
			}
			defer rl.Close()

			console := terminal.NewConsole(rl, os.Stdout, terminal.WithSpeed(cfg.Chat.TypewriterSpeed))
			sess, err := console.Onboard(sessions)
			if errors.Is(err, terminal.ErrQuit) {
				return nil
			}
			if err != nil {
				return err
			}
			return console.Chat(cmd.Context(), sess)
		},
	}
}
