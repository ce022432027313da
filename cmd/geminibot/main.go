package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yetazero/GeminiTelegramBot/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "geminibot",
		Short: "Telegram relay bot for the Gemini API",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
