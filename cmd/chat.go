package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/pkg/assistant"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the knowledge base in the terminal",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	indexStore, err := newIndexStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer indexStore.Close()

	idx, err := openIndex(ctx, embedder, indexStore)
	if err != nil {
		return err
	}

	asst, err := newAssistant(cfg, idx)
	if err != nil {
		return err
	}

	// Interactive chat loop with colored output
	color.Cyan("\nChat with the DE5 assistant (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []models.ConversationTurn
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		responseSpinner := newSpinner(" Thinking...")
		var streamed strings.Builder

		result := asst.Answer(ctx, assistant.Request{Message: query, History: history},
			assistant.WithStreaming(func(chunk string) {
				// Clear spinner on first chunk
				if streamed.Len() == 0 {
					_ = responseSpinner.Finish()
					fmt.Print("\r")
					assistantPrompt("Assistant: ")
				}
				streamed.WriteString(chunk)
				fmt.Print(chunk)
			}))

		shown := strings.TrimSpace(streamed.String())
		switch {
		case streamed.Len() == 0:
			_ = responseSpinner.Finish()
			fmt.Print("\r")
			assistantPrompt("Assistant: %s", result.Response)
		case strings.HasPrefix(result.Response, shown):
			// the lead invitation is appended after generation
			fmt.Print(strings.TrimPrefix(result.Response, shown))
		default:
			assistantPrompt("\nAssistant: %s", result.Response)
		}
		fmt.Print("\n")

		if len(result.Sources) > 0 {
			color.Blue("Sources: %s", strings.Join(result.Sources, ", "))
		}

		history = append(history, models.ConversationTurn{
			UserMessage:       query,
			AssistantResponse: result.Response,
		})
	}

	return scanner.Err()
}
