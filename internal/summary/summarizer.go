// Package summary turns a finished session's transcript into a written
// summary and mails it to the advisor.
package summary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/adrijh/echo-lib/internal/notify"
)

const systemPrompt = `Eres un asistente que resume llamadas comerciales.
Resume la transcripción en español: puntos tratados, acuerdos y próximos pasos.
Devuelve HTML sencillo (párrafos y listas), sin preámbulo.`

// Fetcher retrieves a transcript blob by its report URL.
type Fetcher interface {
	FetchContent(ctx context.Context, url string) ([]byte, error)
}

// chatClient is the slice of the model API the summarizer needs.
// *openai.Client satisfies it.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Summarizer struct {
	chat    chatClient
	model   string
	fetcher Fetcher
	mailer  notify.Mailer
	log     *slog.Logger
}

func New(apiKey, model string, fetcher Fetcher, mailer notify.Mailer, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		chat:    openai.NewClient(apiKey),
		model:   model,
		fetcher: fetcher,
		mailer:  mailer,
		log:     logger,
	}
}

// Run fetches the transcript, asks the model for a summary, and mails
// it out with the original transcript attached.
func (s *Summarizer) Run(ctx context.Context, roomID, reportURL string) error {
	transcript, err := s.fetcher.FetchContent(ctx, reportURL)
	if err != nil {
		return fmt.Errorf("fetch transcript for %s: %w", roomID, err)
	}

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(transcript)},
		},
	})
	if err != nil {
		return fmt.Errorf("summarize %s: %w", roomID, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("summarize %s: model returned no choices", roomID)
	}
	summaryHTML := resp.Choices[0].Message.Content

	subject := "Resumen de la sesión " + roomID
	if err := s.mailer.Send(ctx, subject, summaryHTML, string(transcript)); err != nil {
		return fmt.Errorf("mail summary for %s: %w", roomID, err)
	}

	s.log.Info("session summary delivered", slog.String("room", roomID))
	return nil
}
