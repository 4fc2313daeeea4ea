package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	content []byte
	err     error
}

func (f *fakeFetcher) FetchContent(context.Context, string) ([]byte, error) {
	return f.content, f.err
}

type fakeChat struct {
	reply string
	err   error
	got   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

type fakeMailer struct {
	subject    string
	body       string
	attachment string
	err        error
	sent       int
}

func (f *fakeMailer) Send(_ context.Context, subject, htmlBody, attachment string) error {
	f.sent++
	f.subject = subject
	f.body = htmlBody
	f.attachment = attachment
	return f.err
}

func testSummarizer(fetcher Fetcher, chat chatClient, mailer *fakeMailer) *Summarizer {
	return &Summarizer{
		chat:    chat,
		model:   "gpt-4o-mini",
		fetcher: fetcher,
		mailer:  mailer,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunSummarizesAndMails(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("cliente: hola\nagente: buenos días")}
	chat := &fakeChat{reply: "<p>Llamada de presentación.</p>"}
	mailer := &fakeMailer{}
	s := testSummarizer(fetcher, chat, mailer)

	err := s.Run(context.Background(), "r1", "https://blobs/reports/r1.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, "Resumen de la sesión r1", mailer.subject)
	assert.Equal(t, "<p>Llamada de presentación.</p>", mailer.body)
	assert.Contains(t, mailer.attachment, "cliente: hola")

	require.Len(t, chat.got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, chat.got.Messages[0].Role)
	assert.Contains(t, chat.got.Messages[1].Content, "buenos días")
}

func TestRunFailsWhenTranscriptMissing(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("not found")}
	mailer := &fakeMailer{}
	s := testSummarizer(fetcher, &fakeChat{reply: "x"}, mailer)

	err := s.Run(context.Background(), "r1", "https://blobs/reports/r1.txt")
	require.Error(t, err)
	assert.Zero(t, mailer.sent)
}

func TestRunFailsWhenModelErrors(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("x")}
	mailer := &fakeMailer{}
	s := testSummarizer(fetcher, &fakeChat{err: errors.New("rate limited")}, mailer)

	err := s.Run(context.Background(), "r1", "https://blobs/reports/r1.txt")
	require.Error(t, err)
	assert.Zero(t, mailer.sent)
}

func TestRunFailsWhenMailerErrors(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("x")}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	s := testSummarizer(fetcher, &fakeChat{reply: "resumen"}, mailer)

	err := s.Run(context.Background(), "r1", "https://blobs/reports/r1.txt")
	assert.Error(t, err)
}
