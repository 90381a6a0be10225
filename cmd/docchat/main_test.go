package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doc-chat/internal/answer"
	"doc-chat/internal/events"
	"doc-chat/internal/extract"
	"doc-chat/internal/llm"
	"doc-chat/internal/logger"
	"doc-chat/internal/session"
)

func noSpinner() func() { return func() {} }

func loadedController(t *testing.T, client llm.Client, greeting string) (*session.Controller, session.Session) {
	t.Helper()
	log := logger.Discard()
	text := extract.Func(func(b []byte) (string, error) { return string(b), nil })
	ctrl := session.NewController(session.NewMemoryStore(0), text, answer.NewGenerator(client, log, 0), events.NewNoOp(), log, greeting)

	s, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	s, err = ctrl.LoadDocument(context.Background(), s.ID, "notes.pdf", []byte("the launch is on Monday"))
	require.NoError(t, err)
	return ctrl, s
}

func TestChat(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	client := new(llm.MockClient)
	client.On("Generate", mock.Anything, answer.BuildPrompt("When is the launch?", "the launch is on Monday")).
		Return("On Monday.", nil).Once()
	client.On("Generate", mock.Anything, answer.BuildPrompt("", "the launch is on Monday")).
		Return("", errors.New("503 from upstream")).Once()

	ctrl, s := loadedController(t, client, "Hi there.")

	var out bytes.Buffer
	in := strings.NewReader("When is the launch?\n\n/quit\nnever asked\n")
	require.NoError(t, chat(context.Background(), ctrl, s, in, &out, noSpinner))

	assert.Equal(t,
		"ℹ Loaded notes.pdf. Ask a question about the PDF content... (/quit to exit)\n"+
			"assistant> Hi there.\n"+
			"assistant> On Monday.\n"+
			"assistant> "+answer.Fallback+"\n",
		out.String())

	got, err := ctrl.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Log.Len())
	client.AssertExpectations(t)
}

func TestChatEndsOnEOF(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("ok", nil).Twice()
	ctrl, s := loadedController(t, client, "")

	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), ctrl, s, strings.NewReader("one\ntwo"), &out, noSpinner))
	client.AssertExpectations(t)
}

type failingAsker struct{}

func (failingAsker) Ask(context.Context, uuid.UUID, string) (session.Session, error) {
	return session.Session{}, session.ErrSessionNotFound
}

func TestChatStopsOnSessionError(t *testing.T) {
	stopped := 0
	thinking := func() func() { return func() { stopped++ } }

	err := chat(context.Background(), failingAsker{}, session.Session{}, strings.NewReader("q\nq2\n"), &bytes.Buffer{}, thinking)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 1, stopped, "the spinner is stopped even when asking fails")
}

func TestRunRejectsMalformedPDF(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("EVENTS_PROVIDER", "none")

	path := t.TempDir() + "/broken.pdf"
	require.NoError(t, os.WriteFile(path, []byte("definitely not a pdf"), 0o600))

	err := run(context.Background(), path, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, extract.ErrDocumentFormat)
}

func TestRunRequiresCredential(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	err := run(context.Background(), "missing.pdf", strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
