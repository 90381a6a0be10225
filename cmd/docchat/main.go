// Command docchat chats about a PDF in the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"doc-chat/internal/app"
	"doc-chat/internal/config"
	"doc-chat/internal/extract"
	"doc-chat/internal/logger"
	"doc-chat/internal/render"
	"doc-chat/internal/session"
)

const quitCommand = "/quit"

var (
	noColor  bool
	model    string
	provider string
)

var rootCmd = &cobra.Command{
	Use:   "docchat <file.pdf>",
	Short: "Ask questions about a PDF document",
	Long: `docchat extracts the text of a PDF and answers questions about it with a
generative model. Type a question and press enter; type /quit or send EOF to leave.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return run(cmd.Context(), args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().StringVar(&model, "model", "", "model id (overrides LLM_MODEL)")
	rootCmd.Flags().StringVar(&provider, "provider", "", "gemini, openai or vertex (overrides LLM_PROVIDER)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		render.Error(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, in io.Reader, out io.Writer) error {
	if err := app.LoadDotEnv(); err != nil {
		return err
	}
	cfg := config.Load()
	if provider != "" {
		cfg.LLMProvider = provider
	}
	if model != "" {
		cfg.LLMModel = model
	}
	// stdout carries the conversation only.
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel)

	deps, err := app.BuildWith(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	s, err := deps.Sessions.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Sessions.End(context.WithoutCancel(ctx), s.ID); err != nil {
			log.Warn("failed to end session", "session_id", s.ID, "err", err)
		}
	}()

	s, err = deps.Sessions.LoadDocument(ctx, s.ID, filepath.Base(path), content)
	if err != nil {
		if errors.Is(err, extract.ErrDocumentFormat) {
			return fmt.Errorf("error processing the PDF: %w", err)
		}
		return err
	}

	return chat(ctx, deps.Sessions, s, in, out, newSpinner)
}

// asker is the part of the session controller the chat loop needs.
type asker interface {
	Ask(ctx context.Context, id uuid.UUID, question string) (session.Session, error)
}

// chat reads one question per line until /quit or EOF and prints each reply.
// thinking starts a progress indicator and returns the function that stops it.
func chat(ctx context.Context, ctrl asker, s session.Session, in io.Reader, out io.Writer, thinking func() (stop func())) error {
	render.Info(out, "Loaded %s. %s (%s to exit)", s.DocumentName, render.Placeholder, quitCommand)
	render.Transcript(out, s)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == quitCommand {
			break
		}

		stop := thinking()
		updated, err := ctrl.Ask(ctx, s.ID, line)
		stop()
		if err != nil {
			return err
		}
		if last, ok := updated.Log.Last(); ok {
			render.Entry(out, last)
		}
	}
	return scanner.Err()
}

func newSpinner() func() {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " Thinking..."
	sp.Start()
	return sp.Stop
}
