package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quiz-challenge/internal/app"
	"quiz-challenge/internal/config"
	"quiz-challenge/internal/domain"
	"quiz-challenge/internal/logger"
)

// NewPlayCmd runs a quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Take the quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			// keep the terminal readable; only errors are logged
			logger.InitWriter(cmd.ErrOrStderr(), "error")

			client, err := newRemoteClient(cfg)
			if err != nil {
				return err
			}
			return play(cmd.Context(), app.NewSession(client), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

var errQuit = errors.New("quit")

// play drives session from line-oriented input: an option number per
// question, then r to retake or q to quit once the score is shown.
func play(ctx context.Context, session *app.Session, in io.Reader, out io.Writer) error {
	p := &player{session: session, in: bufio.NewScanner(in), out: out}
	err := p.run(ctx)
	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type player struct {
	session *app.Session
	in      *bufio.Scanner
	out     io.Writer
}

func (p *player) run(ctx context.Context) error {
	fmt.Fprintln(p.out, "Loading quiz...")
	err := p.session.Load(ctx)
	for {
		for errors.Is(err, domain.ErrLoad) {
			fmt.Fprintln(p.out, p.session.ErrorMessage())
			ok, askErr := p.confirm("Retry? [y/n] ")
			if askErr != nil || !ok {
				return errQuit
			}
			err = p.session.Load(ctx)
		}
		if err != nil {
			return err
		}

		if err := p.answerAll(); err != nil {
			return err
		}
		if err := p.submit(ctx); err != nil {
			return err
		}
		p.printResult()

		again, askErr := p.confirm("Retake quiz? [y/n] ")
		if askErr != nil || !again {
			return errQuit
		}
		err = p.session.Retake(ctx)
	}
}

func (p *player) answerAll() error {
	for i, q := range p.session.Questions() {
		fmt.Fprintf(p.out, "\n%d. %s\n", i+1, q.Text)
		for j, opt := range q.Options {
			fmt.Fprintf(p.out, "   %d) %s\n", j+1, opt)
		}
		for {
			line, err := p.prompt("> ")
			if err != nil {
				return err
			}
			n, convErr := strconv.Atoi(line)
			if convErr != nil || n < 1 || n > len(q.Options) {
				fmt.Fprintf(p.out, "enter a number between 1 and %d\n", len(q.Options))
				continue
			}
			if err := p.session.Select(q.ID, q.Options[n-1]); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (p *player) submit(ctx context.Context) error {
	for {
		err := p.session.Submit(ctx)
		if !errors.Is(err, domain.ErrSubmit) {
			return err
		}
		fmt.Fprintln(p.out, p.session.ErrorMessage())
		ok, askErr := p.confirm("Resubmit? [y/n] ")
		if askErr != nil || !ok {
			return errQuit
		}
	}
}

func (p *player) printResult() {
	res, ok := p.session.Result()
	if !ok {
		return
	}
	fmt.Fprintf(p.out, "\nQuiz Complete! %d of %d correct (%.0f%%)\n", res.Score, res.TotalQuestions, res.Percentage)
	for i, q := range p.session.Questions() {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, q.Text)
		for _, opt := range q.Options {
			fmt.Fprintf(p.out, "   %s %s\n", marker(p.session.OptionState(q.ID, opt)), opt)
		}
	}
}

func marker(state app.OptionState) string {
	switch state {
	case app.OptionCorrect:
		return "[✓]"
	case app.OptionIncorrect:
		return "[✗]"
	case app.OptionSelected:
		return "[*]"
	default:
		return "[ ]"
	}
}

func (p *player) confirm(question string) (bool, error) {
	line, err := p.prompt(question)
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes" || line == "r", nil
}

func (p *player) prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(p.in.Text())
	if line == "q" {
		return "", errQuit
	}
	return line, nil
}
