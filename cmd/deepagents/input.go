package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

const (
	questionPrompt     = "? "
	continuationPrompt = ". "
)

// lineSource yields one raw line per call.
type lineSource interface {
	next(prompt string) (string, error)
	Close() error
}

// questionReader reads research questions and chat commands. A line ending
// in a backslash continues the question on the next line.
type questionReader struct {
	src lineSource
}

// newQuestionReader uses readline with a persistent history on a terminal
// and plain buffered reads otherwise.
func newQuestionReader(in io.Reader, out io.Writer, historyPath string) *questionReader {
	if f, ok := in.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		if src, err := newTerminalSource(historyPath); err == nil {
			return &questionReader{src: src}
		}
	}
	return &questionReader{src: &streamSource{r: bufio.NewReader(in), echo: out}}
}

// Question returns the next non-empty input, trimmed. A trailing partial
// question is returned before io.EOF.
func (q *questionReader) Question() (string, error) {
	var parts []string
	prompt := questionPrompt
	for {
		line, err := q.src.next(prompt)
		if err != nil {
			if err == io.EOF && len(parts) > 0 {
				return strings.Join(parts, "\n"), nil
			}
			return "", err
		}
		line = strings.TrimRight(line, " \t")
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			parts = append(parts, strings.TrimSpace(cont))
			prompt = continuationPrompt
			continue
		}
		parts = append(parts, strings.TrimSpace(line))
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			parts, prompt = nil, questionPrompt
			continue
		}
		return text, nil
	}
}

func (q *questionReader) Close() error { return q.src.Close() }

type streamSource struct {
	r    *bufio.Reader
	echo io.Writer
}

func (s *streamSource) next(prompt string) (string, error) {
	if s.echo != nil {
		fmt.Fprint(s.echo, prompt)
	}
	line, err := s.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (s *streamSource) Close() error { return nil }

type terminalSource struct {
	rl *readline.Instance
}

func newTerminalSource(historyPath string) (*terminalSource, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            questionPrompt,
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &terminalSource{rl: rl}, nil
}

func (t *terminalSource) next(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	return t.rl.Readline()
}

func (t *terminalSource) Close() error {
	if t == nil || t.rl == nil {
		return nil
	}
	return t.rl.Close()
}
