package prompter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

type Prompter interface {
	Confirm(question string) (bool, error)
	Prompt(question string) (string, error)
}

// TextPrompter reads answers line by line. A final answer without a trailing
// newline (piped input) is still accepted.
type TextPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *TextPrompter {
	return &TextPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TextPrompter) Confirm(q string) (bool, error) {
	answer, err := p.ask(q + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *TextPrompter) Prompt(q string) (string, error) {
	return p.ask(q)
}

func (p *TextPrompter) ask(q string) (string, error) {
	if _, err := fmt.Fprint(p.out, q); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
