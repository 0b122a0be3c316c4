package agent

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// ErrAborted возвращается, когда оператор прервал ввод (Ctrl-C).
var ErrAborted = errors.New("input aborted")

// Prompter читает строки оператора. В конце ввода Prompt возвращает io.EOF.
type Prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// NewPrompter выбирает редактор строк liner для терминала и построчное чтение для остальных случаев.
func NewPrompter(in *os.File, out io.Writer, historyFile string) Prompter {
	if term.IsTerminal(int(in.Fd())) {
		return newLinerPrompter(historyFile)
	}
	return NewLinePrompter(in, out)
}

type linePrompter struct {
	r *bufio.Reader
	w io.Writer
}

// NewLinePrompter читает ответы из r и печатает приглашения в w.
func NewLinePrompter(r io.Reader, w io.Writer) Prompter {
	return &linePrompter{r: bufio.NewReader(r), w: w}
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	if _, err := io.WriteString(p.w, prompt); err != nil {
		return "", err
	}
	line, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *linePrompter) AppendHistory(string) {}

func (p *linePrompter) Close() error { return nil }

type linerPrompter struct {
	state       *liner.State
	historyFile string
}

func newLinerPrompter(historyFile string) *linerPrompter {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	p := &linerPrompter{state: st, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = st.ReadHistory(f)
			_ = f.Close()
		}
	}
	return p
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	return line, err
}

func (p *linerPrompter) AppendHistory(line string) {
	if strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}
}

func (p *linerPrompter) Close() error {
	if p.historyFile != "" {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = p.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return p.state.Close()
}

// Confirm задает вопрос с ответом y/N. Пустой ответ означает отказ.
func Confirm(p Prompter, out io.Writer, question string) (bool, error) {
	for {
		answer, err := p.Prompt(question)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		if _, err := io.WriteString(out, "Please answer 'y' or 'n'.\n"); err != nil {
			return false, err
		}
	}
}
