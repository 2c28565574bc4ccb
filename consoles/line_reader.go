package consoles

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// NewLineReader uses a line editor when in is a terminal, a plain buffered reader otherwise.
func NewLineReader(in io.Reader, out io.Writer, prompt string, historyFile string) (LineReader, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:      prompt,
			HistoryFile: historyFile,
			Stdin:       f,
			Stdout:      out,
		})
		if err != nil {
			return nil, err
		}
		return &editorReader{
			rl: rl,
		}, nil
	}
	return NewBufferedReader(in), nil
}

type editorReader struct {
	rl *readline.Instance
}

func (e *editorReader) ReadLine() (string, error) {
	line, err := e.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (e *editorReader) Close() error {
	return e.rl.Close()
}

type bufferedReader struct {
	reader *bufio.Reader
	closer io.Closer
}

func NewBufferedReader(in io.Reader) LineReader {
	ret := &bufferedReader{
		reader: bufio.NewReader(in),
	}
	if closer, ok := in.(io.Closer); ok {
		ret.closer = closer
	}
	return ret
}

func (b *bufferedReader) ReadLine() (string, error) {
	line, err := b.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

func (b *bufferedReader) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
