package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
)

// terminal reads answers from the user one line at a time. Reads happen
// on a single goroutine so a prompt can be abandoned when ctx ends.
type terminal struct {
	out io.Writer

	once  sync.Once
	in    io.Reader
	lines chan string
	err   error
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: in, out: out}
}

func (t *terminal) start() {
	t.once.Do(func() {
		t.lines = make(chan string)
		go func() {
			sc := bufio.NewScanner(t.in)
			for sc.Scan() {
				t.lines <- sc.Text()
			}
			t.err = sc.Err()
			if t.err == nil {
				t.err = io.EOF
			}
			close(t.lines)
		}()
	})
}

// line waits for the next input line.
func (t *terminal) line(ctx context.Context) (string, error) {
	t.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return "", t.err
		}
		return strings.TrimSpace(l), nil
	}
}

// ask prints prompt and returns the answer.
func (t *terminal) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	return t.line(ctx)
}

// confirm asks a yes/no question. An empty answer picks def.
func (t *terminal) confirm(ctx context.Context, prompt string, def bool) (bool, error) {
	hint := " [y/N] "
	if def {
		hint = " [Y/n] "
	}
	answer, err := t.ask(ctx, prompt+hint)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// permission asks once per process before the microphone is opened.
type permission struct {
	term *terminal

	mu      sync.Mutex
	granted bool
}

// RequestMicrophonePermission implements capture.Permission.
func (p *permission) RequestMicrophonePermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted {
		return true, nil
	}
	ok, err := p.term.confirm(ctx, "Allow voiceauth to use the microphone?", true)
	if err != nil {
		return false, err
	}
	p.granted = ok
	return ok, nil
}

var _ capture.Permission = (*permission)(nil)
