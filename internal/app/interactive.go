package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
)

// Confirmer запрашивает подтверждение деструктивной операции у оператора
type Confirmer struct {
	in  *bufio.Reader
	out io.Writer
	tty bool
}

// NewConfirmer создаёт Confirmer; интерактивен только если in - терминал
func NewConfirmer(in *os.File, out io.Writer) *Confirmer {
	fd := in.Fd()
	return &Confirmer{
		in:  bufio.NewReader(in),
		out: out,
		tty: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// NewConfirmerFrom создаёт интерактивный Confirmer над произвольным потоком
func NewConfirmerFrom(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out, tty: true}
}

// Interactive сообщает, можно ли спросить оператора
func (c *Confirmer) Interactive() bool { return c.tty }

// Confirm: оператор должен ввести идентификатор тома целиком.
// Без терминала подтверждения нет.
func (c *Confirmer) Confirm(identifier string, boundHuman string, patterns []string) bool {
	if !c.tty {
		return false
	}
	fmt.Fprintf(c.out, "\n⚠️  The first %s of %s will be overwritten with %d passes (%s).\n",
		boundHuman, identifier, len(patterns), strings.Join(patterns, ", "))
	fmt.Fprintf(c.out, "   This cannot be undone. Type %s to confirm: ", identifier)

	input, err := c.in.ReadString('\n')
	if err != nil && input == "" {
		return false
	}
	return strings.TrimSpace(input) == identifier
}

// SignalContext отменяется по SIGINT/SIGTERM; задание останавливается на границе чанка
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
