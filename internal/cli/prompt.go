package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// Prompter reads answers line by line and re-asks on invalid input.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter over in, writing questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask writes question and passes each answer to parse until it accepts one. A
// *domain.UserInputError from parse re-prompts; any other error is returned.
// io.EOF is returned once input is exhausted.
func (p *Prompter) Ask(question string, parse func(answer string) error) error {
	for {
		fmt.Fprint(p.out, question)

		line, err := p.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return err
		}

		perr := parse(strings.TrimSpace(line))
		if perr == nil {
			return nil
		}

		var uie *domain.UserInputError
		if !errors.As(perr, &uie) {
			return perr
		}
		fmt.Fprintf(p.out, "❌ %s\n", uie.Reason)

		if errors.Is(err, io.EOF) {
			return io.EOF
		}
	}
}

// Int asks for an integer in [min, max]. A max of 0 means unbounded.
func (p *Prompter) Int(question string, min, max int) (int, error) {
	var n int
	err := p.Ask(question, func(answer string) error {
		v, err := ParseInt(answer, min, max)
		if err != nil {
			return err
		}
		n = v
		return nil
	})
	return n, err
}

// ParseInt validates a numeric answer.
func ParseInt(answer string, min, max int) (int, error) {
	v, err := strconv.Atoi(answer)
	if err != nil {
		return 0, &domain.UserInputError{Input: answer, Reason: "please enter a number"}
	}
	if v < min || (max > 0 && v > max) {
		reason := fmt.Sprintf("please enter a number of at least %d", min)
		if max > 0 {
			reason = fmt.Sprintf("please enter a number between %d and %d", min, max)
		}
		return 0, &domain.UserInputError{Input: answer, Reason: reason}
	}
	return v, nil
}
