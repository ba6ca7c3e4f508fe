package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/uhyunpark/matchbook/pkg/app/engine"
)

const prompt = ">>> "

// runConsole reads commands from in and prints results to out until "exit",
// end of input, or ctx is done.
func runConsole(ctx context.Context, e *engine.Engine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, engine.HelloMessage)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		fmt.Fprint(out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprintln(out, engine.ExitMessage)
			return nil

		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			msg, quit := e.Execute(line)
			fmt.Fprintln(out, msg)
			if quit {
				return nil
			}
		}
	}
}
