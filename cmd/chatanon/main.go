package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// exitError carries the process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatanon: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	root := newRootCmd()
	root.SetArgs(args)
	return exitCode(root.ExecuteContext(context.Background()))
}

func exitCode(err error) (int, error) {
	var ee *exitError
	switch {
	case err == nil:
		return exitOK, nil
	case errors.As(err, &ee):
		return ee.code, ee.err
	default:
		return exitRuntime, err
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatanon",
		Short: "Anonymous one-to-one chat with a random stranger",
		Long: `chatanon pairs you with a random stranger for a one-to-one text chat.

Set up a profile once with "chatanon profile set", then run "chatanon chat".
Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(chatCmd(), profileCmd())
	return root
}
