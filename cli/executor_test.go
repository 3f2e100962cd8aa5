package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-lottery/cli/app"
	"github.com/nspcc-dev/neo-lottery/cli/input"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
	// In contains command input.
	In *bytes.Buffer
	// Dir is a temporary directory for files created by commands.
	Dir string
	// Config is the path to the test configuration file.
	Config string
}

const testConfig = `ApplicationConfiguration:
  LogLevel: error
  Contract:
    Name: lottery
    Source: %[1]s
    Config: %[1]s/lottery.yml
    OutputDir: %[2]s/out
    EntryFee: 1000000
  History:
    Type: boltdb
    BoltDBOptions:
      FilePath: %[2]s/history.bolt
`

func newExecutor(t *testing.T) *executor {
	src, err := filepath.Abs("../contract")
	require.NoError(t, err)
	e := &executor{
		CLI: app.New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
		In:  bytes.NewBuffer(nil),
		Dir: t.TempDir(),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	e.Config = filepath.Join(e.Dir, "lottery.yml")
	require.NoError(t, os.WriteFile(e.Config, []byte(fmt.Sprintf(testConfig, filepath.ToSlash(src), filepath.ToSlash(e.Dir))), 0o644))
	t.Cleanup(func() {
		input.Terminal = nil
	})
	return e
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	require.Regexp(t, expected, e.getNextLine(t))
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.ErrorIs(t, err, io.EOF)
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	input.Terminal = term.NewTerminal(input.ReadWriter{
		Reader: e.In,
		Writer: io.Discard,
	}, "")
	err := e.CLI.Run(args)
	input.Terminal = nil
	e.In.Reset()
	return err
}
