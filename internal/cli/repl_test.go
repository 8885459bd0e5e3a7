package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	unlocked bool

	calls []string
	args  [][]string
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }
func (f *fakeExec) Unlock(ctx context.Context) error {
	f.calls = append(f.calls, "unlock")
	f.unlocked = true
	return nil
}
func (f *fakeExec) Write(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "write")
	f.args = append(f.args, args)
	return nil
}
func (f *fakeExec) Show(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "show")
	f.args = append(f.args, args)
	return nil
}
func (f *fakeExec) List(ctx context.Context) error {
	f.calls = append(f.calls, "list")
	return nil
}
func (f *fakeExec) Delete(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "delete")
	f.args = append(f.args, args)
	return nil
}
func (f *fakeExec) Chat(ctx context.Context) error {
	f.calls = append(f.calls, "chat")
	return nil
}
func (f *fakeExec) Query(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "query")
	f.args = append(f.args, args)
	return nil
}
func (f *fakeExec) Reindex(ctx context.Context) error {
	f.calls = append(f.calls, "reindex")
	return nil
}
func (f *fakeExec) LockVault(ctx context.Context) error {
	f.calls = append(f.calls, "lock")
	f.unlocked = false
	return nil
}

func silencePrintln(t *testing.T) {
	t.Helper()
	orig := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = orig })
}

func TestRunREPL_Dispatch(t *testing.T) {
	silencePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"write 2024-06-15",
		"show",
		"list",
		"chat",
		"query coffee with anna",
		"reindex",
		"lock",
		"unlock",
		"foobar",
		"exit",
	}, "\n"))

	exec := &fakeExec{unlocked: true}
	runREPL(context.Background(), exec, bufio.NewScanner(input))

	assert.Equal(t, []string{"write", "show", "list", "chat", "query", "reindex", "lock", "unlock"}, exec.calls)
	assert.Equal(t, []string{"2024-06-15"}, exec.args[0])
	assert.Empty(t, exec.args[1])
	assert.Equal(t, []string{"coffee", "with", "anna"}, exec.args[2])
}

func TestRunREPL_ShortForms(t *testing.T) {
	silencePrintln(t)

	input := strings.NewReader("w\nl\nq something\nquit\n")
	exec := &fakeExec{unlocked: true}
	runREPL(context.Background(), exec, bufio.NewScanner(input))

	assert.Equal(t, []string{"write", "list", "query"}, exec.calls)
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	silencePrintln(t)

	exec := &fakeExec{unlocked: true}
	runREPL(context.Background(), exec, bufio.NewScanner(strings.NewReader("list\n")))

	assert.Equal(t, []string{"list"}, exec.calls)
}
