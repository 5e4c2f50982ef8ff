package shell

import (
	"context"
	"testing"

	"github.com/brettbedarf/deskfs/kv"
	"github.com/brettbedarf/deskfs/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), kv.NewMemoryStore(), session.Options{})
	require.NoError(t, err)
	return s
}

func newShell(t *testing.T) *Shell {
	t.Helper()
	return New(newSession(t).NewCursor())
}

// run executes lines in order and returns the output of the last one
func run(sh *Shell, lines ...string) []string {
	var out []string
	for _, l := range lines {
		out = sh.Exec(l)
	}
	return out
}

func TestShell_BasicCommands(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	assert.Equal(t, []string{"[dir] Pictures"}, sh.Exec("ls"))
	assert.Equal(t, []string{"/"}, sh.Exec("pwd"))
	assert.Equal(t, []string{"Created folder: Docs"}, sh.Exec("mkdir Docs"))
	assert.Nil(t, sh.Exec("cd Docs"))
	assert.Equal(t, []string{"/Docs"}, sh.Exec("pwd"))
	assert.Equal(t, "deskfs:/Docs$ ", sh.Prompt())
	assert.Equal(t, []string{"Empty directory"}, sh.Exec("ls"))
	assert.Equal(t, []string{"Created file: a.txt"}, sh.Exec("touch a.txt"))
	assert.Equal(t, []string{"[file] a.txt"}, sh.Exec("ls"))
	assert.Equal(t, []string{"(empty file)"}, sh.Exec("cat a.txt"))
	assert.Nil(t, sh.Exec("cd .."))
	assert.Equal(t, []string{"/"}, sh.Exec("pwd"))
	assert.Nil(t, sh.Exec("cd .."), "cd .. at root is a no-op")
	assert.Equal(t, []string{"[dir] Pictures", "[dir] Docs"}, sh.Exec("ls"))
}

func TestShell_MissingArguments(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	cases := map[string]string{
		"mkdir": "mkdir: missing folder name",
		"touch": "touch: missing file name",
		"rm":    "rm: missing file or folder name",
		"cat":   "cat: missing file name",
		"mv a":  "mv: missing source or destination",
		"cp":    "cp: missing source or destination",
	}
	for line, want := range cases {
		assert.Equal(t, []string{want}, sh.Exec(line), line)
	}
}

func TestShell_UnresolvedNames(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	sh.Exec("touch f")
	assert.Equal(t, []string{"cd: nope: No such directory"}, sh.Exec("cd nope"))
	assert.Equal(t, []string{"cd: f: No such directory"}, sh.Exec("cd f"), "files are not directories")
	assert.Equal(t, []string{"rm: nope: No such file or directory"}, sh.Exec("rm nope"))
	assert.Equal(t, []string{"cat: Pictures: No such file"}, sh.Exec("cat Pictures"))
	assert.Equal(t, []string{"mv: nope: No such file or directory"}, sh.Exec("mv nope Pictures"))
	assert.Equal(t, []string{"cp: f: No such directory"}, sh.Exec("cp Pictures f"))
	assert.Equal(t, []string{"frobnicate: command not found"}, sh.Exec("frobnicate now"))
}

func TestShell_MoveCopyRemove(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	run(sh, "mkdir A", "cd A", "mkdir B", "touch note", "cd ..")

	assert.Equal(t, []string{"mv: cannot move a folder into its own descendant"}, sh.Exec("mv A A/B"))
	assert.Equal(t, []string{"Copied A to Pictures"}, sh.Exec("cp A Pictures"))
	assert.Equal(t, []string{"[dir] B", "[file] note"}, run(sh, "cd Pictures/A", "ls"))

	run(sh, "cd /")
	assert.Equal(t, []string{"Moved A to Pictures"}, sh.Exec("mv A Pictures"))
	assert.Equal(t, []string{"[dir] A", "[dir] A"}, run(sh, "cd Pictures", "ls"))

	assert.Equal(t, []string{"Deleted: A"}, sh.Exec("rm A"))
	assert.Equal(t, []string{"[dir] A"}, sh.Exec("ls"))
}

func TestShell_QuotedNames(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	assert.Equal(t, []string{"Created folder: My Docs"}, sh.Exec(`mkdir "My Docs"`))
	assert.Nil(t, sh.Exec(`cd "My Docs"`))
	assert.Equal(t, []string{"/My Docs"}, sh.Exec("pwd"))
}

func TestShell_StaleCursorResets(t *testing.T) {
	t.Parallel()

	s := newSession(t)
	first := New(s.NewCursor())
	second := New(s.NewCursor())

	run(first, "mkdir Docs", "cd Docs")
	assert.Equal(t, []string{"Deleted: Docs"}, second.Exec("rm Docs"))

	assert.Equal(t, []string{staleNotice, "Created file: x"}, first.Exec("touch x"))
	assert.Equal(t, []string{"/"}, first.Exec("pwd"))
}

func TestShell_MoveKeepsWorkingDirectory(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	run(sh, "mkdir A", "mkdir C", "cd A", "mkdir B", "cd B")

	assert.Equal(t, []string{"Moved /A to /C"}, sh.Exec("mv /A /C"))
	assert.Equal(t, []string{"/C/A/B"}, sh.Exec("pwd"))
	assert.Equal(t, []string{"Created file: x"}, sh.Exec("touch x"))
	assert.Equal(t, []string{"/C/A"}, run(sh, "cd ..", "pwd"))
	assert.Equal(t, []string{"cp: cannot copy root"}, sh.Exec("cp / /C"))
}

func TestShell_HistoryAndClear(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	assert.Nil(t, sh.Exec("   "))
	sh.Exec("pwd")
	sh.Exec("clear")
	assert.True(t, sh.Cleared())
	sh.Exec("ls")
	assert.False(t, sh.Cleared())

	assert.Equal(t, []string{"pwd", "clear", "ls"}, sh.History())
	assert.Equal(t, []string{"   1  pwd", "   2  clear", "   3  ls", "   4  history"}, sh.Exec("history"))
}

func TestShell_Help(t *testing.T) {
	t.Parallel()

	out := newShell(t).Exec("help")
	require.NotEmpty(t, out)
	assert.Equal(t, "Available commands:", out[0])
}

func TestSplitArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  ls  ", []string{"ls"}},
		{"mv a\tb", []string{"mv", "a", "b"}},
		{`touch "a b" c`, []string{"touch", "a b", "c"}},
		{`touch ""`, []string{"touch", ""}},
		{`cat x"y z"`, []string{"cat", "xy z"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SplitArgs(tc.line), tc.line)
	}
}
