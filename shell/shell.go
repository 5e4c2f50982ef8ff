// Package shell implements the desktop's command-line collaborator on top of
// its own navigation cursor.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
)

const staleNotice = "Current directory no longer exists, returning to /"

var helpLines = []string{
	"Available commands:",
	"  ls              - List files and folders",
	"  cd <folder>     - Change directory",
	"  pwd             - Print working directory",
	"  mkdir <name>    - Create a new folder",
	"  touch <name>    - Create a new file",
	"  rm <name>       - Delete file or folder",
	"  cat <file>      - Display file content",
	"  mv <src> <dst>  - Move file or folder",
	"  cp <src> <dst>  - Copy file or folder",
	"  history         - Show entered commands",
	"  clear           - Clear terminal",
	"  help            - Show this help message",
}

// Shell executes one command line at a time against a cursor
type Shell struct {
	fs      deskfs.ShellBackend
	history []string
	cleared bool
}

func New(backend deskfs.ShellBackend) *Shell {
	return &Shell{fs: backend}
}

// Banner is printed once when an interactive shell starts
func (sh *Shell) Banner() []string {
	return []string{"deskfs terminal v1.0", "Type 'help' for available commands"}
}

// Prompt renders the prompt for the current directory
func (sh *Shell) Prompt() string {
	p, err := sh.fs.PathString()
	if err != nil {
		p = "?"
	}
	return fmt.Sprintf("deskfs:%s$ ", p)
}

// History returns every non-empty line entered so far, oldest first
func (sh *Shell) History() []string {
	return append([]string(nil), sh.history...)
}

// Cleared reports whether the last command asked to clear the screen
func (sh *Shell) Cleared() bool {
	return sh.cleared
}

// Exec runs a single command line and returns its output lines.
// Failures are reported as output; Exec itself never fails.
func (sh *Shell) Exec(line string) []string {
	logger := util.GetLogger("Shell.Exec")
	sh.cleared = false

	args := SplitArgs(line)
	if len(args) == 0 {
		return nil
	}
	sh.history = append(sh.history, strings.TrimSpace(line))
	cmd, args := args[0], args[1:]
	logger.Trace().Str("cmd", cmd).Strs("args", args).Msg("Executing")

	var out []string
	if sh.fs.IsStale() {
		sh.fs.Reset()
		out = append(out, staleNotice)
	}

	switch cmd {
	case "help":
		out = append(out, helpLines...)
	case "ls":
		out = append(out, sh.ls()...)
	case "pwd":
		out = append(out, sh.pwd())
	case "cd":
		out = append(out, sh.cd(args)...)
	case "mkdir":
		out = append(out, sh.create(cmd, args, true)...)
	case "touch":
		out = append(out, sh.create(cmd, args, false)...)
	case "rm":
		out = append(out, sh.rm(args)...)
	case "cat":
		out = append(out, sh.cat(args)...)
	case "mv", "cp":
		out = append(out, sh.transfer(cmd, args)...)
	case "history":
		for i, h := range sh.history {
			out = append(out, fmt.Sprintf("%4d  %s", i+1, h))
		}
	case "clear":
		sh.cleared = true
	default:
		out = append(out, fmt.Sprintf("%s: command not found", cmd))
	}
	return out
}

// failure renders a core error as "<cmd>: <message>"
func failure(cmd string, err error) string {
	var storeErr *filesystem.StoreError
	if errors.As(err, &storeErr) {
		return fmt.Sprintf("%s: %s", cmd, storeErr.Message)
	}
	return fmt.Sprintf("%s: %s", cmd, err)
}

// resolve finds name in the current folder. Names containing a slash are
// treated as paths.
func (sh *Shell) resolve(name string, kind *filesystem.Kind) (filesystem.FileNode, error) {
	if strings.Contains(name, "/") {
		n, err := sh.fs.ResolveNamePath(name)
		if err != nil {
			return n, err
		}
		if kind != nil && n.Kind != *kind {
			return filesystem.FileNode{}, filesystem.NewNotFoundError(n.ID, kind.String())
		}
		return n, nil
	}
	return sh.fs.ResolveByName(name, sh.fs.CurrentID(), kind)
}

func (sh *Shell) ls() []string {
	children, err := sh.fs.Children()
	if err != nil {
		return []string{failure("ls", err)}
	}
	if len(children) == 0 {
		return []string{"Empty directory"}
	}
	out := make([]string, 0, len(children))
	for _, c := range children {
		tag := "[file]"
		if c.IsFolder() {
			tag = "[dir]"
		}
		out = append(out, fmt.Sprintf("%s %s", tag, c.Name))
	}
	return out
}

func (sh *Shell) pwd() string {
	p, err := sh.fs.PathString()
	if err != nil {
		return failure("pwd", err)
	}
	return p
}

func (sh *Shell) cd(args []string) []string {
	if len(args) == 0 || args[0] == "/" {
		sh.fs.Reset()
		return nil
	}
	target := args[0]
	if target == ".." {
		sh.fs.Up()
		return nil
	}

	folder := filesystem.Folder
	n, err := sh.resolve(target, &folder)
	if err != nil {
		return []string{fmt.Sprintf("cd: %s: No such directory", target)}
	}
	if err := sh.fs.NavigateToNode(n.ID); err != nil {
		return []string{failure("cd", err)}
	}
	return nil
}

func (sh *Shell) create(cmd string, args []string, folder bool) []string {
	if len(args) == 0 {
		what := "file"
		if folder {
			what = "folder"
		}
		return []string{fmt.Sprintf("%s: missing %s name", cmd, what)}
	}
	name := args[0]
	if folder {
		if _, err := sh.fs.CreateFolder(name); err != nil {
			return []string{failure(cmd, err)}
		}
		return []string{"Created folder: " + name}
	}
	if _, err := sh.fs.CreateFile(name, ""); err != nil {
		return []string{failure(cmd, err)}
	}
	return []string{"Created file: " + name}
}

func (sh *Shell) rm(args []string) []string {
	if len(args) == 0 {
		return []string{"rm: missing file or folder name"}
	}
	n, err := sh.resolve(args[0], nil)
	if err != nil {
		return []string{fmt.Sprintf("rm: %s: No such file or directory", args[0])}
	}
	if err := sh.fs.DeleteNode(n.ID); err != nil {
		return []string{failure("rm", err)}
	}
	return []string{"Deleted: " + args[0]}
}

func (sh *Shell) cat(args []string) []string {
	if len(args) == 0 {
		return []string{"cat: missing file name"}
	}
	file := filesystem.File
	n, err := sh.resolve(args[0], &file)
	if err != nil {
		return []string{fmt.Sprintf("cat: %s: No such file", args[0])}
	}
	if n.Content == "" {
		return []string{"(empty file)"}
	}
	return strings.Split(n.Content, "\n")
}

func (sh *Shell) transfer(cmd string, args []string) []string {
	if len(args) < 2 {
		return []string{fmt.Sprintf("%s: missing source or destination", cmd)}
	}
	src, err := sh.resolve(args[0], nil)
	if err != nil {
		return []string{fmt.Sprintf("%s: %s: No such file or directory", cmd, args[0])}
	}
	folder := filesystem.Folder
	dst, err := sh.resolve(args[1], &folder)
	if err != nil {
		return []string{fmt.Sprintf("%s: %s: No such directory", cmd, args[1])}
	}

	if cmd == "mv" {
		if err := sh.fs.MoveNode(src.ID, dst.ID); err != nil {
			return []string{failure(cmd, err)}
		}
		return []string{fmt.Sprintf("Moved %s to %s", args[0], args[1])}
	}
	if _, err := sh.fs.CopyNode(src.ID, dst.ID); err != nil {
		return []string{failure(cmd, err)}
	}
	return []string{fmt.Sprintf("Copied %s to %s", args[0], args[1])}
}

// SplitArgs splits a command line on whitespace. Double quotes group words
// and may be empty ("").
func SplitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}
