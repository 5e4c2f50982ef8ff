package e2e

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Environment is one isolated data directory driven through the binary
type Environment struct {
	Backend string
	DataDir string
}

func NewEnvironment(t *testing.T, backend string) *Environment {
	t.Helper()
	return &Environment{Backend: backend, DataDir: t.TempDir()}
}

// Args prefixes a subcommand with the environment's store flags
func (e *Environment) Args(args ...string) []string {
	return append([]string{"--backend", e.Backend, "--data", e.DataDir, "-v", "1"}, args...)
}

// Run executes a subcommand and returns its combined output
func (e *Environment) Run(args ...string) (string, error) {
	out, err := exec.Command(deskfsBin, e.Args(args...)...).CombinedOutput()
	return string(out), err
}

// Shell feeds lines to an interactive shell session and returns everything
// it printed
func (e *Environment) Shell(t *testing.T, lines ...string) string {
	t.Helper()
	cmd := exec.Command(deskfsBin, e.Args("shell")...)
	cmd.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}
