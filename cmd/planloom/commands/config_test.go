package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/planloom/planloom/pkg/kv"
	"github.com/planloom/planloom/pkg/session"
)

// setupTestEnv points the user config directory at a temp dir so
// command runs never touch the real configuration.
func setupTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
}

// seedStore routes openHost at an in-memory store and returns a host
// over the same store for seeding test data.
func seedStore(t *testing.T) *session.Host {
	t.Helper()
	mem := kv.NewMemory()
	testStoreOverride = mem
	t.Cleanup(func() {
		testStoreOverride = nil
		mem.Close()
	})
	return session.NewHost(mem)
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestConfigAddAndListContexts(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := runCmd(t, "config", "add-context", "dev",
		"--model", "openai:gpt-4o-mini",
		"--openai-api-key", "${OPENAI_API_KEY}")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "added") {
		t.Fatalf("expected 'added' in output, got: %s", stdout)
	}

	stdout, _, code = runCmd(t, "config", "list-contexts")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "dev") || !strings.Contains(stdout, "openai:gpt-4o-mini") {
		t.Fatalf("expected context row, got: %s", stdout)
	}
	if !strings.Contains(stdout, "*") {
		t.Fatalf("first context should be current, got: %s", stdout)
	}
}

func TestConfigUseAndGetContext(t *testing.T) {
	setupTestEnv(t)

	runCmd(t, "config", "add-context", "dev", "--model", "openai:gpt-4o-mini")
	runCmd(t, "config", "add-context", "prod", "--model", "gemini:gemini-2.0-flash")

	_, _, code := runCmd(t, "config", "use-context", "prod")
	if code != 0 {
		t.Fatalf("use-context failed, exit %d", code)
	}

	stdout, _, code := runCmd(t, "config", "get-context")
	if code != 0 {
		t.Fatalf("get-context failed, exit %d", code)
	}
	if !strings.Contains(stdout, "prod") {
		t.Fatalf("expected 'prod', got: %s", stdout)
	}
}

func TestConfigGetContextUnset(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := runCmd(t, "config", "get-context")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "No current context") {
		t.Fatalf("expected 'No current context', got: %s", stdout)
	}
}

func TestConfigDeleteContext(t *testing.T) {
	setupTestEnv(t)

	runCmd(t, "config", "add-context", "dev", "--model", "openai:gpt-4o-mini")
	_, _, code := runCmd(t, "config", "delete-context", "dev")
	if code != 0 {
		t.Fatalf("delete-context failed, exit %d", code)
	}

	stdout, _, _ := runCmd(t, "config", "list-contexts")
	if !strings.Contains(stdout, "No contexts configured") {
		t.Fatalf("expected empty listing, got: %s", stdout)
	}
}

func TestConfigDeleteUnknownContext(t *testing.T) {
	setupTestEnv(t)

	_, stderr, code := runCmd(t, "config", "delete-context", "nope")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown context")
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("expected 'not found', got: %s", stderr)
	}
}

func TestConfigViewMasksKeys(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-verysecretvalue123")

	runCmd(t, "config", "add-context", "dev",
		"--model", "openai:gpt-4o-mini",
		"--openai-api-key", "${OPENAI_API_KEY}")

	stdout, _, code := runCmd(t, "config", "view")
	if code != 0 {
		t.Fatalf("view failed, exit %d", code)
	}
	if strings.Contains(stdout, "sk-verysecretvalue123") {
		t.Fatalf("view leaked the full key: %s", stdout)
	}
	if !strings.Contains(stdout, "sk-v") {
		t.Fatalf("expected masked key prefix, got: %s", stdout)
	}
}
