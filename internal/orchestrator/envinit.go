package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// envInitTimeout is the fixed 300s budget of spec.md §6 for an
// environment-init script invocation.
const envInitTimeout = 300 * time.Second

// allowedScriptExtensions is the recognized extension set; anything
// else is refused outright rather than shelled out to, the same
// defensive posture the teacher's search tool takes before falling
// back to a subprocess.
var allowedScriptExtensions = map[string]bool{
	".py":  true,
	".ps1": true,
	".sh":  true,
	".bat": true,
	".cmd": true,
}

// ErrUnrecognizedScriptExtension is returned when scriptPath's
// extension is not in the allow-list.
type ErrUnrecognizedScriptExtension struct{ Path string }

func (e *ErrUnrecognizedScriptExtension) Error() string {
	return fmt.Sprintf("orchestrator: env-init script %q has an unrecognized extension", e.Path)
}

func interpreterFor(ext string) (string, []string) {
	switch ext {
	case ".py":
		return "python", nil
	case ".ps1":
		return "powershell", []string{"-ExecutionPolicy", "Bypass", "-File"}
	case ".sh":
		return "bash", nil
	case ".bat", ".cmd":
		return "cmd", []string{"/C"}
	default:
		return "", nil
	}
}

// RunEnvInitScript shells out to scriptPath with a 300s timeout. A
// non-zero exit or a timeout is surfaced as a returned warning string,
// never as an error: per spec.md §6 "the engine proceeds" regardless.
func RunEnvInitScript(ctx context.Context, scriptPath string) (warning string, err error) {
	if scriptPath == "" {
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(scriptPath))
	if !allowedScriptExtensions[ext] {
		return "", &ErrUnrecognizedScriptExtension{Path: scriptPath}
	}

	interpreter, prefixArgs := interpreterFor(ext)
	args := append(append([]string{}, prefixArgs...), scriptPath)

	runCtx, cancel := context.WithTimeout(ctx, envInitTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interpreter, args...)
	output, runErr := cmd.CombinedOutput()

	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("env-init script %q timed out after %s", scriptPath, envInitTimeout), nil
	}
	if runErr != nil {
		return fmt.Sprintf("env-init script %q exited non-zero: %v\n%s", scriptPath, runErr, output), nil
	}
	return "", nil
}
