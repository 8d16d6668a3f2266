package patch

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
)

// applyUnifiedDiff writes patchText to a temp file and invokes `git apply
// --3way` against it inside workDir. If stderr indicates the directory is
// not a git repository, it retries once without --3way.
func applyUnifiedDiff(patchText, workDir string) Result {
	f, err := os.CreateTemp("", "toolcore-patch-*.diff")
	if err != nil {
		return Result{Output: "create temp patch file: " + err.Error(), Success: false}
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(patchText); err != nil {
		f.Close()
		return Result{Output: "write temp patch file: " + err.Error(), Success: false}
	}
	f.Close()

	out, errOut, err := runGitApply(workDir, f.Name(), true)
	if err != nil && strings.Contains(errOut, "not a git repository") {
		out, errOut, err = runGitApply(workDir, f.Name(), false)
	}

	combined := strings.TrimSpace(out + errOut)
	return Result{Output: combined, Success: err == nil}
}

func runGitApply(workDir, patchFile string, threeWay bool) (stdout, stderr string, err error) {
	args := []string{"apply"}
	if threeWay {
		args = append(args, "--3way")
	}
	args = append(args, patchFile)

	cmd := exec.Command("git", args...)
	cmd.Dir = workDir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}
