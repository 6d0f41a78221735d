// Package collab provides subprocess-backed implementations of the
// engine's collaborator interfaces. Each collaborator is an external
// command speaking JSON on stdin/stdout; the engine stays free of
// network and model concerns.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dfalgout/specsentry/internal/spec"
	"github.com/dfalgout/specsentry/internal/status"
)

// ExecReasoner shells out to an assess command. Request and response
// are single JSON objects on stdin/stdout.
type ExecReasoner struct {
	Command []string
}

type assessRequest struct {
	SuccessCondition string `json:"success_condition"`
	FailureCondition string `json:"failure_condition"`
	Outcome          string `json:"outcome"`
}

type assessResponse struct {
	Verdict     string `json:"verdict"`
	Explanation string `json:"explanation,omitempty"`
}

func (r *ExecReasoner) Assess(ctx context.Context, successCond, failureCond, outcome string) (status.Assessment, error) {
	if len(r.Command) == 0 {
		return status.Assessment{}, fmt.Errorf("no reasoner command configured")
	}

	payload, err := json.Marshal(assessRequest{
		SuccessCondition: successCond,
		FailureCondition: failureCond,
		Outcome:          outcome,
	})
	if err != nil {
		return status.Assessment{}, err
	}

	out, err := runCommand(ctx, r.Command, payload)
	if err != nil {
		return status.Assessment{}, err
	}

	var resp assessResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return status.Assessment{}, fmt.Errorf("malformed assess response: %w", err)
	}

	switch strings.ToUpper(resp.Verdict) {
	case "PASS":
		return status.Assessment{Verdict: status.VerdictPass}, nil
	case "FAIL":
		return status.Assessment{Verdict: status.VerdictFail, Explanation: resp.Explanation}, nil
	default:
		return status.Assessment{}, fmt.Errorf("unknown verdict %q", resp.Verdict)
	}
}

// ExecExtractor shells out to a bullet-mining command. Input is
// {"files": {path: content}}, output a JSON array of phrases.
type ExecExtractor struct {
	Command []string
}

func (e *ExecExtractor) ExtractBullets(ctx context.Context, files map[string]string) ([]string, error) {
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("no extractor command configured")
	}

	payload, err := json.Marshal(map[string]any{"files": files})
	if err != nil {
		return nil, err
	}

	out, err := runCommand(ctx, e.Command, payload)
	if err != nil {
		return nil, err
	}

	var bullets []string
	if err := json.Unmarshal(out, &bullets); err != nil {
		return nil, fmt.Errorf("malformed extractor response: %w", err)
	}
	return bullets, nil
}

// ShellOutcomes produces outcome narratives by running each check's
// embedded test snippet through the shell. A check without a snippet
// yields a narrative saying so; the reasoner decides what that means.
type ShellOutcomes struct {
	Shell string // defaults to "sh"
	Dir   string
}

func (s *ShellOutcomes) Outcome(ctx context.Context, check *spec.Check) (string, error) {
	if strings.TrimSpace(check.Test) == "" {
		return fmt.Sprintf("no embedded test for requirement %q; no execution evidence available", check.Require), nil
	}

	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", check.Test)
	cmd.Dir = s.Dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	narrative := fmt.Sprintf("command output:\n%s", buf.String())
	if runErr != nil {
		narrative += fmt.Sprintf("\nexit: %v", runErr)
	} else {
		narrative += "\nexit: 0"
	}
	return narrative, nil
}

func runCommand(ctx context.Context, argv []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}
