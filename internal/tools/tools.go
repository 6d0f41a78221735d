package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dfalgout/specsentry/internal/engine"
	"github.com/dfalgout/specsentry/internal/status"
)

// GetTools returns the engine's tool set in stable order.
func GetTools(eng *engine.Engine) []Tool {
	return []Tool{
		&StatusTool{eng},
		&VerifyTool{eng},
		&ResetTool{eng},
		&AuditTool{eng},
		&RepairTool{eng},
		&CleanTool{eng},
	}
}

// NewEngineRegistry builds a registry preloaded with the engine tools.
func NewEngineRegistry(eng *engine.Engine) (*Registry, error) {
	reg := NewRegistry()
	for _, tool := range GetTools(eng) {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type specRequest struct {
	Spec string `json:"spec"`
}

type StatusTool struct {
	eng *engine.Engine
}

func (t *StatusTool) Name() string        { return "spec_status" }
func (t *StatusTool) Description() string { return "Report check statuses and staleness for a spec" }

func (t *StatusTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"spec": {"type": "string", "description": "Spec path or name"}
		},
		"required": ["spec"]
	}`)
}

func (t *StatusTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req specRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	doc, err := t.eng.Open(req.Spec)
	if err != nil {
		return nil, err
	}
	return t.eng.Status(doc)
}

type VerifyTool struct {
	eng *engine.Engine
}

func (t *VerifyTool) Name() string { return "spec_verify" }
func (t *VerifyTool) Description() string {
	return "Verify a spec's checks in file order, persisting each result immediately"
}

func (t *VerifyTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"spec": {"type": "string", "description": "Spec path or name"},
			"force": {"type": "boolean", "description": "Re-verify checks that already pass"},
			"check": {"type": "string", "description": "Verify only the check with this id"}
		},
		"required": ["spec"]
	}`)
}

func (t *VerifyTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req struct {
		Spec  string `json:"spec"`
		Force bool   `json:"force"`
		Check string `json:"check"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	doc, err := t.eng.Open(req.Spec)
	if err != nil {
		return nil, err
	}
	return t.eng.Verify(ctx, doc, status.RunPolicy{Force: req.Force, Only: req.Check})
}

type ResetTool struct {
	eng *engine.Engine
}

func (t *ResetTool) Name() string        { return "spec_reset" }
func (t *ResetTool) Description() string { return "Reset a spec's checks to unchecked" }

func (t *ResetTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"spec": {"type": "string", "description": "Spec path or name"},
			"check": {"type": "string", "description": "Reset only the check with this id"}
		},
		"required": ["spec"]
	}`)
}

func (t *ResetTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req struct {
		Spec  string `json:"spec"`
		Check string `json:"check"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	doc, err := t.eng.Open(req.Spec)
	if err != nil {
		return nil, err
	}
	return t.eng.Reset(doc, req.Check)
}

type AuditTool struct {
	eng *engine.Engine
}

func (t *AuditTool) Name() string { return "spec_audit" }
func (t *AuditTool) Description() string {
	return "Reconcile declared checks against capabilities mined from tracked files"
}

func (t *AuditTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"spec": {"type": "string", "description": "Spec path or name"}
		},
		"required": ["spec"]
	}`)
}

func (t *AuditTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req specRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	doc, err := t.eng.Open(req.Spec)
	if err != nil {
		return nil, err
	}
	return t.eng.Audit(ctx, doc)
}

type RepairTool struct {
	eng *engine.Engine
}

func (t *RepairTool) Name() string { return "spec_repair" }
func (t *RepairTool) Description() string {
	return "Detect renamed tracked files and rewrite spec references"
}

func (t *RepairTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"spec": {"type": "string", "description": "Spec path or name"},
			"auto": {"type": "boolean", "description": "Apply high-confidence renames unattended"},
			"confirm": {"type": "string", "description": "Apply a pending rename as old=new, regardless of confidence"}
		},
		"required": ["spec"]
	}`)
}

func (t *RepairTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req struct {
		Spec    string `json:"spec"`
		Auto    bool   `json:"auto"`
		Confirm string `json:"confirm"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	doc, err := t.eng.Open(req.Spec)
	if err != nil {
		return nil, err
	}
	if req.Confirm != "" {
		oldPath, newPath, ok := strings.Cut(req.Confirm, "=")
		if !ok || oldPath == "" || newPath == "" {
			return nil, fmt.Errorf("confirm wants old=new, got %q", req.Confirm)
		}
		return t.eng.ConfirmRename(doc, oldPath, newPath)
	}
	return t.eng.Repair(doc, req.Auto)
}

type CleanTool struct {
	eng *engine.Engine
}

func (t *CleanTool) Name() string { return "cache_clean" }
func (t *CleanTool) Description() string {
	return "Collect orphaned cache rows; force deletes all rows"
}

func (t *CleanTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"force": {"type": "boolean", "description": "Delete all cache rows unconditionally"}
		}
	}`)
}

func (t *CleanTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var req struct {
		Force bool `json:"force"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}
	}
	return t.eng.Clean(req.Force)
}
