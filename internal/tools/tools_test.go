package tools

import (
	"context"
	"encoding/json"
	"testing"
)

type echoTool struct {
	name string
}

func (t *echoTool) Name() string            { return t.name }
func (t *echoTool) Description() string     { return "echo" }
func (t *echoTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *echoTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	return string(input), nil
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"charlie", "alpha", "bravo"}
	for _, n := range names {
		if err := reg.Register(&echoTool{name: n}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}

	listed := reg.List()
	if len(listed) != len(names) {
		t.Fatalf("expected %d tools, got %d", len(names), len(listed))
	}
	for i, tool := range listed {
		if tool.Name() != names[i] {
			t.Errorf("position %d: expected %s, got %s", i, names[i], tool.Name())
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&echoTool{name: "spec_status"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(&echoTool{name: "spec_status"}); err == nil {
		t.Error("duplicate registration must fail")
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Execute(context.Background(), "nope", nil); err == nil {
		t.Error("unknown tool must error")
	}
}

func TestEngineToolSet(t *testing.T) {
	expected := []string{
		"spec_status", "spec_verify", "spec_reset",
		"spec_audit", "spec_repair", "cache_clean",
	}

	all := GetTools(nil)
	if len(all) != len(expected) {
		t.Fatalf("expected %d tools, got %d", len(expected), len(all))
	}
	for i, tool := range all {
		if tool.Name() != expected[i] {
			t.Errorf("position %d: expected %s, got %s", i, expected[i], tool.Name())
		}
		if tool.Description() == "" {
			t.Errorf("%s has no description", tool.Name())
		}
		if !json.Valid(tool.Schema()) {
			t.Errorf("%s schema is not valid JSON", tool.Name())
		}
	}
}
