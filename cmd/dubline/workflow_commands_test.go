package main

import (
	"testing"

	"dubline/internal/api"
)

func TestWorkflowLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	created := decodeOutput[api.WorkflowResponse](t, mustRunCLI(t, env.configPath, "--json", "workflow", "create"))
	id := created.Workflow.ID
	if id == "" {
		t.Fatal("expected workflow id")
	}
	if created.Workflow.Phase != "created" {
		t.Fatalf("phase = %q, want created", created.Workflow.Phase)
	}

	list := decodeOutput[api.WorkflowListResponse](t, mustRunCLI(t, env.configPath, "--json", "workflow", "list"))
	if len(list.Workflows) != 1 || list.Workflows[0].ID != id {
		t.Fatalf("unexpected list: %+v", list.Workflows)
	}

	out := mustRunCLI(t, env.configPath, "workflow", "list")
	requireContains(t, out, id)
	requireContains(t, out, "Phase")

	out = mustRunCLI(t, env.configPath, "workflow", "show", id)
	requireContains(t, out, "Workflow:   "+id)
	requireContains(t, out, "Phase:      created")

	out = mustRunCLI(t, env.configPath, "workflow", "delete", id)
	requireContains(t, out, "Deleted workflow "+id)

	if _, _, err := runCLI(t, env.configPath, "workflow", "show", id); err == nil {
		t.Fatal("expected show of deleted workflow to fail")
	}
	out = mustRunCLI(t, env.configPath, "workflow", "list")
	requireContains(t, out, "No workflows")
}

func TestWorkflowShowRequiresID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "workflow", "show"); err == nil {
		t.Fatal("expected missing id to be rejected")
	}
}

func TestLanguageKeysMergesAndSorts(t *testing.T) {
	got := languageKeys(
		map[string]string{"ta": "x", "hi": "y"},
		map[string]string{"hi": "mem://a"},
		map[string]api.Job{"bn": {}},
	)
	want := []string{"bn", "hi", "ta"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
