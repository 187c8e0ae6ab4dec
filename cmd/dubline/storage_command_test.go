package main

import "testing"

func TestStorageInitWithMemoryStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env.configPath, "storage", "init")
	requireContains(t, out, "Memory store needs no bucket")

	result := decodeOutput[storageInitResult](t, mustRunCLI(t, env.configPath, "--json", "storage", "init"))
	if result.Provider != "memory" || result.Created {
		t.Fatalf("unexpected result %+v", result)
	}
}
