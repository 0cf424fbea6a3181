//go:build js && wasm

// Command wasm exposes the drive engine to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runScenario(jsonString) -> jsonString
//
// The input and output are JSON-encoded ScenarioInput and PoseLog
// respectively, matching the same contract used by the CLI.
package main

import (
	"syscall/js"

	"github.com/cxd309/drive-engine/internal/engine"
)

func main() {
	js.Global().Set("runScenario", js.FuncOf(runScenario))
	select {} // keep the WASM module alive until the page is closed
}

func runScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := engine.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
