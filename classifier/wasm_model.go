package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// wasmRequest/wasmResponse are the JSON contract a compiled classifier
// module must speak over stdin/stdout: one batch of texts in, one batch of
// per-label probabilities and a severity score out.
type wasmRequest struct {
	Texts []string `json:"texts"`
}

type wasmPrediction struct {
	LabelProbs    map[string]float64 `json:"label_probs"`
	SeverityScore float64            `json:"severity_score"`
}

type wasmResponse struct {
	Predictions []wasmPrediction `json:"predictions"`
}

// WasmModel runs Layer C's multi-head classifier as a WebAssembly module
// inside a deny-by-default wazero sandbox: no filesystem, no network, no
// ambient authority, input/output only over stdin/stdout. This is the
// "opaque Classifier capability" spec.md §9 calls for — the module itself
// (a compiled multi-task transformer, quantized and exported to WASM) is
// swappable without touching the pipeline.
type WasmModel struct {
	runtime      wazero.Runtime
	compiled     wazero.CompiledModule
	moduleConfig wazero.ModuleConfig
	timeout      time.Duration
}

// NewWasmModel compiles the module at wasmPath once at startup. CPU time
// per PredictBatch call is bounded by timeout via the call's context.
func NewWasmModel(ctx context.Context, wasmPath string, timeout time.Duration) (*WasmModel, error) {
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("classifier: read wasm module %s: %w", wasmPath, err)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("classifier: instantiate wasi: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("classifier: compile wasm module: %w", err)
	}

	// Deny-by-default: no WithFSConfig, no WithEnv, no WithSysNanotime,
	// no WithRandSource. Only stdin/stdout/stderr are wired per call.
	modCfg := wazero.NewModuleConfig().WithName("vietcmc-classifier")

	return &WasmModel{
		runtime:      runtime,
		compiled:     compiled,
		moduleConfig: modCfg,
		timeout:      timeout,
	}, nil
}

var _ Model = (*WasmModel)(nil)

func (m *WasmModel) PredictBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	reqBytes, err := json.Marshal(wasmRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal wasm request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cfg := m.moduleConfig.
		WithStdin(bytes.NewReader(reqBytes)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("classifier: wasm inference timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("classifier: instantiate wasm module: %w (stderr: %s)", err, stderr.String())
	}
	defer mod.Close(ctx)

	var resp wasmResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("classifier: decode wasm response: %w", err)
	}
	if len(resp.Predictions) != len(texts) {
		return nil, fmt.Errorf("classifier: wasm module returned %d predictions for %d inputs", len(resp.Predictions), len(texts))
	}

	preds := make([]Prediction, len(resp.Predictions))
	for i, p := range resp.Predictions {
		probs := make(map[Label]float64, len(p.LabelProbs))
		for k, v := range p.LabelProbs {
			probs[Label(k)] = v
		}
		preds[i] = Prediction{LabelProbs: probs, SeverityScore: p.SeverityScore, SpanStart: -1, SpanEnd: -1}
	}
	return preds, nil
}

func (m *WasmModel) Close(ctx context.Context) error {
	if err := m.compiled.Close(ctx); err != nil {
		return err
	}
	return m.runtime.Close(ctx)
}
