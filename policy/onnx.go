package policy

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// sharedLibrary locates the onnxruntime shared library per platform.
func sharedLibrary() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

var ortReady bool

func initORT() error {
	if ortReady {
		return nil
	}
	ort.SetSharedLibraryPath(sharedLibrary())
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	ortReady = true
	return nil
}

// ONNX runs an exported policy network. The network takes a float32
// observation of length obsLen and emits symbols*actions logits; Decide
// argmaxes each symbol's slice.
type ONNX struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	obsLen  int
	symbols int
	actions int
}

func NewONNX(modelPath string, obsLen, symbols, actions int) (*ONNX, error) {
	if err := initORT(); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(obsLen)), make([]float32, obsLen))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(symbols*actions)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"observation"}, []string{"action_logits"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("load policy %s: %w", modelPath, err)
	}

	return &ONNX{
		session: session,
		input:   input,
		output:  output,
		obsLen:  obsLen,
		symbols: symbols,
		actions: actions,
	}, nil
}

func (m *ONNX) Decide(obs []float32) ([]int, error) {
	if len(obs) != m.obsLen {
		return nil, fmt.Errorf("observation length %d, policy expects %d", len(obs), m.obsLen)
	}
	copy(m.input.GetData(), obs)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("policy inference: %w", err)
	}

	logits := m.output.GetData()
	actions := make([]int, m.symbols)
	for s := 0; s < m.symbols; s++ {
		actions[s] = argmax(logits[s*m.actions : (s+1)*m.actions])
	}
	return actions, nil
}

func argmax(xs []float32) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func (m *ONNX) Close() error {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
	return nil
}
