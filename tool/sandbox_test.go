package tool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finpilot/core"
)

func runScript(t *testing.T, code string, vars map[string]any) core.ToolExecutionResult {
	t.Helper()
	s := NewSandbox()
	return s.Execute(context.Background(), core.ToolExecutionRequest{
		Name:      s.Name(),
		Code:      code,
		Variables: vars,
	})
}

func TestSandboxResultEcho(t *testing.T) {
	res := runScript(t, `result = 42`, nil)
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = 42", strings.TrimSpace(res.Output))
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
}

func TestSandboxROICalculation(t *testing.T) {
	res := runScript(t, `result = (revenue - budget) / budget`, map[string]any{
		"budget":  float64(100000),
		"revenue": float64(150000),
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = 0.5", strings.TrimSpace(res.Output))
}

func TestSandboxPrintedOutputPrecedesResult(t *testing.T) {
	res := runScript(t, "fmt.Println(\"margin check\")\nresult = margin * 100.0", map[string]any{
		"margin": 0.25,
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "margin check\nresult = 25", res.Output)
}

func TestSandboxNoOutputPlaceholder(t *testing.T) {
	res := runScript(t, `x := 1.0
_ = x`, nil)
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "<no output>", res.Output)
}

func TestSandboxHelperFunctions(t *testing.T) {
	res := runScript(t, `result = mean(quarters)`, map[string]any{
		"quarters": []any{float64(100), float64(200), float64(300), float64(400)},
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = 250", strings.TrimSpace(res.Output))
}

func TestSandboxRejectsForbiddenImport(t *testing.T) {
	res := runScript(t, "import \"os\"\nresult = os.Getpid()", nil)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, `import "os" is not allowed`)
}

func TestSandboxAllowsSafeImport(t *testing.T) {
	res := runScript(t, "import \"math\"\nresult = math.Sqrt(share)", map[string]any{
		"share": float64(9),
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = 3", strings.TrimSpace(res.Output))
}

func TestSandboxRuntimeFailureKeepsPartialOutput(t *testing.T) {
	res := runScript(t, "fmt.Println(\"before\")\nxs := []float64{1.0}\nresult = xs[5]", nil)
	require.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, res.Output, "before")
}

func TestSandboxEmptyScript(t *testing.T) {
	res := runScript(t, "   \n ", nil)
	require.False(t, res.Success)
	assert.Equal(t, "empty script", res.Error)
}

func TestSandboxTimeout(t *testing.T) {
	s := NewSandbox(func(o *SandboxOptions) { o.Timeout = 100 * time.Millisecond })
	res := s.Execute(context.Background(), core.ToolExecutionRequest{
		Name: s.Name(),
		Code: `for {
}`,
	})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestSandboxSkipsUnbindableVariables(t *testing.T) {
	res := runScript(t, `result = safe + 1.0`, map[string]any{
		"safe":     float64(1),
		"not-anid": float64(2),
		"for":      float64(3),
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = 2", strings.TrimSpace(res.Output))
}

func TestSandboxStringAndBoolVariables(t *testing.T) {
	res := runScript(t, `if approved {
	result = label
}`, map[string]any{
		"approved": true,
		"label":    "Q3 budget",
	})
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "result = Q3 budget", strings.TrimSpace(res.Output))
}

func TestSandboxName(t *testing.T) {
	s := NewSandbox()
	assert.Equal(t, core.DefaultCalculatorTool, s.Name())
	assert.NotEmpty(t, s.Description())
}
