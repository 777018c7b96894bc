package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"finpilot/core"
	"finpilot/logging"
)

// DefaultSandboxTimeout bounds one script execution.
const DefaultSandboxTimeout = 10 * time.Second

// allowedImports is the closed set of packages a plan script may import.
// Everything touching the filesystem, network, or process state stays out.
var allowedImports = map[string]string{
	"fmt":     "fmt/fmt",
	"math":    "math/math",
	"sort":    "sort/sort",
	"strings": "strings/strings",
	"strconv": "strconv/strconv",
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// goKeywords are names a seeded variable must never shadow.
var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	"result": true,
}

// sandboxPrelude is evaluated before user code. It pre-imports the whole
// allow-list so scripts can call fmt or math without their own import
// clause, declares the result slot every script assigns into, and defines
// small numeric helpers plans commonly lean on.
const sandboxPrelude = `
import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var result interface{}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
`

// Sandbox interprets calculation scripts in an embedded interpreter with a
// closed import set. Plan variables are seeded as named bindings before the
// script runs; the value left in "result" is echoed into the output so a
// script needs no explicit print to report its answer.
type Sandbox struct {
	timeout time.Duration
	logger  logging.Logger
}

// SandboxOptions configure a Sandbox.
type SandboxOptions struct {
	// Timeout bounds one execution. Zero means DefaultSandboxTimeout.
	Timeout time.Duration
	Logger  logging.Logger
}

// NewSandbox constructs the script executor.
func NewSandbox(optFns ...func(o *SandboxOptions)) *Sandbox {
	opts := SandboxOptions{Timeout: DefaultSandboxTimeout, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSandboxTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Sandbox{timeout: opts.Timeout, logger: opts.Logger}
}

// Name implements Tool.
func (s *Sandbox) Name() string { return core.DefaultCalculatorTool }

// Description implements Tool.
func (s *Sandbox) Description() string {
	return "Executes short calculation scripts in a restricted interpreter with plan variables pre-bound."
}

// Execute implements Tool. It never returns a Go error: every failure comes
// back as a failed result carrying whatever output the script produced before
// stopping.
func (s *Sandbox) Execute(ctx context.Context, req core.ToolExecutionRequest) (result core.ToolExecutionResult) {
	start := time.Now()
	result = core.ToolExecutionResult{Name: s.Name()}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("script panicked: %v", r)
		}
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	if strings.TrimSpace(req.Code) == "" {
		result.Error = "empty script"
		return result
	}
	if err := validateImports(req.Code); err != nil {
		result.Error = err.Error()
		return result
	}

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(restrictedSymbols()); err != nil {
		result.Error = fmt.Sprintf("interpreter setup failed: %v", err)
		return result
	}
	if _, err := i.Eval(sandboxPrelude); err != nil {
		result.Error = fmt.Sprintf("interpreter setup failed: %v", err)
		return result
	}

	for _, binding := range renderBindings(req.Variables, s.logger) {
		if _, err := i.Eval(binding); err != nil {
			result.Error = fmt.Sprintf("variable binding failed: %v", err)
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := i.EvalWithContext(execCtx, req.Code); err != nil {
		if execCtx.Err() != nil {
			result.Error = fmt.Sprintf("execution timed out after %s", s.timeout)
		} else {
			result.Error = err.Error()
		}
		result.Output = stdout.String()
		return result
	}

	output := stdout.String()
	if v, err := i.Eval("result"); err == nil && v.IsValid() && !isNilResult(v.Interface()) {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += fmt.Sprintf("result = %v", formatResult(v.Interface()))
	}
	if strings.TrimSpace(output) == "" {
		output = "<no output>"
	}

	result.Success = true
	result.Output = output
	return result
}

// validateImports scans the script text and rejects any import outside the
// allow-list before the interpreter ever sees the code.
func validateImports(code string) error {
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" {
				if _, ok := allowedImports[pkg]; !ok {
					return fmt.Errorf("import %q is not allowed", pkg)
				}
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := importPath(strings.TrimPrefix(trimmed, "import "))
			if pkg != "" {
				if _, ok := allowedImports[pkg]; !ok {
					return fmt.Errorf("import %q is not allowed", pkg)
				}
			}
		}
	}
	return nil
}

func importPath(s string) string {
	s = strings.TrimSpace(s)
	// drop an import alias if present
	if idx := strings.Index(s, `"`); idx > 0 {
		s = s[idx:]
	}
	return strings.Trim(s, `"`)
}

// restrictedSymbols returns the stdlib symbol table filtered down to the
// allow-listed packages.
func restrictedSymbols() interp.Exports {
	filtered := interp.Exports{}
	for _, key := range allowedImports {
		if symbols, ok := stdlib.Symbols[key]; ok {
			filtered[key] = symbols
		}
	}
	return filtered
}

// renderBindings turns the plan variables into deterministic declaration
// statements. Numbers always bind as float64 so division in scripts is never
// silently truncated.
func renderBindings(vars map[string]any, logger logging.Logger) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make([]string, 0, len(names))
	for _, name := range names {
		if !identPattern.MatchString(name) || goKeywords[name] {
			logger.Warn("skipping unbindable variable", "name", name)
			continue
		}
		literal, ok := renderLiteral(vars[name])
		if !ok {
			logger.Warn("skipping variable with unsupported value", "name", name)
			continue
		}
		bindings = append(bindings, fmt.Sprintf("%s := %s", name, literal))
	}
	return bindings
}

func renderLiteral(value any) (string, bool) {
	switch v := value.(type) {
	case float64:
		return floatLiteral(v), true
	case float32:
		return floatLiteral(float64(v)), true
	case int:
		return floatLiteral(float64(v)), true
	case int64:
		return floatLiteral(float64(v)), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return "", false
		}
		return floatLiteral(f), true
	case string:
		return strconv.Quote(v), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		return sliceLiteral(v)
	case []float64:
		elems := make([]string, len(v))
		for i, f := range v {
			elems[i] = floatLiteral(f)
		}
		return "[]float64{" + strings.Join(elems, ", ") + "}", true
	default:
		// anything structured binds as its JSON text
		raw, err := json.Marshal(value)
		if err != nil {
			return "", false
		}
		return strconv.Quote(string(raw)), true
	}
}

func sliceLiteral(items []any) (string, bool) {
	elems := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			elems = append(elems, floatLiteral(v))
		case int:
			elems = append(elems, floatLiteral(float64(v)))
		default:
			raw, err := json.Marshal(items)
			if err != nil {
				return "", false
			}
			return strconv.Quote(string(raw)), true
		}
	}
	return "[]float64{" + strings.Join(elems, ", ") + "}", true
}

// floatLiteral renders a number so the interpreter infers float64, keeping
// integral values like 100000 as 100000.0.
func floatLiteral(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatResult(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func isNilResult(v any) bool { return v == nil }
