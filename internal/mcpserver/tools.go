package mcpserver

import (
	"context"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/njchilds90/descent"
)

// CompileInput is the input schema for the compile_function tool.
type CompileInput struct {
	Expr string   `json:"expr" jsonschema:"the function f(x, y), e.g. x**2 + 3*y**2"`
	X    *float64 `json:"x,omitempty" jsonschema:"x coordinate to evaluate at; requires y"`
	Y    *float64 `json:"y,omitempty" jsonschema:"y coordinate to evaluate at; requires x"`
}

// CompileOutput is the output schema for the compile_function tool.
type CompileOutput struct {
	Symbolic  descent.Symbolic `json:"symbolic"`
	Evaluated bool             `json:"evaluated"`
	// Undefined quantities are null.
	Value        *float64 `json:"value,omitempty"`
	GradientDX   *float64 `json:"grad_dx,omitempty"`
	GradientDY   *float64 `json:"grad_dy,omitempty"`
	GradientNorm *float64 `json:"grad_norm,omitempty"`
}

// SimulateInput is the input schema for the simulate_descent tool.
type SimulateInput struct {
	Preset        string          `json:"preset,omitempty" jsonschema:"preset name; fills any field left unset"`
	Expr          string          `json:"expr,omitempty" jsonschema:"the function f(x, y)"`
	Region        *descent.Region `json:"region,omitempty" jsonschema:"box the reference search is confined to"`
	Start         *descent.Point  `json:"start,omitempty" jsonschema:"starting point"`
	LearningRate  float64         `json:"learning_rate,omitempty" jsonschema:"step size alpha"`
	Steps         int             `json:"steps,omitempty" jsonschema:"step budget"`
	SkipReference bool            `json:"skip_reference,omitempty" jsonschema:"skip the reference minimum search"`
	Trace         bool            `json:"trace,omitempty" jsonschema:"include every step and its update rule"`
}

// SimulateOutput is the output schema for the simulate_descent tool.
type SimulateOutput struct {
	Message string          `json:"message"`
	Result  *descent.Result `json:"result"`
}

// ReferenceInput is the input schema for the find_reference tool.
type ReferenceInput struct {
	Preset string          `json:"preset,omitempty" jsonschema:"preset name"`
	Expr   string          `json:"expr,omitempty" jsonschema:"the function f(x, y)"`
	Region *descent.Region `json:"region,omitempty" jsonschema:"search box"`
	Start  *descent.Point  `json:"start,omitempty" jsonschema:"first seed"`
	Seeds  []descent.Point `json:"seeds,omitempty" jsonschema:"extra seeds tried after the start and the origin"`
}

// ReferenceOutput is the output schema for the find_reference tool.
type ReferenceOutput struct {
	Found     bool                        `json:"found"`
	Message   string                      `json:"message"`
	Reference *descent.OptimizationResult `json:"reference,omitempty"`
}

// PresetsInput is the empty input of the list_presets tool.
type PresetsInput struct{}

// PresetsOutput is the output schema for the list_presets tool.
type PresetsOutput struct {
	Presets []descent.Preset `json:"presets"`
	Count   int              `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compile_function",
		Description: "Parse f(x, y), differentiate it symbolically and optionally evaluate it at a point",
	}, s.handleCompile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "simulate_descent",
		Description: "Run gradient descent to completion and compare the end point with a reference minimum",
	}, s.handleSimulate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_reference",
		Description: "Derivative-free search for the lowest minimum of f inside a region",
	}, s.handleReference)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_presets",
		Description: "List the teaching presets",
	}, s.handlePresets)
}

func (s *Server) handleCompile(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CompileInput,
) (*mcp.CallToolResult, CompileOutput, error) {
	fn, err := descent.Compile(input.Expr)
	if err != nil {
		return nil, CompileOutput{}, err
	}
	out := CompileOutput{Symbolic: fn.Symbolic()}
	if input.X != nil && input.Y != nil {
		ev := descent.Evaluate(fn, descent.Pt(*input.X, *input.Y))
		out.Evaluated = true
		out.Value = finite(ev.Value)
		out.GradientDX = finite(ev.Gradient.DX)
		out.GradientDY = finite(ev.Gradient.DY)
		out.GradientNorm = finite(ev.GradientNorm())
	}
	return nil, out, nil
}

func (s *Server) handleSimulate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SimulateInput,
) (*mcp.CallToolResult, SimulateOutput, error) {
	res, err := descent.Simulate(ctx, descent.Request{
		Preset:        input.Preset,
		Expr:          input.Expr,
		Region:        input.Region,
		Start:         input.Start,
		LearningRate:  input.LearningRate,
		Steps:         input.Steps,
		SkipReference: input.SkipReference,
		Trace:         input.Trace,
		Catalog:       s.opts.Presets(),
		Reference:     s.opts.Reference,
	})
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	s.opts.Logger.Debug("mcp simulate", "expr", res.Expr, "verdict", res.Verdict, "steps", res.StepCount)
	return nil, SimulateOutput{Message: res.Message, Result: res}, nil
}

func (s *Server) handleReference(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ReferenceInput,
) (*mcp.CallToolResult, ReferenceOutput, error) {
	ref, err := descent.Locate(descent.Request{
		Preset:    input.Preset,
		Expr:      input.Expr,
		Region:    input.Region,
		Start:     input.Start,
		Seeds:     input.Seeds,
		Catalog:   s.opts.Presets(),
		Reference: s.opts.Reference,
	})
	if err != nil {
		return nil, ReferenceOutput{}, err
	}
	return nil, ReferenceOutput{Found: ref != nil, Message: ref.Describe(), Reference: ref}, nil
}

func (s *Server) handlePresets(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ PresetsInput,
) (*mcp.CallToolResult, PresetsOutput, error) {
	list := s.opts.Presets()
	return nil, PresetsOutput{Presets: list, Count: len(list)}, nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
