package descent

import (
	"context"
	"encoding/json"
	"fmt"
)

// ============================================================
// Tool Interface
// ============================================================

// ToolRequest is a named tool call with loosely typed JSON parameters.
type ToolRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// ToolResponse carries either a result or an error message.
type ToolResponse struct {
	Result any    `json:"result,omitempty"`
	LaTeX  string `json:"latex,omitempty"`
	String string `json:"string,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Toolbox dispatches tool calls. Catalog, when set, supplies the presets
// visible to the tools; the built-ins are used otherwise.
type Toolbox struct {
	Catalog   func() []Preset
	Reference ReferenceOptions
}

// HandleToolCall dispatches req against the built-in presets.
func HandleToolCall(ctx context.Context, req ToolRequest) ToolResponse {
	return Toolbox{}.Handle(ctx, req)
}

func (t Toolbox) presets() []Preset {
	if t.Catalog != nil {
		return t.Catalog()
	}
	return Presets()
}

type compileParams struct {
	Expr  string `json:"expr"`
	Point *Point `json:"point"`
}

type referenceParams struct {
	Expr   string  `json:"expr"`
	Preset string  `json:"preset"`
	Region *Region `json:"region"`
	Start  *Point  `json:"start"`
	Seeds  []Point `json:"seeds"`
}

// Handle runs one tool call. Errors never escape as Go errors; they are
// reported in ToolResponse.Error.
func (t Toolbox) Handle(ctx context.Context, req ToolRequest) ToolResponse {
	fail := func(err error) ToolResponse { return ToolResponse{Error: err.Error()} }

	switch req.Tool {
	case "compile":
		var p compileParams
		if err := decodeParams(req.Params, &p); err != nil {
			return fail(err)
		}
		fn, err := Compile(p.Expr)
		if err != nil {
			return fail(err)
		}
		result := map[string]any{
			"symbolic": fn.Symbolic(),
			"tree":     fn.Expr().toJSON(),
		}
		if p.Point != nil {
			ev := Evaluate(fn, *p.Point)
			result["evaluation"] = map[string]any{
				"point":     jsonPoint(ev.Point),
				"value":     jsonFloat(ev.Value),
				"grad_dx":   jsonFloat(ev.Gradient.DX),
				"grad_dy":   jsonFloat(ev.Gradient.DY),
				"grad_norm": jsonFloat(ev.GradientNorm()),
			}
		}
		return ToolResponse{Result: result, LaTeX: fn.Expr().LaTeX(), String: fn.Expr().String()}

	case "simulate":
		var r Request
		if err := decodeParams(req.Params, &r); err != nil {
			return fail(err)
		}
		r.Catalog = t.presets()
		r.Reference = t.Reference
		res, err := Simulate(ctx, r)
		if err != nil {
			return fail(err)
		}
		return ToolResponse{Result: res, LaTeX: res.Symbolic.LaTeX, String: res.Message}

	case "reference":
		var p referenceParams
		if err := decodeParams(req.Params, &p); err != nil {
			return fail(err)
		}
		ref, err := Locate(Request{
			Preset: p.Preset, Expr: p.Expr, Region: p.Region, Start: p.Start, Seeds: p.Seeds,
			Catalog: t.presets(), Reference: t.Reference,
		})
		if err != nil {
			return fail(err)
		}
		if ref == nil {
			return ToolResponse{Result: nil, String: ref.Describe()}
		}
		return ToolResponse{Result: ref, String: ref.Describe()}

	case "presets":
		list := t.presets()
		return ToolResponse{Result: list, String: fmt.Sprintf("%d presets", len(list))}

	case "tool_spec":
		return ToolResponse{Result: ToolSpec()}
	}
	return ToolResponse{Error: fmt.Sprintf("unknown tool: %q", req.Tool)}
}

// decodeParams re-encodes the loose parameter map into a typed struct.
func decodeParams(params map[string]any, into any) error {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("%w: params: %v", ErrInvalidParams, err)
	}
	return nil
}

// ToolSpec returns the schema of every tool Handle understands.
func ToolSpec() []map[string]any {
	point := "object"
	return []map[string]any{
		ts("compile", "Parse f(x, y), return its partial derivatives and optionally evaluate at a point",
			[]string{"expr"}, map[string]string{"expr": "string", "point": point}),
		ts("simulate", "Run gradient descent to completion and compare with a reference minimum",
			[]string{}, map[string]string{
				"preset": "string", "expr": "string", "region": "object", "start": point,
				"learning_rate": "number", "steps": "integer", "seeds": "array",
				"skip_reference": "boolean", "trace": "boolean",
			}),
		ts("reference", "Derivative-free search for the lowest minimum inside a region",
			[]string{}, map[string]string{"preset": "string", "expr": "string", "region": "object", "start": point, "seeds": "array"}),
		ts("presets", "List the teaching presets", []string{}, map[string]string{}),
		ts("tool_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
}

func ts(name, description string, required []string, props map[string]string) map[string]any {
	properties := map[string]any{}
	for k, typ := range props {
		properties[k] = map[string]any{"type": typ}
	}
	return map[string]any{
		"name":        name,
		"description": description,
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
