package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Catalog is the set of gateway tools offered to the engine.
type Catalog struct {
	tools  []*Tool
	params map[string]map[string]Parameter
}

// NewCatalog builds eino tools from a manifest. When only is non-empty the
// catalog is limited to those tool names.
func NewCatalog(m *Manifest, gw Gateway, only ...string) (*Catalog, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is nil")
	}
	keep := map[string]bool{}
	for _, n := range only {
		keep[n] = true
	}

	names := make([]string, 0, len(m.Tools))
	for name := range m.Tools {
		if len(keep) == 0 || keep[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no tools selected from manifest")
	}

	c := &Catalog{params: map[string]map[string]Parameter{}}
	for _, name := range names {
		tm := m.Tools[name]
		params := map[string]*schema.ParameterInfo{}
		byName := map[string]Parameter{}
		userScoped := false
		for _, p := range tm.Parameters {
			byName[p.Name] = p
			if p.Name == userIDParam {
				userScoped = true
			}
			params[p.Name] = parameterInfo(p)
		}
		c.params[name] = byName
		c.tools = append(c.tools, &Tool{
			info: &schema.ToolInfo{
				Name:        name,
				Desc:        tm.Description,
				ParamsOneOf: schema.NewParamsOneOfByParams(params),
			},
			gw:         gw,
			userScoped: userScoped,
		})
	}
	return c, nil
}

func parameterInfo(p Parameter) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     dataType(p.Type),
		Desc:     p.Description,
		Required: p.IsRequired(),
	}
	if info.Type == schema.Array {
		elem := schema.String
		if p.Items != nil {
			elem = dataType(p.Items.Type)
		}
		info.ElemInfo = &schema.ParameterInfo{Type: elem}
	}
	return info
}

func dataType(t string) schema.DataType {
	switch strings.ToLower(t) {
	case "integer", "int":
		return schema.Integer
	case "float", "number":
		return schema.Number
	case "boolean", "bool":
		return schema.Boolean
	case "array":
		return schema.Array
	default:
		return schema.String
	}
}

// Tools returns the tools for the engine's tools node.
func (c *Catalog) Tools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	return out
}

// Infos returns the tool schemas to bind to the chat model.
func (c *Catalog) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	out := make([]*schema.ToolInfo, 0, len(c.tools))
	for _, t := range c.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t.info.Name)
	}
	return out
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.params[name]
	return ok
}

// NormalizeArguments trims strings, drops unknown keys and coerces values to
// the declared parameter types. Input that is not a JSON object is returned as is.
func (c *Catalog) NormalizeArguments(name, arguments string) string {
	params, ok := c.params[name]
	if !ok {
		return arguments
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}

	for k, v := range m {
		p, known := params[k]
		if !known || v == nil {
			delete(m, k)
			continue
		}
		if coerced, ok := coerce(dataType(p.Type), v); ok {
			m[k] = coerced
		} else {
			delete(m, k)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}

func coerce(t schema.DataType, v any) (any, bool) {
	switch t {
	case schema.Integer:
		switch vv := v.(type) {
		case float64:
			return int64(vv), true
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(vv), 10, 64)
			return n, err == nil
		}
		return nil, false
	case schema.Number:
		switch vv := v.(type) {
		case float64:
			return vv, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64)
			return f, err == nil
		}
		return nil, false
	case schema.Boolean:
		switch vv := v.(type) {
		case bool:
			return vv, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(vv))
			return b, err == nil
		}
		return nil, false
	case schema.Array:
		if arr, ok := v.([]any); ok {
			return arr, true
		}
		return nil, false
	default:
		switch vv := v.(type) {
		case string:
			return strings.TrimSpace(vv), true
		default:
			return strings.TrimSpace(fmt.Sprint(vv)), true
		}
	}
}
