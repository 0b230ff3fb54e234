package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/weft-io/weft/internal/logging"
)

// ModuleSpec is one modules: entry, a Starlark function call producing
// resource blocks. Call names the function as "path/file.star:function";
// exactly one of With (single invocation) or Instances (one invocation
// per named instance, name injected as the first kwarg) is set.
type ModuleSpec struct {
	Call      string                    `yaml:"call"`
	With      map[string]any            `yaml:"with"`
	Instances map[string]map[string]any `yaml:"instances"`
}

func (m *ModuleSpec) validate() error {
	if m.Call == "" {
		return fmt.Errorf("call is required")
	}
	if (m.With == nil) == (m.Instances == nil) {
		return fmt.Errorf("%s: exactly one of 'with' or 'instances' must be provided", m.Call)
	}
	return nil
}

type invocation struct {
	kwargs map[string]any
	label  string
}

func (m *ModuleSpec) invocations() []invocation {
	if m.Instances == nil {
		return []invocation{{kwargs: m.With, label: m.Call}}
	}
	names := make([]string, 0, len(m.Instances))
	for name := range m.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	invs := make([]invocation, 0, len(names))
	for _, name := range names {
		kwargs := map[string]any{"name": name}
		for k, v := range m.Instances[name] {
			kwargs[k] = v
		}
		invs = append(invs, invocation{
			kwargs: kwargs,
			label:  fmt.Sprintf("%s instance %q", m.Call, name),
		})
	}
	return invs
}

// expandModules evaluates every module spec and returns the produced
// resource blocks in spec order.
func expandModules(specs []ModuleSpec, dir string) ([]map[string]any, error) {
	var blocks []map[string]any
	for i := range specs {
		spec := &specs[i]
		fn, err := resolveFunction(spec.Call, dir)
		if err != nil {
			return nil, err
		}
		for _, inv := range spec.invocations() {
			out, err := callModule(fn, inv)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, out...)
		}
	}
	return blocks, nil
}

// resolveFunction executes the named Starlark file (relative to dir
// unless absolute) and returns its named top-level function.
func resolveFunction(call, dir string) (starlark.Callable, error) {
	idx := strings.LastIndex(call, ":")
	if idx <= 0 || idx == len(call)-1 {
		return nil, fmt.Errorf("invalid module call %q: expected \"path/file.star:function\"", call)
	}
	scriptPath, funcName := call[:idx], call[idx+1:]
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(dir, scriptPath)
	}

	globals, err := starlark.ExecFile(newThread(call), scriptPath, nil, starlark.StringDict{})
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", call, err)
	}
	val, ok := globals[funcName]
	if !ok {
		return nil, fmt.Errorf("module %q: no function %q in %s", call, funcName, scriptPath)
	}
	fn, ok := val.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("module %q: %q is not callable", call, funcName)
	}
	return fn, nil
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logging.Debug("module print", "module", name, "msg", msg)
		},
	}
}

// callModule invokes fn with the invocation's kwargs and converts the
// returned list of dicts into resource blocks.
func callModule(fn starlark.Callable, inv invocation) ([]map[string]any, error) {
	keys := make([]string, 0, len(inv.kwargs))
	for k := range inv.kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kwargs := make([]starlark.Tuple, 0, len(keys))
	for _, k := range keys {
		v, err := toStarlark(inv.kwargs[k])
		if err != nil {
			return nil, fmt.Errorf("module %s: argument %q: %w", inv.label, k, err)
		}
		kwargs = append(kwargs, starlark.Tuple{starlark.String(k), v})
	}

	out, err := starlark.Call(newThread(inv.label), fn, nil, kwargs)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", inv.label, err)
	}

	list, ok := out.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("module %s: must return a list of resource dicts, got %s", inv.label, out.Type())
	}
	blocks := make([]map[string]any, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		item, err := fromStarlark(list.Index(i))
		if err != nil {
			return nil, fmt.Errorf("module %s: result[%d]: %w", inv.label, i, err)
		}
		block, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("module %s: result[%d]: expected a resource dict, got %s", inv.label, i, list.Index(i).Type())
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func toStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s is too large", val)
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		items := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case starlark.Tuple:
		items := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, kv := range val.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings, got %s", kv[0].Type())
			}
			item, err := fromStarlark(kv[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
	}
}
