package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// newEvalContext exposes the project root, the manifest directory and the
// environment to manifest expressions
func newEvalContext(root, dir string) *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && hclName(k) {
			env[k] = cty.StringVal(v)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"root": cty.StringVal(root),
			"dir":  cty.StringVal(dir),
			"env":  cty.ObjectVal(env),
		},
		Functions: map[string]function.Function{
			"file":    fileFunc(dir),
			"format":  stdlib.FormatFunc,
			"join":    stdlib.JoinFunc,
			"lower":   stdlib.LowerFunc,
			"upper":   stdlib.UpperFunc,
			"replace": stdlib.ReplaceFunc,
		},
	}
}

// fileFunc reads a file relative to the manifest directory
func fileFunc(dir string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "path", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			path := args[0].AsString()
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return cty.NilVal, err
			}

			return cty.StringVal(string(data)), nil
		},
	})
}

// hclName reports whether an environment variable can be used as an
// attribute name
func hclName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}
