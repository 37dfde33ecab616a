/*
Copyright © 2026 the Nansat authors.
This file is part of Nansat.

Nansat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Nansat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Nansat.  If not, see <http://www.gnu.org/licenses/>.
*/


package nansat

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
)

// expressionFunctions are available in band expressions.
var expressionFunctions = map[string]govaluate.ExpressionFunction{
	"exp":   mathFunc("exp", math.Exp),
	"log":   mathFunc("log", math.Log),
	"log10": mathFunc("log10", math.Log10),
	"sqrt":  mathFunc("sqrt", math.Sqrt),
	"abs":   mathFunc("abs", math.Abs),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("nansat: got %d arguments for function 'pow', but needs 2", len(args))
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("nansat: function 'pow' needs numeric arguments")
		}
		return math.Pow(a, b), nil
	},
}

func mathFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("nansat: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("nansat: function '%s' needs a numeric argument", name)
		}
		return f(v), nil
	}
}

// scalePairs hold the metadata keys of the supported linear scalings.
var scalePairs = [][2]string{{"scale_factor", "add_offset"}, {"scale", "offset"}}

// applyScaling converts raw values to physical values in place, using the
// scale_ratio, scale_factor/add_offset (or scale/offset) and expression
// metadata entries. The entries that were applied are removed from meta.
// Missing values are left unchanged.
func applyScaling(a *sparse.DenseArray, meta Metadata) error {
	fill, err := meta.Float(FillValueKey)
	hasFill := err == nil

	factor, offset := 1., 0.
	scaled := false
	if r, err := meta.Float("scale_ratio"); err == nil {
		factor *= r
		scaled = true
		delete(meta, "scale_ratio")
	}
	for _, p := range scalePairs {
		sf, err1 := meta.Float(p[0])
		ao, err2 := meta.Float(p[1])
		if err1 != nil && err2 != nil {
			continue
		}
		if err1 == nil {
			factor *= sf
			offset *= sf
		}
		if err2 == nil {
			offset += ao
		}
		scaled = true
		delete(meta, p[0])
		delete(meta, p[1])
		break
	}

	var expr *govaluate.EvaluableExpression
	if s, ok := meta[ExpressionKey]; ok && s != "" {
		expr, err = govaluate.NewEvaluableExpressionWithFunctions(s, expressionFunctions)
		if err != nil {
			return fmt.Errorf("parsing expression %q: %v", s, err)
		}
		delete(meta, ExpressionKey)
	}
	if !scaled && expr == nil {
		return nil
	}
	params := map[string]interface{}{"x": 0.}
	for i, v := range a.Elements {
		if math.IsNaN(v) || (hasFill && v == fill) {
			continue
		}
		v = v*factor + offset
		if expr != nil {
			params["x"] = v
			r, err := expr.Evaluate(params)
			if err != nil {
				return fmt.Errorf("evaluating expression: %v", err)
			}
			f, ok := r.(float64)
			if !ok {
				return fmt.Errorf("expression returned %T, not a number", r)
			}
			v = f
		}
		a.Elements[i] = v
	}
	return nil
}
