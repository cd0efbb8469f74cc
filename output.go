/*
Copyright © 2024 the nclass authors.
This file is part of nclass.

nclass is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nclass is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nclass.  If not, see <http://www.gnu.org/licenses/>.
*/

package nclass

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/plasmaflow/nclass/formulary"
)

// Row is one line of the result table: the input profile of a charge
// state on a flux surface merged with the quantities computed for it.
// Energies are in eV.
type Row struct {
	Psi         float64 `csv:"psi"`
	ChargeState string  `csv:"charge_state"`
	Z           int     `csv:"Z"`
	N           float64 `csv:"n"`
	T           float64 `csv:"T_eV"`
	DN          float64 `csv:"dn"`
	DT          float64 `csv:"dT_eV"`
	Xi          float64 `csv:"xi"`

	Gamma   float64 `csv:"Gamma"`
	Q       float64 `csv:"q"`
	GammaBP float64 `csv:"Gamma_BP"`
	QBP     float64 `csv:"q_BP"`
	GammaPS float64 `csv:"Gamma_PS"`
	QPS     float64 `csv:"q_PS"`
	GammaCL float64 `csv:"Gamma_CL"`
	QCL     float64 `csv:"q_CL"`

	D   float64 `csv:"D"`
	Chi float64 `csv:"chi"`

	U1 float64 `csv:"u1"`
	U2 float64 `csv:"u2"`
	U3 float64 `csv:"u3"`
}

func (r *Row) parameters() map[string]interface{} {
	return map[string]interface{}{
		"psi": r.Psi, "Z": float64(r.Z), "n": r.N, "T": r.T,
		"dn": r.DN, "dT": r.DT, "xi": r.Xi,
		"Gamma": r.Gamma, "q": r.Q,
		"Gamma_BP": r.GammaBP, "q_BP": r.QBP,
		"Gamma_PS": r.GammaPS, "q_PS": r.QPS,
		"Gamma_CL": r.GammaCL, "q_CL": r.QCL,
		"D": r.D, "chi": r.Chi,
		"u1": r.U1, "u2": r.U2, "u3": r.U3,
	}
}

// Table returns one Row per charge state, in solver order.
func (f *FlowSolver) Table() []*Row {
	s := f.s
	psi := f.fs.Psi().Value()
	rows := make([]*Row, s.Len())
	for a, sym := range s.symbols {
		r := &Row{
			Psi:         psi,
			ChargeState: sym,
			Z:           s.states[a].ChargeNumber,
			N:           s.density[a],
			T:           s.temperature[a] / formulary.ElectronVolt,
			DN:          s.dn[a],
			DT:          s.dT[a] / formulary.ElectronVolt,
			Xi:          s.xi[a],
		}
		tot := f.bp[a].add(f.ps[a]).add(f.cl[a])
		r.Gamma, r.Q = tot.particle, tot.heat
		r.GammaBP, r.QBP = f.bp[a].particle, f.bp[a].heat
		r.GammaPS, r.QPS = f.ps[a].particle, f.ps[a].heat
		r.GammaCL, r.QCL = f.cl[a].particle, f.cl[a].heat
		r.D = -safeDiv(tot.particle, s.dn[a])
		r.Chi = -safeDiv(tot.heat, s.dT[a]/formulary.Boltzmann)
		r.U1, r.U2, r.U3 = f.flows[a].AtVec(0), f.flows[a].AtVec(1), f.flows[a].AtVec(2)
		rows[a] = r
	}
	return rows
}

// Outputter calculates user-defined output columns from result rows.
//
// outputVariables maps the names of the requested columns to expressions
// that define how they are calculated. Expressions can use the row
// variables (n, T, Gamma, q, D, chi, ...), other output variables, and
// functions.
//
// rowVariables is generated from the row variables that the requested
// expressions need.
type Outputter struct {
	outputVariables map[string]string
	rowVariables    []string
	outputFunctions map[string]govaluate.ExpressionFunction
	expressions     map[string]*govaluate.EvaluableExpression
}

func oneArg(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("nclass: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("nclass: argument to '%s' is %T, not a number", name, arg[0])
		}
		return f(v), nil
	}
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: 'abs(x)', 'exp(x)', 'log10(x)' and 'sqrt(x)'.
// Functions in outputFunctions override the defaults of the same name.
func NewOutputter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"abs":   oneArg("abs", math.Abs),
		"exp":   oneArg("exp", math.Exp),
		"log10": oneArg("log10", math.Log10),
		"sqrt":  oneArg("sqrt", math.Sqrt),
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := &Outputter{
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	for k, v := range outputVariables {
		o.outputVariables[k] = v
	}
	if err := checkOutputNames(o.outputVariables); err != nil {
		return nil, err
	}
	if err := o.checkForDerivatives(0); err != nil {
		return nil, err
	}
	if err := o.checkRowVars(); err != nil {
		return nil, err
	}
	o.expressions = make(map[string]*govaluate.EvaluableExpression, len(o.outputVariables))
	for k, v := range o.outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(v, o.outputFunctions)
		if err != nil {
			return nil, errors.Wrapf(err, "nclass: output variable %s", k)
		}
		o.expressions[k] = e
	}
	return o, nil
}

func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, val := range s {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

var identChar = regexp.MustCompile(`[A-Za-z0-9_]`)

// replaceVariable replaces every standalone instance of name in expr by
// (def). An instance is standalone if it is not part of a longer name:
// 'q' inside 'q_PS' is left alone.
func replaceVariable(expr, name, def string) string {
	parts := strings.Split(expr, name)
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i == len(parts)-1 {
			break
		}
		before := p != "" && identChar.MatchString(p[len(p)-1:])
		after := parts[i+1] != "" && identChar.MatchString(parts[i+1][:1])
		if before || after {
			b.WriteString(name)
		} else {
			b.WriteString("(" + def + ")")
		}
	}
	return b.String()
}

// maxDerivationDepth bounds the substitution of output variables into
// each other; deeper nesting means the definitions are circular.
const maxDerivationDepth = 32

// checkForDerivatives replaces any output variable that shows up in
// another output expression by its defining expression, and collects
// the row variables that remain.
func (o *Outputter) checkForDerivatives(depth int) error {
	if depth > maxDerivationDepth {
		return errors.Wrap(ErrConfig, "output variables are defined in terms of each other")
	}
	o.rowVariables = make([]string, 0, len(o.outputVariables))
	for key, val := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return errors.Wrapf(err, "nclass: output variable %s", key)
		}
		uniqueVars := removeDuplicates(expression.Vars())
		for _, v := range uniqueVars {
			if v == key {
				if _, isRow := o.parametersTemplate()[v]; !isRow {
					return errors.Wrapf(ErrConfig, "output variable %s refers to itself", key)
				}
				continue
			}
			if def, ok := o.outputVariables[v]; ok {
				o.outputVariables[key] = replaceVariable(val, v, def)
				return o.checkForDerivatives(depth + 1)
			}
		}
		o.rowVariables = append(o.rowVariables, uniqueVars...)
	}
	o.rowVariables = removeDuplicates(o.rowVariables)
	sort.Strings(o.rowVariables)
	return nil
}

func (o *Outputter) parametersTemplate() map[string]interface{} {
	return new(Row).parameters()
}

// checkRowVars checks that every variable the output expressions need
// is a row variable.
func (o *Outputter) checkRowVars() error {
	p := o.parametersTemplate()
	for _, v := range o.rowVariables {
		if _, ok := p[v]; !ok {
			return errors.Wrapf(ErrConfig, "undefined variable name '%s'", v)
		}
	}
	return nil
}

var outputName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputNames checks that output variable names are usable as
// table column names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		if !outputName.MatchString(key) {
			return errors.Wrapf(ErrConfig, "output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// Names returns the output variable names in sorted order.
func (o *Outputter) Names() []string {
	names := make([]string, 0, len(o.outputVariables))
	for k := range o.outputVariables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RowVariables returns the row variables the output expressions use.
func (o *Outputter) RowVariables() []string { return append([]string(nil), o.rowVariables...) }

// Evaluate calculates every output variable for every row. The returned
// slices are in row order.
func (o *Outputter) Evaluate(rows []*Row) (map[string][]float64, error) {
	out := make(map[string][]float64, len(o.expressions))
	for k := range o.expressions {
		out[k] = make([]float64, len(rows))
	}
	for i, r := range rows {
		p := r.parameters()
		for k, e := range o.expressions {
			v, err := e.Evaluate(p)
			if err != nil {
				return nil, errors.Wrapf(err, "nclass: evaluating %s for %s", k, r.ChargeState)
			}
			fv, ok := v.(float64)
			if !ok {
				return nil, errors.Wrapf(ErrConfig, "output variable %s evaluates to %T, not a number", k, v)
			}
			out[k][i] = fv
		}
	}
	return out, nil
}
