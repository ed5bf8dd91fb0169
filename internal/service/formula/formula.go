// Package formula compiles and evaluates accounting-schema line formulas.
// Package formula compile et évalue les formules des lignes de schéma comptable.
package formula

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// ErrNotNumeric is returned when a formula yields a non-number / Retournée quand une formule ne produit pas un nombre
var ErrNotNumeric = errors.New("formula result is not a number")

var functions = map[string]govaluate.ExpressionFunction{
	"max": func(args ...any) (any, error) {
		return fold(args, math.Max)
	},
	"min": func(args ...any) (any, error) {
		return fold(args, math.Min)
	},
	"abs": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("abs expects one argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, ErrNotNumeric
		}
		return math.Abs(v), nil
	},
	"round": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("round expects one argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, ErrNotNumeric
		}
		return math.Round(v), nil
	},
}

func fold(args []any, f func(a, b float64) float64) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one argument expected")
	}
	acc, ok := args[0].(float64)
	if !ok {
		return nil, ErrNotNumeric
	}
	for _, a := range args[1:] {
		v, ok := a.(float64)
		if !ok {
			return nil, ErrNotNumeric
		}
		acc = f(acc, v)
	}
	return acc, nil
}

// Formula is a parsed expression / Expression analysée
type Formula struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// Compile parses expr and checks it only references allowed variables
// Compile analyse expr et vérifie qu'elle n'utilise que les variables autorisées
func Compile(expr string, allowed []string) (*Formula, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return nil, fmt.Errorf("formule %q invalide : %w", expr, err)
	}
	for _, v := range e.Vars() {
		if !slices.Contains(allowed, v) {
			return nil, fmt.Errorf("formule %q : variable inconnue %q", expr, v)
		}
	}
	return &Formula{source: expr, expr: e}, nil
}

// String returns source text / Retourne le texte source
func (f *Formula) String() string {
	return f.source
}

// Vars lists referenced variables / Liste les variables référencées
func (f *Formula) Vars() []string {
	return f.expr.Vars()
}

// Eval computes the formula rounded to places decimals; missing variables count as zero
// Eval calcule la formule arrondie à places décimales ; une variable absente vaut zéro
func (f *Formula) Eval(vars map[string]decimal.Decimal, places int32) (decimal.Decimal, error) {
	params := make(map[string]any, len(f.expr.Vars()))
	for _, name := range f.expr.Vars() {
		v := vars[name]
		params[name] = v.InexactFloat64()
	}

	res, err := f.expr.Evaluate(params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("évaluation de %q : %w", f.source, err)
	}
	n, ok := res.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("évaluation de %q : %w", f.source, ErrNotNumeric)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return decimal.Zero, fmt.Errorf("évaluation de %q : résultat non fini", f.source)
	}
	return decimal.NewFromFloat(n).Round(places), nil
}

// Check compiles expr without keeping the result / Compile expr sans conserver le résultat
func Check(expr string, allowed []string) error {
	_, err := Compile(expr, allowed)
	return err
}
