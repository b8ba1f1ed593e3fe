// Package rules evaluates the small boolean expressions that decide which
// sections a transaction mounts and which DMV forms it prints. Expressions
// are expr-lang programs over a fixed set of helpers:
//
//	flag("vehicleTransactionDetails.withTitle")   document flag
//	text("owners.0.state")                        document string
//	count("owners")                               array length
//	scenario("Gift")                              active scenario
//	subOption("Duplicate Stickers-Month")         active sub-option
//	transactionType                               the transaction being composed
package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/formmatic/formmatic/internal/formdoc"
)

// Flags exposes the user's scenario selection.
type Flags interface {
	ScenarioActive(name string) bool
	SubOptionActive(option string) bool
}

// Facts is the input a rule is evaluated against. Build it with NewFacts so
// the document is encoded once per evaluation round.
type Facts struct {
	doc             []byte
	transactionType string
	flags           Flags
}

// NewFacts captures doc, the transaction type and the selection. flags may
// be nil.
func NewFacts(doc formdoc.Document, transactionType string, flags Flags) *Facts {
	return &Facts{doc: doc.JSON(), transactionType: transactionType, flags: flags}
}

func (f *Facts) env() map[string]any {
	return map[string]any{
		"transactionType": f.transactionType,
		"flag": func(path string) bool {
			return gjson.GetBytes(f.doc, path).Bool()
		},
		"text": func(path string) string {
			return gjson.GetBytes(f.doc, path).String()
		},
		"count": func(path string) int {
			r := gjson.GetBytes(f.doc, path)
			if !r.IsArray() {
				return 0
			}
			return len(r.Array())
		},
		"scenario": func(name string) bool {
			return f.flags != nil && f.flags.ScenarioActive(name)
		},
		"subOption": func(option string) bool {
			return f.flags != nil && f.flags.SubOptionActive(option)
		},
	}
}

// prototype fixes the helper signatures at compile time.
var prototype = (&Facts{}).env()

// Rule is a compiled condition. The zero Rule and a Rule compiled from an
// empty expression always hold.
type Rule struct {
	source  string
	program *vm.Program
}

// compiled maps expression source to *vm.Program.
var compiled sync.Map

// Compile parses and type-checks expression. Programs are cached by source.
func Compile(expression string) (Rule, error) {
	if expression == "" {
		return Rule{}, nil
	}
	if p, ok := compiled.Load(expression); ok {
		return Rule{source: expression, program: p.(*vm.Program)}, nil
	}
	program, err := expr.Compile(expression, expr.Env(prototype), expr.AsBool())
	if err != nil {
		return Rule{}, fmt.Errorf("rules: compile %q: %w", expression, err)
	}
	p, _ := compiled.LoadOrStore(expression, program)
	return Rule{source: expression, program: p.(*vm.Program)}, nil
}

// MustCompile is Compile for package-level tables.
func MustCompile(expression string) Rule {
	r, err := Compile(expression)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the source expression.
func (r Rule) String() string {
	return r.source
}

// Eval reports whether the rule holds for f.
func (r Rule) Eval(f *Facts) (bool, error) {
	if r.program == nil {
		return true, nil
	}
	out, err := expr.Run(r.program, f.env())
	if err != nil {
		return false, fmt.Errorf("rules: eval %q: %w", r.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// UnmarshalYAML lets tables declare rules as plain YAML strings.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(text))
}

// UnmarshalText compiles text into r.
func (r *Rule) UnmarshalText(text []byte) error {
	compiled, err := Compile(string(text))
	if err != nil {
		return err
	}
	*r = compiled
	return nil
}
