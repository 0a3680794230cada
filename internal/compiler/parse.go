package compiler

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/quire/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Step kinds. A step declares exactly one.
const (
	KindFilter   = "filter"
	KindLayout   = "layout"
	KindSnapshot = "snapshot"
	KindWrite    = "write"
)

var stepKinds = []string{KindFilter, KindLayout, KindSnapshot, KindWrite}

// File is a parsed rules file.
type File struct {
	Filename   string
	Compile    []CompileDecl
	Layout     []LayoutDecl
	Preprocess []PreprocessDecl

	source []byte
}

// CompileDecl is one compilation rule.
type CompileDecl struct {
	Pattern  string
	Rep      string
	Snapshot string
	Steps    []Step
	Pos      token.Pos
}

// Step is one pipeline step. Kinds lists the step kinds present; a valid
// step has exactly one.
type Step struct {
	Kinds    []string
	Filter   string
	Layout   string
	Snapshot string
	Path     string
	Final    bool
	Params   ir.IRObject
	Write    *WriteTarget
	Pos      token.Pos
}

// Kind returns the step's kind, or "" unless exactly one is declared.
func (s Step) Kind() string {
	if len(s.Kinds) != 1 {
		return ""
	}
	return s.Kinds[0]
}

// WriteTarget is where a write step puts content: a literal Path, or a path
// derived from the item identifier with Ext and Index.
type WriteTarget struct {
	Path     string
	Ext      string
	Index    bool
	Snapshot string
}

// LayoutDecl is one layout rule.
type LayoutDecl struct {
	Pattern string
	Filter  string
	Params  ir.IRObject
	Pos     token.Pos
}

// PreprocessDecl sets attributes on matching items before compilation.
type PreprocessDecl struct {
	Pattern string
	Set     ir.IRObject
	Pos     token.Pos
}

// Parse compiles CUE source into a File. The source must unify with the
// rules schema; the first CUE error is returned with its position.
func Parse(filename string, src []byte) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("rules schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Rules")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	f := &File{Filename: filename, source: append([]byte(nil), src...)}
	var err error
	if f.Compile, err = parseList(v, "compile", parseCompile); err != nil {
		return nil, err
	}
	if f.Layout, err = parseList(v, "layout", parseLayout); err != nil {
		return nil, err
	}
	if f.Preprocess, err = parseList(v, "preprocess", parsePreprocess); err != nil {
		return nil, err
	}
	return f, nil
}

// Source returns the text the file was parsed from.
func (f *File) Source() []byte {
	return f.source
}

func parseList[T any](v cue.Value, field string, parse func(cue.Value) (T, error)) ([]T, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []T
	for iter.Next() {
		decl, err := parse(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, decl)
	}
	return out, nil
}

func parseCompile(v cue.Value) (CompileDecl, error) {
	d := CompileDecl{Pos: v.Pos()}
	var err error
	if d.Pattern, err = optionalString(v, "pattern"); err != nil {
		return d, err
	}
	if d.Rep, err = optionalString(v, "rep"); err != nil {
		return d, err
	}
	if d.Snapshot, err = optionalString(v, "snapshot"); err != nil {
		return d, err
	}
	d.Steps, err = parseList(v, "steps", parseStep)
	return d, err
}

func parseStep(v cue.Value) (Step, error) {
	s := Step{Pos: v.Pos()}
	for _, kind := range stepKinds {
		if v.LookupPath(cue.ParsePath(kind)).Exists() {
			s.Kinds = append(s.Kinds, kind)
		}
	}

	var err error
	if s.Filter, err = optionalString(v, "filter"); err != nil {
		return s, err
	}
	if s.Layout, err = optionalString(v, "layout"); err != nil {
		return s, err
	}
	if s.Snapshot, err = optionalString(v, "snapshot"); err != nil {
		return s, err
	}
	if s.Path, err = optionalString(v, "path"); err != nil {
		return s, err
	}
	if s.Final, err = optionalBool(v, "final"); err != nil {
		return s, err
	}
	if s.Params, err = optionalObject(v, "params"); err != nil {
		return s, err
	}

	writeVal := v.LookupPath(cue.ParsePath("write"))
	if writeVal.Exists() {
		s.Write = &WriteTarget{}
		if p, err := writeVal.String(); err == nil {
			s.Write.Path = p
			return s, nil
		}
		if s.Write.Path, err = optionalString(writeVal, "path"); err != nil {
			return s, err
		}
		if s.Write.Ext, err = optionalString(writeVal, "ext"); err != nil {
			return s, err
		}
		if s.Write.Index, err = optionalBool(writeVal, "index"); err != nil {
			return s, err
		}
		if s.Write.Snapshot, err = optionalString(writeVal, "snapshot"); err != nil {
			return s, err
		}
	}
	return s, nil
}

func parseLayout(v cue.Value) (LayoutDecl, error) {
	d := LayoutDecl{Pos: v.Pos()}
	var err error
	if d.Pattern, err = optionalString(v, "pattern"); err != nil {
		return d, err
	}
	if d.Filter, err = optionalString(v, "filter"); err != nil {
		return d, err
	}
	d.Params, err = optionalObject(v, "params")
	return d, err
}

func parsePreprocess(v cue.Value) (PreprocessDecl, error) {
	d := PreprocessDecl{Pos: v.Pos()}
	var err error
	if d.Pattern, err = optionalString(v, "pattern"); err != nil {
		return d, err
	}
	d.Set, err = optionalObject(v, "set")
	return d, err
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalObject(v cue.Value, field string) (ir.IRObject, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return ir.IRObject{}, nil
	}
	val, err := irValue(fv)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, &CompileError{Field: field, Message: "must be a struct", Pos: fv.Pos()}
	}
	return obj, nil
}

// irValue converts a concrete CUE value. Null fields and list elements are
// dropped; integral floats become ints and other floats strings.
func irValue(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return ir.IRInt(int64(f)), nil
		}
		return ir.IRString(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := irValue(iter.Value())
			if err != nil {
				return nil, err
			}
			if elem != nil {
				arr = append(arr, elem)
			}
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := irValue(iter.Value())
			if err != nil {
				return nil, err
			}
			if elem != nil {
				obj[iter.Label()] = elem
			}
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
