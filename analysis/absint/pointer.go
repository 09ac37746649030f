// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package absint

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Term is coeff*var in a linear expression
type Term struct {
	Coeff int64
	Var   AddrVar
}

// Linear is a linear expression over symbolic addresses: Const + Σ terms.
// Terms are kept sorted by variable and never have a zero coefficient, so that == on Linear.String() and Equal
// agree.
type Linear struct {
	Const int64
	terms []Term
}

// Const returns the constant expression c
func Const(c int64) Linear {
	return Linear{Const: c}
}

// Terms returns a copy of the non-constant terms of l
func (l Linear) Terms() []Term {
	return slices.Clone(l.terms)
}

// IsConstant returns the value of l if it has no terms
func (l Linear) IsConstant() (int64, bool) {
	return l.Const, len(l.terms) == 0
}

// AddConst returns l + c
func (l Linear) AddConst(c int64) Linear {
	return Linear{Const: l.Const + c, terms: l.terms}
}

// AddVar returns l + v
func (l Linear) AddVar(v AddrVar) Linear {
	return l.addTerm(Term{Coeff: 1, Var: v})
}

// SubVar returns l - v
func (l Linear) SubVar(v AddrVar) Linear {
	return l.addTerm(Term{Coeff: -1, Var: v})
}

// Sub returns l - other
func (l Linear) Sub(other Linear) Linear {
	r := l.AddConst(-other.Const)
	for _, t := range other.terms {
		r = r.addTerm(Term{Coeff: -t.Coeff, Var: t.Var})
	}
	return r
}

func (l Linear) addTerm(t Term) Linear {
	terms := make([]Term, 0, len(l.terms)+1)
	added := false
	for _, x := range l.terms {
		c := x.Var.Compare(t.Var)
		switch {
		case c == 0:
			added = true
			if x.Coeff+t.Coeff != 0 {
				terms = append(terms, Term{Coeff: x.Coeff + t.Coeff, Var: x.Var})
			}
		case c > 0 && !added:
			added = true
			terms = append(terms, t, x)
		default:
			terms = append(terms, x)
		}
	}
	if !added {
		terms = append(terms, t)
	}
	return Linear{Const: l.Const, terms: terms}
}

// Equal returns true if both expressions are syntactically equal
func (l Linear) Equal(other Linear) bool {
	return l.Const == other.Const && slices.Equal(l.terms, other.terms)
}

func (l Linear) String() string {
	var parts []string
	for _, t := range l.terms {
		switch t.Coeff {
		case 1:
			parts = append(parts, t.Var.String())
		case -1:
			parts = append(parts, "-"+t.Var.String())
		default:
			parts = append(parts, fmt.Sprintf("%d*%s", t.Coeff, t.Var))
		}
	}
	if l.Const != 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d", l.Const))
	}
	return strings.ReplaceAll(strings.Join(parts, " + "), "+ -", "- ")
}

// Field is a pointer-sized slot of a region: the field that holds a pointer being dereferenced, or the target of
// an assignment.
type Field struct {
	Region MemVar
	Offset int64
	Size   int // in bits
}

func (f Field) String() string {
	return fmt.Sprintf("%s%+d:%d", f.Region, f.Offset, f.Size)
}

// Value is the operand of a primitive: either a constant or the contents of a field.
type Value struct {
	Field   Field
	Const   int64
	IsConst bool
}

// ConstValue returns the constant operand c
func ConstValue(c int64) Value {
	return Value{Const: c, IsConst: true}
}

// FieldValue returns the operand reading f
func FieldValue(f Field) Value {
	return Value{Field: f}
}

func (v Value) String() string {
	if v.IsConst {
		return fmt.Sprintf("%d", v.Const)
	}
	return v.Field.String()
}

// Pointer is an abstract pointer: a symbolic address and an offset relative to it.
// An absolute pointer has no symbolic base and is never handled by a heap segment.
type Pointer struct {
	Address  AddrVar
	Offset   Linear
	Absolute bool
}

func (p Pointer) String() string {
	if p.Absolute {
		return fmt.Sprintf("abs(%s)", p.Offset)
	}
	return fmt.Sprintf("%s+(%s)", p.Address, p.Offset)
}

// MemPointer is a resolved pointer: the region it accesses and the symbolic offset within that region.
type MemPointer struct {
	Region MemVar
	Offset Linear
}

func (p MemPointer) String() string {
	return fmt.Sprintf("%s[%s]", p.Region, p.Offset)
}

// Prim is a call to a primitive operation, such as malloc.
type Prim struct {
	Name string
	In   []Value
	Out  []Field
}

// Is returns true if the primitive has the given name and number of input and output arguments
func (p Prim) Is(name string, numIn int, numOut int) bool {
	return p.Name == name && len(p.In) == numIn && len(p.Out) == numOut
}

func (p Prim) String() string {
	outs := make([]string, len(p.Out))
	for i, o := range p.Out {
		outs[i] = o.String()
	}
	ins := make([]string, len(p.In))
	for i, in := range p.In {
		ins[i] = in.String()
	}
	return fmt.Sprintf("prim (%s) = %s(%s)", strings.Join(outs, ", "), p.Name, strings.Join(ins, ", "))
}
