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

	"github.com/pkg/errors"
)

// ErrUnreachable signals that a refinement of an abstract state has no concrete instances.
// It is not a failure: the branch that produced it is simply dropped.
var ErrUnreachable = errors.New("unreachable")

// Unreachablef returns an error wrapping ErrUnreachable with a description of the refuted fact.
func Unreachablef(format string, args ...any) error {
	return errors.Wrapf(ErrUnreachable, format, args...)
}

// IsUnreachable returns true if err signals an infeasible path
func IsUnreachable(err error) bool {
	return err != nil && errors.Is(err, ErrUnreachable)
}

// UnsupportedError is returned when the analysis reaches a construct that is recognized but not implemented.
// The analysis of the current path cannot continue.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Construct)
}

// Unimplemented returns an UnsupportedError naming the construct, annotated with the stack of the caller.
func Unimplemented(format string, args ...any) error {
	return errors.WithStack(&UnsupportedError{Construct: fmt.Sprintf(format, args...)})
}

// IsUnsupported returns true if err is or wraps an UnsupportedError
func IsUnsupported(err error) bool {
	var u *UnsupportedError
	return err != nil && errors.As(err, &u)
}

// OutcomeKind distinguishes the three kinds of Outcome
type OutcomeKind int

const (
	// KindFeasible is the kind of an outcome holding a value
	KindFeasible OutcomeKind = iota
	// KindInfeasible is the kind of an outcome whose path has no concrete instances
	KindInfeasible
	// KindUnsupported is the kind of an outcome that hit an unimplemented construct
	KindUnsupported
)

func (k OutcomeKind) String() string {
	switch k {
	case KindFeasible:
		return "feasible"
	case KindInfeasible:
		return "infeasible"
	default:
		return "unsupported"
	}
}

// An Outcome is the result of one branch of an abstract operation.
type Outcome[T any] struct {
	kind  OutcomeKind
	value T
	err   error
}

// Feasible returns the outcome holding v
func Feasible[T any](v T) Outcome[T] {
	return Outcome[T]{kind: KindFeasible, value: v}
}

// Infeasible returns the outcome of a branch without concrete instances
func Infeasible[T any]() Outcome[T] {
	return Outcome[T]{kind: KindInfeasible}
}

// Failed returns the outcome of a branch that stopped on err. If err signals unreachability, the outcome is
// infeasible instead.
func Failed[T any](err error) Outcome[T] {
	if IsUnreachable(err) {
		return Infeasible[T]()
	}
	return Outcome[T]{kind: KindUnsupported, err: err}
}

// Lift classifies the result of a function returning a value and an error
func Lift[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Feasible(v)
}

// Kind returns the kind of the outcome
func (o Outcome[T]) Kind() OutcomeKind { return o.kind }

// IsFeasible returns true if the outcome holds a value
func (o Outcome[T]) IsFeasible() bool { return o.kind == KindFeasible }

// Get returns the value of the outcome, and false if it is not feasible
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.kind == KindFeasible
}

// Err returns the error of an unsupported outcome, nil otherwise
func (o Outcome[T]) Err() error { return o.err }

func (o Outcome[T]) String() string {
	switch o.kind {
	case KindFeasible:
		return fmt.Sprintf("feasible(%v)", o.value)
	case KindUnsupported:
		return fmt.Sprintf("unsupported(%v)", o.err)
	default:
		return "infeasible"
	}
}

// Collect returns the values of the feasible outcomes, dropping the infeasible ones. The first unsupported outcome
// aborts the collection and its error is returned.
func Collect[T any](outcomes ...Outcome[T]) ([]T, error) {
	var values []T
	for _, o := range outcomes {
		switch o.kind {
		case KindFeasible:
			values = append(values, o.value)
		case KindUnsupported:
			return nil, o.err
		}
	}
	return values, nil
}
