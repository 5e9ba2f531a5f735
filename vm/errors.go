// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vm

import (
	"errors"
	"fmt"

	"github.com/kraklabs/jjs/value"
)

// Sentinel errors for conditions internal to frame execution, distinct
// from ECMAScript exceptions (a ThrownValue) - these can't be caught by
// a `catch` clause, mirroring the reference's separation between a
// recoverable thrown jjs_value_t and a jjs_fatal_code_t abort.
var (
	ErrStackOverflow    = errors.New("vm: operand stack exceeded bytecode stack-limit")
	ErrCallDepthExceeded = errors.New("vm: maximum call depth exceeded")
	ErrUnknownOpcode    = errors.New("vm: unknown opcode")
	ErrHalted           = errors.New("vm: execution halted by embedder callback")
	ErrNotCallable      = errors.New("vm: value is not callable")
	ErrNotConstructable = errors.New("vm: value is not a constructor")
	ErrNotImplemented   = errors.New("vm: opcode not implemented")
)

// ThrownValue wraps an ECMAScript exception value as a Go error so it can
// travel up Run/Call's (value.Value, error) return the way a native Go
// failure does, while still letting callers recover the original value
// via errors.As for rethrow or .catch() handling (spec.md section 4.9:
// "error-marked value" propagation to the API caller).
type ThrownValue struct {
	Value value.Value
}

func (t *ThrownValue) Error() string {
	return fmt.Sprintf("vm: uncaught exception (value word 0x%08x)", uint32(t.Value))
}

// AsThrown unwraps err into its carried exception Value, if it is one.
func AsThrown(err error) (value.Value, bool) {
	var tv *ThrownValue
	if errors.As(err, &tv) {
		return tv.Value, true
	}
	return value.Undefined, false
}
