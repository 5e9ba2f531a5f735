// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vm

import "github.com/kraklabs/jjs/value"

// NewFastArrayValue allocates a fast array prefilled with elems, the same
// shape OpPushEmptyArray plus element stores produces from bytecode,
// exposed as a single call for routine handlers (Object.keys/values,
// Array.prototype methods) that materialize a result array in Go.
func (vm *VM) NewFastArrayValue(elems []value.Value) (value.Value, error) {
	idx, err := vm.Objects.NewFastArray(vm.ArrayProto, len(elems))
	if err != nil {
		return value.Undefined, err
	}
	for i, v := range elems {
		vm.Objects.SetElement(idx, i, v)
	}
	return value.HeapRef(idx), nil
}
