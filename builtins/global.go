// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"math"
	"strconv"
	"strings"

	"github.com/kraklabs/jjs/value"
	"github.com/kraklabs/jjs/vm"
)

func installGlobalFunctions(v *vm.VM) error {
	natives := map[string]vm.NativeFunc{
		"parseInt":   nativeParseInt,
		"parseFloat": nativeParseFloat,
		"isNaN":      nativeIsNaN,
		"isFinite":   nativeIsFinite,
		"String":     nativeStringConvert,
		"Number":     nativeNumberConvert,
		"Boolean":    nativeBooleanConvert,
	}
	for name, fn := range natives {
		if _, err := v.DefineNative(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func nativeParseInt(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	s, err := vctx.ToDisplayString(argOr(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	radix := 10
	if len(args) > 1 {
		r, err := vctx.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		if !math.IsNaN(r) && r != 0 {
			radix = int(r)
		}
	}
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if (radix == 16 || radix == 0) && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		s = s[2:]
		radix = 16
	}
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseInt(s[:end+1], radix, 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return value.Number(vctx.Arena, math.NaN())
	}
	n, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		return value.Number(vctx.Arena, math.NaN())
	}
	f := float64(n)
	if neg {
		f = -f
	}
	return value.Number(vctx.Arena, f)
}

func nativeParseFloat(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	s, err := vctx.ToDisplayString(argOr(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 {
		if _, err := strconv.ParseFloat(s[:end], 64); err == nil {
			break
		}
		end--
	}
	if end == 0 {
		return value.Number(vctx.Arena, math.NaN())
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return value.Number(vctx.Arena, math.NaN())
	}
	return value.Number(vctx.Arena, f)
}

func nativeIsNaN(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	f, err := vctx.ToNumber(argOr(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	return value.Bool(math.IsNaN(f)), nil
}

func nativeIsFinite(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	f, err := vctx.ToNumber(argOr(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	return value.Bool(!math.IsNaN(f) && !math.IsInf(f, 0)), nil
}

func nativeStringConvert(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	if len(args) == 0 {
		return vctx.NewJSString("")
	}
	s, err := vctx.ToDisplayString(args[0])
	if err != nil {
		return value.Undefined, err
	}
	return vctx.NewJSString(s)
}

func nativeNumberConvert(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	if len(args) == 0 {
		zero, _ := value.SmallInt(0)
		return zero, nil
	}
	return vctx.ToValueNumber(args[0])
}

func nativeBooleanConvert(vctx *vm.VM, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	return value.Bool(vctx.ToBoolean(argOr(args, 0))), nil
}
