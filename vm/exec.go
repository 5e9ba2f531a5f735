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
	"encoding/binary"

	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/env"
	"github.com/kraklabs/jjs/object"
	"github.com/kraklabs/jjs/value"
)

func (f *Frame) readU8() uint8 {
	v := f.Code.Code[f.IP]
	f.IP++
	return v
}

func (f *Frame) readU16() uint16 {
	v := binary.LittleEndian.Uint16(f.Code.Code[f.IP:])
	f.IP += 2
	return v
}

func (f *Frame) readI16() int16 {
	return int16(f.readU16())
}

// execFrame runs f to completion: a normal OpReturn, an uncaught thrown
// exception, or a Go error from an unrecoverable condition (allocation
// failure, stack/call-depth limits, a halt callback).
func (vm *VM) execFrame(f *Frame) (value.Value, error) {
	vm.callDepth++
	prev := vm.currentFrame
	vm.currentFrame = f
	defer func() { vm.callDepth--; vm.currentFrame = prev }()
	if vm.callDepth > vm.MaxCallDepth {
		return value.Undefined, ErrCallDepthExceeded
	}

	for {
		if f.pending != nil && f.IP == f.pending.resumeAt {
			p := f.pending
			f.pending = nil
			if !vm.dispatchException(f, p.searchFrom, p.value, p.excludeHandler) {
				return p.value, &ThrownValue{Value: p.value}
			}
			continue
		}

		if vm.HaltInterval > 0 {
			vm.steps++
			if vm.steps%vm.HaltInterval == 0 && vm.HaltFn != nil && vm.HaltFn() {
				return value.Undefined, ErrHalted
			}
		}

		startIP := f.IP
		op := bytecode.Op(f.readU8())

		switch op {
		case bytecode.OpNop:

		case bytecode.OpPushLiteral:
			lit := f.readU16()
			if err := f.push(f.Code.Literals[lit]); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushSmallInt:
			n := f.readI16()
			v, _ := value.SmallInt(int32(n))
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushNumber:
			idx := f.readU16()
			v, err := value.Number(vm.Arena, f.Code.Numbers[idx])
			if err != nil {
				return value.Undefined, err
			}
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushUndefined:
			if err := f.push(value.Undefined); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushNull:
			if err := f.push(value.Null); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushTrue:
			if err := f.push(value.True); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushFalse:
			if err := f.push(value.False); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushThis:
			if err := f.push(vm.resolveThis(f.Env)); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushEmptyObject:
			idx, err := vm.Arena.Alloc(object.NewObject(object.KindPlain, vm.ObjectProto))
			if err != nil {
				return value.Undefined, err
			}
			if err := f.push(value.HeapRef(idx)); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPushEmptyArray:
			idx, err := vm.Objects.NewFastArray(vm.ArrayProto, 0)
			if err != nil {
				return value.Undefined, err
			}
			if err := f.push(value.HeapRef(idx)); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpPop:
			f.pop()
		case bytecode.OpDup:
			if err := f.push(f.peek()); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpDup2:
			n := len(f.Stack)
			a, b := f.Stack[n-2], f.Stack[n-1]
			if err := f.push(a); err != nil {
				return value.Undefined, err
			}
			if err := f.push(b); err != nil {
				return value.Undefined, err
			}

		case bytecode.OpGetRegister:
			idx := f.readU16()
			if err := f.push(f.Registers[idx]); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpSetRegister:
			idx := f.readU16()
			f.Registers[idx] = f.pop()

		case bytecode.OpGetBinding:
			lit := f.readU16()
			v, err := vm.getBinding(f.Env, f.Code.Literals[lit])
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpSetBinding:
			lit := f.readU16()
			v := f.peek()
			if err := vm.setBinding(f.Env, f.Code.Literals[lit], v); err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
		case bytecode.OpInitBinding:
			lit := f.readU16()
			v := f.pop()
			name := f.Code.Literals[lit]
			rec := vm.Arena.Get(f.Env).(*env.Record)
			if !rec.HasBinding(name) {
				rec.CreateBinding(name, true)
			}
			rec.InitializeBinding(name, v)

		case bytecode.OpGetProperty:
			key := f.pop()
			obj := f.pop()
			pk, err := vm.toPropertyKey(key)
			if err == nil {
				var v value.Value
				v, err = vm.getProperty(obj, pk)
				if err == nil {
					if perr := f.push(v); perr != nil {
						return value.Undefined, perr
					}
				}
			}
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
		case bytecode.OpSetProperty:
			val := f.pop()
			key := f.pop()
			obj := f.pop()
			pk, err := vm.toPropertyKey(key)
			if err == nil {
				err = vm.setProperty(obj, pk, val)
			}
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(val); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpGetPropertyLit:
			lit := f.readU16()
			obj := f.pop()
			v, err := vm.getProperty(obj, f.Code.Literals[lit])
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpSetPropertyLit:
			lit := f.readU16()
			val := f.pop()
			obj := f.pop()
			if err := vm.setProperty(obj, f.Code.Literals[lit], val); err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(val); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpDeleteProperty:
			key := f.pop()
			obj := f.pop()
			pk, err := vm.toPropertyKey(key)
			var ok bool
			if err == nil {
				ok, err = vm.deleteProperty(obj, pk)
			}
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(value.Bool(ok)); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpDeletePropertyLit:
			lit := f.readU16()
			obj := f.pop()
			ok, err := vm.deleteProperty(obj, f.Code.Literals[lit])
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(value.Bool(ok)); err != nil {
				return value.Undefined, err
			}

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpExp,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr, bytecode.OpUShr,
			bytecode.OpEq, bytecode.OpStrictEq, bytecode.OpNotEq, bytecode.OpStrictNotEq,
			bytecode.OpLt, bytecode.OpLte, bytecode.OpGt, bytecode.OpGte,
			bytecode.OpInstanceof, bytecode.OpIn:
			rhs := f.pop()
			lhs := f.pop()
			v, err := vm.binaryOp(op, lhs, rhs)
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}

		case bytecode.OpNeg, bytecode.OpNot, bytecode.OpBitNot, bytecode.OpTypeof:
			operand := f.pop()
			v, err := vm.unaryOp(op, operand)
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(v); err != nil {
				return value.Undefined, err
			}

		case bytecode.OpJump:
			off := f.readI16()
			f.IP = f.IP + int(off)
		case bytecode.OpJumpIfFalse:
			off := f.readI16()
			cond := f.pop()
			if !vm.ToBoolean(cond) {
				f.IP = f.IP + int(off)
			}
		case bytecode.OpJumpIfTrue:
			off := f.readI16()
			cond := f.pop()
			if vm.ToBoolean(cond) {
				f.IP = f.IP + int(off)
			}
		case bytecode.OpJumpIfNullish:
			off := f.readI16()
			cond := f.pop()
			if cond.IsNullish() {
				f.IP = f.IP + int(off)
			}

		case bytecode.OpCall:
			argc := int(f.readU8())
			args := f.popN(argc)
			callee := f.pop()
			result, err := vm.callValueFrom(callee, value.Undefined, args, value.Undefined, f)
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(result); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpNew:
			argc := int(f.readU8())
			args := f.popN(argc)
			ctor := f.pop()
			result, err := vm.constructFrom(ctor, args, f)
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if err := f.push(result); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpReturn:
			return f.pop(), nil
		case bytecode.OpThrow:
			exn := f.pop()
			if cont, rv, re := vm.handleOpError(f, startIP, &ThrownValue{Value: exn}); !cont {
				return rv, re
			}

		case bytecode.OpEnterTry, bytecode.OpLeaveTry:
			// Never actually emitted into the opcode stream (the parser
			// records try ranges straight into Header.Handlers); present
			// only so Op's numbering is stable.

		case bytecode.OpDefineProperty:
			val := f.pop()
			key := f.pop()
			obj := f.pop()
			pk, err := vm.toPropertyKey(key)
			if err == nil {
				err = vm.Objects.DefineOwnDataProperty(obj.AsHeapRef(), pk, val,
					object.FlagWritable|object.FlagEnumerable|object.FlagConfigurable|object.FlagValueDefined)
			}
			if err != nil {
				return value.Undefined, err
			}
			if err := f.push(obj); err != nil {
				return value.Undefined, err
			}
		case bytecode.OpAppendElement:
			val := f.pop()
			arr := f.pop()
			obj := vm.Arena.Get(arr.AsHeapRef()).(*object.Object)
			data := obj.Extra.(*object.ArrayData)
			vm.Objects.SetElement(arr.AsHeapRef(), len(data.Elements), val)
			if err := f.push(arr); err != nil {
				return value.Undefined, err
			}

		case bytecode.OpYield, bytecode.OpAwait:
			return value.Undefined, ErrNotImplemented

		case bytecode.OpExt:
			v, err := vm.execExt(f)
			if err != nil {
				if cont, rv, re := vm.handleOpError(f, startIP, err); !cont {
					return rv, re
				}
				continue
			}
			if v != nil {
				if err := f.push(*v); err != nil {
					return value.Undefined, err
				}
			}

		default:
			return value.Undefined, ErrUnknownOpcode
		}
	}
}

func (vm *VM) execExt(f *Frame) (*value.Value, error) {
	ext := bytecode.ExtOp(f.readU8())
	operand := f.readU16()
	switch ext {
	case bytecode.ExtCreateClosure:
		fnBC := f.Code.Functions[operand]
		codeIdx, err := vm.codeIndex(fnBC)
		if err != nil {
			return nil, err
		}
		fnIdx, err := vm.Objects.NewBytecodeFunction(vm.FunctionProto, codeIdx, f.Env)
		if err != nil {
			return nil, err
		}
		fd := vm.Arena.Get(fnIdx).(*object.Object).Extra.(*object.FunctionData)
		fd.IsArrow = fnBC.Header.Flags.Has(bytecode.FlagIsArrow)
		nameVal, err := value.Number(vm.Arena, float64(len(fnBC.ParamNames)))
		if err != nil {
			return nil, err
		}
		if err := vm.Objects.DefineOwnDataProperty(fnIdx, vm.names.length, nameVal,
			object.FlagConfigurable|object.FlagValueDefined); err != nil {
			return nil, err
		}
		v := value.HeapRef(fnIdx)
		return &v, nil
	case bytecode.ExtDebugger:
		return nil, nil
	default:
		return nil, ErrNotImplemented
	}
}

func (vm *VM) binaryOp(op bytecode.Op, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return vm.add(lhs, rhs)
	case bytecode.OpSub:
		return vm.sub(lhs, rhs)
	case bytecode.OpMul:
		return vm.mul(lhs, rhs)
	case bytecode.OpDiv:
		return vm.div(lhs, rhs)
	case bytecode.OpMod:
		return vm.mod(lhs, rhs)
	case bytecode.OpExp:
		return vm.exp(lhs, rhs)
	case bytecode.OpBitAnd:
		return vm.bitAnd(lhs, rhs)
	case bytecode.OpBitOr:
		return vm.bitOr(lhs, rhs)
	case bytecode.OpBitXor:
		return vm.bitXor(lhs, rhs)
	case bytecode.OpShl:
		return vm.shl(lhs, rhs)
	case bytecode.OpShr:
		return vm.shr(lhs, rhs)
	case bytecode.OpUShr:
		return vm.ushr(lhs, rhs)
	case bytecode.OpEq:
		eq, err := vm.AbstractEquals(lhs, rhs)
		return value.Bool(eq), err
	case bytecode.OpNotEq:
		eq, err := vm.AbstractEquals(lhs, rhs)
		return value.Bool(!eq), err
	case bytecode.OpStrictEq:
		return value.Bool(vm.StrictEquals(lhs, rhs)), nil
	case bytecode.OpStrictNotEq:
		return value.Bool(!vm.StrictEquals(lhs, rhs)), nil
	case bytecode.OpLt:
		return vm.lessThan(lhs, rhs)
	case bytecode.OpGt:
		return vm.greaterThan(lhs, rhs)
	case bytecode.OpLte:
		return vm.lessOrEqual(lhs, rhs)
	case bytecode.OpGte:
		return vm.greaterOrEqual(lhs, rhs)
	case bytecode.OpInstanceof:
		return vm.instanceOf(lhs, rhs)
	case bytecode.OpIn:
		return vm.inOperator(lhs, rhs)
	}
	return value.Undefined, ErrUnknownOpcode
}

func (vm *VM) unaryOp(op bytecode.Op, v value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpNeg:
		return vm.neg(v)
	case bytecode.OpNot:
		return value.Bool(!vm.ToBoolean(v)), nil
	case bytecode.OpBitNot:
		return vm.bitNot(v)
	case bytecode.OpTypeof:
		return vm.NewJSString(vm.TypeofString(v))
	}
	return value.Undefined, ErrUnknownOpcode
}
