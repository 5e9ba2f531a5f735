// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"github.com/kraklabs/jjs/bytecode"
)

// functionExpr parses `function` [name] `(` params `)` `{` body `}` and
// emits it as a nested Bytecode object referenced from the enclosing
// bytecode's literal pool via ExtCreateClosure, matching spec.md section
// 4.5's "function templates live in a per-bytecode pool".
func (p *Parser) functionExpr() error {
	return p.functionCommon(false)
}

// functionDeclaration parses the statement-position form, binding the
// function's name in the enclosing scope before the body is parsed (so
// the function can recurse).
func (p *Parser) functionDeclaration() error {
	return p.functionCommon(true)
}

func (p *Parser) functionCommon(isDeclaration bool) error {
	if err := p.advance(); err != nil { // consume `function`
		return err
	}
	var nameLit uint16
	var hasName bool
	if p.cur.Kind == TokIdent {
		var err error
		nameLit, err = p.internLiteral(p.cur.Value)
		if err != nil {
			return err
		}
		hasName = true
		if isDeclaration {
			p.scope.declare(p.cur.Value, bindingVar)
		}
		if err := p.advance(); err != nil {
			return err
		}
	}

	nested := &Parser{lex: p.lex, opts: p.opts, interner: p.interner, b: bytecode.NewBuilder()}
	nested.scope = newDeclScope(p.scope, true)

	if err := p.expectPunct("("); err != nil {
		return err
	}
	var params []string
	for !p.isPunct(")") {
		if p.cur.Kind != TokIdent {
			return p.errorf(ErrUnexpectedToken, "expected parameter name")
		}
		paramLit, err := nested.internLiteral(p.cur.Value)
		if err != nil {
			return err
		}
		nested.b.Param(paramLit)
		params = append(params, p.cur.Value)
		nested.scope.declare(p.cur.Value, bindingFunctionParam)
		if err := p.advance(); err != nil {
			return err
		}
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return err
			}
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}

	if err := p.expectPunct("{"); err != nil {
		return err
	}

	// The nested parser shares the token stream; synchronize cur/nxt.
	nested.cur, nested.nxt = p.cur, p.nxt
	for !nested.isPunct("}") && nested.cur.Kind != TokEOF {
		if err := nested.statement(); err != nil {
			return err
		}
	}
	if nested.cur.Kind == TokEOF {
		return nested.errorf(ErrUnexpectedEOF, "unterminated function body")
	}
	p.cur, p.nxt = nested.cur, nested.nxt
	if err := p.advance(); err != nil { // consume `}`
		return err
	}

	nested.b.Emit(bytecode.OpPushUndefined, 1)
	nested.b.Emit(bytecode.OpReturn, 0)

	if err := nested.hoistScopeVars(nested.scope); err != nil {
		return err
	}

	flags := bytecode.Flags(0)
	if nested.scope.strict {
		flags |= bytecode.FlagStrict
	}
	fnBC := nested.b.Finish(uint16(len(params)), uint16(len(nested.scope.order)), flags, p.opts.SourceName, p.opts.LineInfo)
	fnIdx := p.b.FunctionLiteral(fnBC)
	p.b.EmitExt(bytecode.ExtCreateClosure, fnIdx, 1)

	if hasName && !isDeclaration {
		_ = nameLit // named function expressions bind their own name inside the closure's scope; wiring that through is a vm-layer concern
	}
	if isDeclaration {
		p.b.EmitLiteral(bytecode.OpInitBinding, nameLit, -1)
	}
	return nil
}
