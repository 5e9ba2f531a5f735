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
	"fmt"

	"github.com/kraklabs/jjs/bytecode"
	"github.com/kraklabs/jjs/strtab"
	"github.com/kraklabs/jjs/value"
)

// Options configures one parse call.
type Options struct {
	SourceName string
	Strict     bool
	IsEval     bool
	IsModule   bool
	LineInfo   bool
}

// Parser drives the Lexer one token of lookahead at a time, emitting
// bytecode directly into a bytecode.Builder stack as it recognizes
// productions, with no intermediate AST (spec.md section 4.5).
type Parser struct {
	lex      *Lexer
	cur, nxt Token
	opts     Options
	interner *strtab.InternSet
	b        *bytecode.Builder
	scope    *declScope
	loopCtx  []loopContext
}

// loopContext records the patch lists a break/continue inside the
// current loop must target once the loop's bytecode is fully emitted.
type loopContext struct {
	breakPatches    []int
	continuePatches []int
}

func New(src string, interner *strtab.InternSet, opts Options) (*Parser, error) {
	lex := NewLexer(src, opts.SourceName)
	p := &Parser{lex: lex, opts: opts, interner: interner, b: bytecode.NewBuilder()}
	p.scope = newDeclScope(nil, true)
	p.scope.strict = opts.Strict
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.cur = p.nxt
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.nxt = tok
	return nil
}

func (p *Parser) errorf(code ErrorCode, format string, args ...any) *SyntaxError {
	return &SyntaxError{Code: code, Message: fmt.Sprintf(format, args...), Line: p.cur.Line, Col: p.cur.Col, SourceName: p.opts.SourceName}
}

func (p *Parser) isPunct(v string) bool   { return p.cur.Kind == TokPunct && p.cur.Value == v }
func (p *Parser) isKeyword(v string) bool { return p.cur.Kind == TokKeyword && p.cur.Value == v }

func (p *Parser) expectPunct(v string) error {
	if !p.isPunct(v) {
		return p.errorf(ErrUnexpectedToken, "expected %q, got %q", v, p.cur.Value)
	}
	return p.advance()
}

// hoistScopeVars records every `var`-kind name declared directly in
// scope (which nested blocks already flatten `var`s into, via
// declScope.nearestFunctionScope) onto the builder's hoisted-var list.
func (p *Parser) hoistScopeVars(scope *declScope) error {
	for _, name := range scope.order {
		if scope.names[name] != bindingVar {
			continue
		}
		lit, err := p.internLiteral(name)
		if err != nil {
			return err
		}
		p.b.HoistVar(lit)
	}
	return nil
}

func (p *Parser) internLiteral(s string) (uint16, error) {
	idx, err := p.interner.InternString(s)
	if err != nil {
		return 0, err
	}
	return p.b.Literal(value.HeapRef(idx)), nil
}

// ParseProgram parses and emits bytecode for a complete top-level
// script, returning the finished immutable Bytecode object.
func (p *Parser) ParseProgram() (*bytecode.Bytecode, error) {
	for p.cur.Kind != TokEOF {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	p.b.Emit(bytecode.OpPushUndefined, 1)
	p.b.Emit(bytecode.OpReturn, 0)

	if err := p.hoistScopeVars(p.scope); err != nil {
		return nil, err
	}

	flags := bytecode.Flags(0)
	if p.scope.strict {
		flags |= bytecode.FlagStrict
	}
	if p.opts.IsEval {
		flags |= bytecode.FlagIsEval
	}
	if p.opts.IsModule {
		flags |= bytecode.FlagIsModule
	}
	registerCount := uint16(len(p.scope.order))
	return p.b.Finish(0, registerCount, flags, p.opts.SourceName, p.opts.LineInfo), nil
}

// reparseExpr parses src as a standalone expression, emitting into the
// same builder and scope as the enclosing parse. Used to re-visit a
// `for` loop's update clause after the loop body, so its bytecode runs
// in the right place despite appearing earlier in the source text (see
// forStatement).
func (p *Parser) reparseExpr(src string) error {
	savedLex, savedCur, savedNxt := p.lex, p.cur, p.nxt
	p.lex = NewLexer(src, p.opts.SourceName)
	p.cur, p.nxt = Token{}, Token{}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	p.lex, p.cur, p.nxt = savedLex, savedCur, savedNxt
	return nil
}

// Parse is the package-level entry point spec.md's public API layer
// calls to compile one source string into bytecode.
func Parse(src string, interner *strtab.InternSet, opts Options) (*bytecode.Bytecode, error) {
	p, err := New(src, interner, opts)
	if err != nil {
		return nil, err
	}
	return p.ParseProgram()
}
