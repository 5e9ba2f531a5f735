// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import "github.com/kraklabs/jjs/bytecode"

func (p *Parser) consumeSemicolon() error {
	if p.isPunct(";") {
		return p.advance()
	}
	return nil // automatic semicolon insertion: tolerate its absence
}

func (p *Parser) statement() error {
	switch {
	case p.isPunct("{"):
		return p.block()
	case p.isKeyword("var"), p.isKeyword("let"), p.isKeyword("const"):
		if err := p.variableStatement(); err != nil {
			return err
		}
		return p.consumeSemicolon()
	case p.isKeyword("function"):
		return p.functionDeclaration()
	case p.isKeyword("if"):
		return p.ifStatement()
	case p.isKeyword("while"):
		return p.whileStatement()
	case p.isKeyword("do"):
		return p.doWhileStatement()
	case p.isKeyword("for"):
		return p.forStatement()
	case p.isKeyword("return"):
		return p.returnStatement()
	case p.isKeyword("throw"):
		return p.throwStatement()
	case p.isKeyword("try"):
		return p.tryStatement()
	case p.isKeyword("break"):
		return p.breakStatement()
	case p.isKeyword("continue"):
		return p.continueStatement()
	case p.isPunct(";"):
		return p.advance()
	default:
		if err := p.expression(); err != nil {
			return err
		}
		p.b.Emit(bytecode.OpPop, -1)
		return p.consumeSemicolon()
	}
}

func (p *Parser) block() error {
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	outer := p.scope
	p.scope = newDeclScope(outer, false)
	for !p.isPunct("}") && p.cur.Kind != TokEOF {
		if err := p.statement(); err != nil {
			return err
		}
	}
	p.scope = outer
	return p.expectPunct("}")
}

func (p *Parser) variableStatement() error {
	kind := p.cur.Value
	if err := p.advance(); err != nil {
		return err
	}
	var bk bindingKind
	switch kind {
	case "let":
		bk = bindingLet
	case "const":
		bk = bindingConst
	default:
		bk = bindingVar
	}
	for {
		if p.cur.Kind != TokIdent {
			return p.errorf(ErrUnexpectedToken, "expected binding identifier")
		}
		name := p.cur.Value
		nameLit, err := p.internLiteral(name)
		if err != nil {
			return err
		}
		if err := p.advance(); err != nil {
			return err
		}
		target := bk
		if target == bindingVar {
			p.scope.nearestFunctionScope().declare(name, bindingVar)
		} else {
			p.scope.declare(name, target)
		}

		if p.isPunct("=") {
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.assignExpr(); err != nil {
				return err
			}
			p.b.EmitLiteral(bytecode.OpInitBinding, nameLit, -1)
		} else if bk != bindingVar {
			p.b.Emit(bytecode.OpPushUndefined, 1)
			p.b.EmitLiteral(bytecode.OpInitBinding, nameLit, -1)
		}

		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return nil
}

func (p *Parser) ifStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	elseJump := p.b.Jump(bytecode.OpJumpIfFalse)
	if err := p.statement(); err != nil {
		return err
	}
	if p.isKeyword("else") {
		endJump := p.b.Jump(bytecode.OpJump)
		if err := p.b.PatchJump(elseJump); err != nil {
			return err
		}
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.statement(); err != nil {
			return err
		}
		return p.b.PatchJump(endJump)
	}
	return p.b.PatchJump(elseJump)
}

func (p *Parser) pushLoop() {
	p.loopCtx = append(p.loopCtx, loopContext{})
}

// resolveContinues patches every `continue` placeholder collected since
// the matching pushLoop to target, the offset where the next iteration's
// update/condition check begins.
func (p *Parser) resolveContinues(target int) error {
	lc := &p.loopCtx[len(p.loopCtx)-1]
	for _, patch := range lc.continuePatches {
		if err := p.b.PatchJumpTo(patch, target); err != nil {
			return err
		}
	}
	lc.continuePatches = nil
	return nil
}

func (p *Parser) popLoop() (loopContext, error) {
	n := len(p.loopCtx)
	lc := p.loopCtx[n-1]
	p.loopCtx = p.loopCtx[:n-1]
	for _, patch := range lc.breakPatches {
		if err := p.b.PatchJump(patch); err != nil {
			return lc, err
		}
	}
	return lc, nil
}

func (p *Parser) whileStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	loopHead := p.b.Offset()
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	exitJump := p.b.Jump(bytecode.OpJumpIfFalse)
	p.pushLoop()
	if err := p.statement(); err != nil {
		return err
	}
	if err := p.resolveContinues(loopHead); err != nil {
		return err
	}
	if err := p.b.PatchJumpTo(p.b.Jump(bytecode.OpJump), loopHead); err != nil {
		return err
	}
	if err := p.b.PatchJump(exitJump); err != nil {
		return err
	}
	_, err := p.popLoop()
	return err
}

func (p *Parser) doWhileStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	loopHead := p.b.Offset()
	p.pushLoop()
	if err := p.statement(); err != nil {
		return err
	}
	condStart := p.b.Offset()
	if err := p.resolveContinues(condStart); err != nil {
		return err
	}
	if !p.isKeyword("while") {
		return p.errorf(ErrUnexpectedToken, "expected 'while' after do-body")
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if err := p.b.PatchJumpTo(p.b.Jump(bytecode.OpJumpIfTrue), loopHead); err != nil {
		return err
	}
	if _, err := p.popLoop(); err != nil {
		return err
	}
	return p.consumeSemicolon()
}

// forStatement supports the classic C-style `for (init; cond; update)`
// form. for-in/for-of are intentionally out of scope for this pass (see
// DESIGN.md).
func (p *Parser) forStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expectPunct("("); err != nil {
		return err
	}

	outer := p.scope
	p.scope = newDeclScope(outer, false)
	defer func() { p.scope = outer }()

	if p.isKeyword("var") || p.isKeyword("let") || p.isKeyword("const") {
		if err := p.variableStatement(); err != nil {
			return err
		}
	} else if !p.isPunct(";") {
		if err := p.expression(); err != nil {
			return err
		}
		p.b.Emit(bytecode.OpPop, -1)
	}
	if err := p.expectPunct(";"); err != nil {
		return err
	}

	loopHead := p.b.Offset()
	var exitJump int
	hasCond := !p.isPunct(";")
	if hasCond {
		if err := p.expression(); err != nil {
			return err
		}
		exitJump = p.b.Jump(bytecode.OpJumpIfFalse)
	}
	if err := p.expectPunct(";"); err != nil {
		return err
	}

	// The update clause appears in source before the body but its
	// bytecode must run after it, on every iteration. Rather than
	// splicing a separately-built byte buffer (which would require
	// remapping every literal/number/function pool index it references),
	// capture the clause's source span and re-lex/re-parse it in place
	// after the body, against the very same Builder so pool indices stay
	// consistent.
	updateStart := p.cur.Pos
	hasUpdate := !p.isPunct(")")
	depth := 0
	for hasUpdate && !(depth == 0 && p.isPunct(")")) {
		if p.isPunct("(") || p.isPunct("[") {
			depth++
		} else if p.isPunct(")") || p.isPunct("]") {
			depth--
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	updateEnd := p.cur.Pos
	if err := p.expectPunct(")"); err != nil {
		return err
	}

	p.pushLoop()
	if err := p.statement(); err != nil {
		return err
	}
	updateOffset := p.b.Offset()
	if err := p.resolveContinues(updateOffset); err != nil {
		return err
	}
	if hasUpdate {
		if err := p.reparseExpr(p.lex.src[updateStart:updateEnd]); err != nil {
			return err
		}
		p.b.Emit(bytecode.OpPop, -1)
	}
	if err := p.b.PatchJumpTo(p.b.Jump(bytecode.OpJump), loopHead); err != nil {
		return err
	}
	if hasCond {
		if err := p.b.PatchJump(exitJump); err != nil {
			return err
		}
	}
	_, err := p.popLoop()
	return err
}

func (p *Parser) breakStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if len(p.loopCtx) == 0 {
		return p.errorf(ErrUnexpectedToken, "'break' outside of a loop")
	}
	jump := p.b.Jump(bytecode.OpJump)
	n := len(p.loopCtx) - 1
	p.loopCtx[n].breakPatches = append(p.loopCtx[n].breakPatches, jump)
	return p.consumeSemicolon()
}

func (p *Parser) continueStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if len(p.loopCtx) == 0 {
		return p.errorf(ErrUnexpectedToken, "'continue' outside of a loop")
	}
	jump := p.b.Jump(bytecode.OpJump)
	n := len(p.loopCtx) - 1
	p.loopCtx[n].continuePatches = append(p.loopCtx[n].continuePatches, jump)
	return p.consumeSemicolon()
}

func (p *Parser) returnStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.isPunct(";") || p.isPunct("}") || p.cur.Kind == TokEOF {
		p.b.Emit(bytecode.OpPushUndefined, 1)
	} else {
		if err := p.expression(); err != nil {
			return err
		}
	}
	p.b.Emit(bytecode.OpReturn, 0)
	return p.consumeSemicolon()
}

func (p *Parser) throwStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	p.b.Emit(bytecode.OpThrow, -1)
	return p.consumeSemicolon()
}

// tryStatement emits a try/catch/finally using Builder's handler-table
// bookkeeping (spec.md section 4.5, "each frame carries a list of
// (try-range, catch-ip, finally-ip) records").
func (p *Parser) tryStatement() error {
	if err := p.advance(); err != nil {
		return err
	}
	hIdx := p.b.EnterTry()
	if err := p.block(); err != nil {
		return err
	}
	skipHandlers := p.b.Jump(bytecode.OpJump)

	catchIP := bytecode.NoIP
	if p.isKeyword("catch") {
		catchIP = p.b.Offset()
		if err := p.advance(); err != nil {
			return err
		}
		outer := p.scope
		p.scope = newDeclScope(outer, false)
		var paramLit uint16
		hasParam := false
		if p.isPunct("(") {
			if err := p.advance(); err != nil {
				return err
			}
			if p.cur.Kind != TokIdent {
				return p.errorf(ErrUnexpectedToken, "expected catch parameter")
			}
			paramLit, _ = p.internLiteral(p.cur.Value)
			p.scope.declare(p.cur.Value, bindingLet)
			hasParam = true
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
		}
		if hasParam {
			p.b.EmitLiteral(bytecode.OpInitBinding, paramLit, -1) // exception value is pre-pushed by the VM on catch entry
		} else {
			p.b.Emit(bytecode.OpPop, -1)
		}
		if err := p.block(); err != nil {
			return err
		}
		p.scope = outer
	}

	finallyIP := bytecode.NoIP
	if p.isKeyword("finally") {
		finallyIP = p.b.Offset()
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.block(); err != nil {
			return err
		}
	}
	p.b.LeaveTry(hIdx, catchIP, finallyIP)
	return p.b.PatchJump(skipHandlers)
}
