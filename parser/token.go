// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parser implements a recursive-descent lexer and parser that
// emits bytecode directly during the parse walk, with no AST
// materialization and patch-backs for forward branches (spec.md section
// 4.5, "Parser").
package parser

// TokenKind classifies lexed tokens.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokNumber
	TokString
	TokTemplateString
	TokPunct
	TokRegex
)

// Token is one lexical unit, carrying enough of the source position to
// drive the parser's line-info emission.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
	Col   int
	Pos   int // byte offset of the token's first byte in the source
}

var keywords = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"break": true, "continue": true, "true": true, "false": true, "null": true,
	"undefined": true, "new": true, "delete": true, "typeof": true, "instanceof": true,
	"in": true, "of": true, "this": true, "throw": true, "try": true, "catch": true,
	"finally": true, "switch": true, "case": true, "default": true, "class": true,
	"extends": true, "super": true, "yield": true, "async": true, "await": true,
	"void": true, "static": true, "get": true, "set": true,
}
