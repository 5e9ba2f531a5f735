// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build jjs_tsdebug

// Package tsdebug is a development-time aid, not part of the engine's
// runtime parser: it parses a source file with the tree-sitter
// JavaScript grammar and dumps the resulting AST, so a change to
// parser/lex's hand-written tokenizer can be spot-checked against an
// independent grammar's view of the same source - the engine's actual
// parser never materializes an AST (bytecode is emitted directly, one
// token of lookahead at a time), so this exists purely to catch lexer
// edge cases (automatic semicolon insertion, template literals,
// regex-vs-divide disambiguation) during development.
//
// Built only with -tags jjs_tsdebug; it is not linked into jjsrun or
// any other normal build.
package tsdebug

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// parserPool holds parsed-but-idle *sitter.Parser instances, the same
// "tree-sitter parsers are not safe for concurrent reuse, so pool them"
// shape parser_treesitter.go's per-language sync.Pool uses - there is
// only one grammar here, so one pool suffices.
var parserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(javascript.GetLanguage())
		return p
	},
}

// Dump parses src as JavaScript and renders its tree-sitter parse tree
// as an indented s-expression-like listing, one node per line with its
// grammar type and source span.
func Dump(src []byte) (string, error) {
	parserObj := parserPool.Get()
	p, ok := parserObj.(*sitter.Parser)
	if !ok {
		return "", fmt.Errorf("tsdebug: invalid parser type from pool")
	}
	defer parserPool.Put(p)

	tree, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return "", fmt.Errorf("tsdebug: parse: %w", err)
	}

	var b strings.Builder
	dumpNode(&b, tree.RootNode(), 0)
	return b.String(), nil
}

func dumpNode(b *strings.Builder, n *sitter.Node, depth int) {
	if n == nil {
		return
	}
	fmt.Fprintf(b, "%s%s [%d-%d]\n", strings.Repeat("  ", depth), n.Type(), n.StartByte(), n.EndByte())
	for i := 0; i < int(n.ChildCount()); i++ {
		dumpNode(b, n.Child(i), depth+1)
	}
}
