// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tsc "github.com/smacker/go-tree-sitter/c"
	tscpp "github.com/smacker/go-tree-sitter/cpp"
)

// =============================================================================
// C / C++ PARSER
// =============================================================================
//
// C and C++ sources only contribute include edges to the build graph.
// Quoted includes ('#include "defs.h"') are tracked; angle-bracket includes
// name system headers and are ignored.

// parseC extracts quoted include edges from a C or C++ file using
// Tree-sitter. Tree-sitter is error-tolerant, so partially invalid sources
// still yield their include set; if the parse itself fails, a line scanner
// takes over.
func (p *Parser) parseC(path string, data []byte, kind UnitKind) (*SourceFile, error) {
	sf := &SourceFile{
		Path:     path,
		UnitKind: kind,
		Digest:   Digest(data),
	}

	includes := make(map[string]bool)
	if err := collectQuotedIncludes(data, kind, includes); err != nil {
		p.logger.Warn("parse.c.treesitter_failed", "path", path, "err", err)
		scanQuotedIncludes(data, includes)
	}
	sf.IncludeDeps = sortedSet(includes)

	p.logger.Debug("parse.c", "path", path, "kind", kind.String(), "includes", len(sf.IncludeDeps))
	return sf, nil
}

// collectQuotedIncludes walks the Tree-sitter AST for preproc_include nodes.
func collectQuotedIncludes(data []byte, kind UnitKind, includes map[string]bool) error {
	parser := sitter.NewParser()
	if kind == UnitCppSource {
		parser.SetLanguage(tscpp.GetLanguage())
	} else {
		parser.SetLanguage(tsc.GetLanguage())
	}

	tree, err := parser.ParseCtx(context.Background(), nil, data)
	if err != nil {
		return err
	}
	defer tree.Close()

	walkIncludes(tree.RootNode(), data, includes)
	return nil
}

// walkIncludes recurses over the AST collecting quoted include paths.
func walkIncludes(node *sitter.Node, data []byte, includes map[string]bool) {
	if node == nil {
		return
	}
	if node.Type() == "preproc_include" {
		pathNode := node.ChildByFieldName("path")
		// string_literal is the quoted form; system_lib_string is <...>.
		if pathNode != nil && pathNode.Type() == "string_literal" {
			name := strings.Trim(pathNode.Content(data), `"`)
			if name != "" {
				includes[name] = true
			}
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkIncludes(node.Child(i), data, includes)
	}
}

// scanQuotedIncludes is the fallback include scanner used when Tree-sitter
// cannot parse a file at all.
func scanQuotedIncludes(data []byte, includes map[string]bool) {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if !strings.HasPrefix(rest, "include") {
			continue
		}
		if name, ok := quotedArgument(rest); ok {
			includes[name] = true
		}
	}
}
