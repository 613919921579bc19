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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"
)

// ParseError reports an unrecognizable construct with its position.
type ParseError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// Parser extracts unit kind, provided/used modules, include edges, and the
// content digest from source files. It is safe for concurrent use for
// Fortran sources; C/C++ parsing goes through per-call Tree-sitter parsers.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile reads and parses one source file, dispatching on extension.
// C and C++ files (.c/.h/.cpp/.hpp) are parsed with Tree-sitter; everything
// else is treated as Fortran.
func (p *Parser) ParseFile(path string) (*SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c":
		return p.parseC(path, data, UnitCSource)
	case ".h":
		return p.parseC(path, data, UnitCHeader)
	case ".cpp":
		return p.parseC(path, data, UnitCppSource)
	case ".hpp":
		return p.parseC(path, data, UnitCHeader)
	default:
		return p.parseFortran(path, data)
	}
}

// fortranScan accumulates parse state for one Fortran file.
type fortranScan struct {
	path     string
	kind     UnitKind
	exeName  string
	provided map[string]bool
	used     map[string]bool
	includes map[string]bool
	parents  []string

	// containerDepth is 1 while inside a module/submodule/program block.
	// Statements seen at depth 0 that are not declarations mark the file
	// as a bare subprogram.
	containerDepth int
}

// parseFortran runs the declaration-level line scanner over a Fortran file.
//
// Comments after '!' are stripped, and line continuation is handled only for
// 'use ..., only:' statements; other continued statements are read line by
// line. Fixed-form sources go through the same scanner. All identifiers are
// compared lowercase.
func (p *Parser) parseFortran(path string, data []byte) (*SourceFile, error) {
	scan := &fortranScan{
		path:     path,
		kind:     UnitUnknown,
		provided: make(map[string]bool),
		used:     make(map[string]bool),
		includes: make(map[string]bool),
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		stmt := stripComment(lines[i])
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}

		// Continuation is only honored for use ... only: lines.
		lower := strings.ToLower(trimmed)
		if isUseStatement(lower) && strings.Contains(lower, "only") {
			for strings.HasSuffix(trimmed, "&") && i+1 < len(lines) {
				i++
				next := strings.TrimSpace(stripComment(lines[i]))
				next = strings.TrimPrefix(next, "&")
				trimmed = strings.TrimSuffix(trimmed, "&") + " " + strings.TrimSpace(next)
			}
			lower = strings.ToLower(trimmed)
		}

		if err := p.scanStatement(scan, trimmed, lower, i+1); err != nil {
			return nil, err
		}
	}

	sf := &SourceFile{
		Path:            path,
		UnitKind:        scan.kind,
		ExeName:         scan.exeName,
		ProvidedModules: sortedSet(scan.provided),
		UsedModules:     sortedSet(scan.used),
		ParentModules:   scan.parents,
		IncludeDeps:     sortedSet(scan.includes),
		Digest:          Digest(data),
	}
	if sf.UnitKind == UnitUnknown {
		// A file with nothing but use/include lines still compiles as a
		// bare subprogram.
		sf.UnitKind = UnitSubprogram
	}
	p.logger.Debug("parse.fortran",
		"path", path,
		"kind", sf.UnitKind.String(),
		"provides", len(sf.ProvidedModules),
		"uses", len(sf.UsedModules),
	)
	return sf, nil
}

// scanStatement classifies one comment-stripped, continuation-joined
// statement. trimmed preserves the original case (needed for include file
// names); lower is its lowercase twin used for keyword analysis.
func (p *Parser) scanStatement(scan *fortranScan, trimmed, lower string, lineNo int) error {
	tokens := strings.Fields(lower)
	if len(tokens) == 0 {
		return nil
	}

	switch {
	case tokens[0] == "module" && len(tokens) >= 2 && !isProcedureKeyword(tokens[1]):
		name := tokens[1]
		if !isValidIdentifier(name) {
			return &ParseError{Path: scan.path, Line: lineNo, Col: len("module ") + 1,
				Msg: fmt.Sprintf("invalid module name %q", name)}
		}
		scan.provided[name] = true
		if scan.kind == UnitUnknown {
			scan.kind = UnitModule
		}
		scan.containerDepth = 1
		return nil

	case tokens[0] == "module" && len(tokens) == 1:
		return &ParseError{Path: scan.path, Line: lineNo, Col: len("module") + 1,
			Msg: "expected module name"}

	case tokens[0] == "submodule":
		return p.scanSubmodule(scan, lower, lineNo)

	case tokens[0] == "program":
		if len(tokens) < 2 || !isValidIdentifier(tokens[1]) {
			return &ParseError{Path: scan.path, Line: lineNo, Col: len("program") + 1,
				Msg: "expected program name"}
		}
		scan.kind = UnitProgram
		scan.exeName = tokens[1]
		scan.containerDepth = 1
		return nil

	case isUseStatement(lower):
		name, intrinsic, ok := parseUseStatement(lower)
		if !ok {
			return &ParseError{Path: scan.path, Line: lineNo, Col: len("use") + 1,
				Msg: "expected module name after 'use'"}
		}
		if !intrinsic && !IsIntrinsicModule(name) {
			scan.used[name] = true
		}
		return nil

	case strings.HasPrefix(lower, "include") || strings.HasPrefix(trimmed, "#include"):
		if file, ok := quotedArgument(trimmed); ok {
			scan.includes[file] = true
		}
		return nil

	case isEndStatement(tokens):
		if endsContainer(tokens) {
			scan.containerDepth = 0
		}
		return nil

	default:
		// Anything else at the top level is bare executable content.
		if scan.containerDepth == 0 {
			switch scan.kind {
			case UnitProgram, UnitSubmodule:
			default:
				scan.kind = UnitSubprogram
			}
		}
		return nil
	}
}

// scanSubmodule parses 'submodule ( parent [: grandparent] ) name'.
// The ancestor chain is recorded, and every ancestor becomes a used module
// so the compile edges reach both the root module and intermediate
// submodules.
func (p *Parser) scanSubmodule(scan *fortranScan, lower string, lineNo int) error {
	open := strings.Index(lower, "(")
	closing := strings.Index(lower, ")")
	if open < 0 || closing < open {
		return &ParseError{Path: scan.path, Line: lineNo, Col: len("submodule") + 1,
			Msg: "expected parenthesized parent list after 'submodule'"}
	}

	var parents []string
	for _, part := range strings.Split(lower[open+1:closing], ":") {
		parent := strings.TrimSpace(part)
		if !isValidIdentifier(parent) {
			return &ParseError{Path: scan.path, Line: lineNo, Col: open + 2,
				Msg: fmt.Sprintf("invalid submodule parent %q", parent)}
		}
		parents = append(parents, parent)
	}

	name := identifierPrefix(strings.TrimSpace(lower[closing+1:]))
	if name == "" {
		return &ParseError{Path: scan.path, Line: lineNo, Col: closing + 2,
			Msg: "expected submodule name"}
	}

	scan.provided[name] = true
	scan.parents = append(scan.parents, parents...)
	for _, parent := range parents {
		scan.used[parent] = true
	}
	if scan.kind == UnitUnknown || scan.kind == UnitModule {
		scan.kind = UnitSubmodule
	}
	scan.containerDepth = 1
	return nil
}

// stripComment removes a trailing '!' comment. Exclamation marks inside
// character literals are honored for the common quote forms.
func stripComment(line string) string {
	inSingle, inDouble := false, false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '!':
			if !inSingle && !inDouble {
				return line[:i]
			}
		}
	}
	return line
}

// isUseStatement reports whether the lowercase statement starts a use line:
// the keyword 'use' followed by a separator rather than a longer identifier.
func isUseStatement(lower string) bool {
	if !strings.HasPrefix(lower, "use") {
		return false
	}
	if len(lower) == len("use") {
		return false
	}
	switch lower[len("use")] {
	case ' ', '\t', ',', ':':
		return true
	}
	return false
}

// parseUseStatement extracts the module name and the intrinsic qualifier
// from a lowercase use statement.
//
// Handled forms:
//
//	use m
//	use m, only: a, b
//	use :: m
//	use, intrinsic :: iso_fortran_env
//	use, non_intrinsic :: m
func parseUseStatement(lower string) (name string, intrinsic bool, ok bool) {
	rest := strings.TrimSpace(lower[len("use"):])
	switch {
	case strings.HasPrefix(rest, ","):
		idx := strings.Index(rest, "::")
		if idx < 0 {
			return "", false, false
		}
		for _, qual := range strings.Split(rest[1:idx], ",") {
			if strings.TrimSpace(qual) == "intrinsic" {
				intrinsic = true
			}
		}
		rest = strings.TrimSpace(rest[idx+2:])
	case strings.HasPrefix(rest, "::"):
		rest = strings.TrimSpace(rest[2:])
	}
	name = identifierPrefix(rest)
	return name, intrinsic, name != ""
}

// quotedArgument extracts the first single- or double-quoted string from an
// include line, preserving its case.
func quotedArgument(stmt string) (string, bool) {
	for _, quote := range []byte{'"', '\''} {
		start := strings.IndexByte(stmt, quote)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(stmt[start+1:], quote)
		if end < 0 {
			return "", false
		}
		return stmt[start+1 : start+1+end], true
	}
	return "", false
}

// isProcedureKeyword filters 'module procedure' (and separate module
// procedure bodies in submodules) out of module declarations.
func isProcedureKeyword(token string) bool {
	switch token {
	case "procedure", "function", "subroutine", "pure", "elemental", "impure", "recursive":
		return true
	}
	return false
}

// isEndStatement recognizes end lines, both spaced and concatenated forms.
func isEndStatement(tokens []string) bool {
	switch tokens[0] {
	case "end", "endmodule", "endsubmodule", "endprogram",
		"endsubroutine", "endfunction", "endinterface", "endtype", "endblock":
		return true
	}
	return false
}

// endsContainer reports whether an end statement closes a module, submodule,
// or program block. Bare 'end' is deliberately not treated as a container
// end; contained procedures commonly close with it.
func endsContainer(tokens []string) bool {
	switch tokens[0] {
	case "endmodule", "endsubmodule", "endprogram":
		return true
	case "end":
		if len(tokens) < 2 {
			return false
		}
		switch tokens[1] {
		case "module", "submodule", "program":
			return true
		}
	}
	return false
}

// isValidIdentifier reports whether name is a Fortran identifier: a letter
// followed by letters, digits, and underscores.
func isValidIdentifier(name string) bool {
	return name != "" && identifierPrefix(name) == name
}

// identifierPrefix returns the leading identifier of s, or "" when s does
// not start with a letter.
func identifierPrefix(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isTail := isLetter || c == '_' || (c >= '0' && c <= '9')
		if end == 0 && !isLetter {
			return ""
		}
		if !isTail {
			break
		}
		end++
	}
	return s[:end]
}
