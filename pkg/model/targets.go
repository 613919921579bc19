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

package model

import (
	"encoding/binary"
	"hash/fnv"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"log/slog"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/pkg/source"
)

// BuildTargets expands the assembled packages into the typed target DAG:
// one object target per compiled source, an archive per package with
// library sources, a shared library where declared, and an executable per
// program unit. Compile edges follow module uses; link edges carry the
// inputs of aggregate targets. Expected digests are computed bottom-up at
// the end.
func (m *BuildModel) BuildTargets(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := m.validatePackageGraph(); err != nil {
		return err
	}

	b := &targetBuilder{
		model:     m,
		logger:    logger,
		objects:   make(map[[2]int]TargetID),
		archives:  make([]TargetID, len(m.Packages)),
		providers: make([]map[string]TargetID, len(m.Packages)),
		byPath:    make(map[string][2]int),
		fileDigs:  make(map[string]uint64),
	}
	for i := range b.archives {
		b.archives[i] = InvalidTarget
	}

	b.buildObjects()
	if err := b.addCompileEdges(); err != nil {
		return err
	}
	b.buildArchives()
	b.buildExecutables()
	b.computeExpectedDigests()

	logger.Info("targets.built", "targets", len(m.Targets))
	return nil
}

type targetBuilder struct {
	model  *BuildModel
	logger *slog.Logger

	// objects maps {package, source} handles to object targets.
	objects map[[2]int]TargetID

	// archives maps package index to its archive target.
	archives []TargetID

	// providers maps module name to providing object target, per package.
	providers []map[string]TargetID

	// byPath indexes parsed sources by canonical path for include
	// resolution.
	byPath map[string][2]int

	// fileDigs caches digests of include files outside the parsed set.
	fileDigs map[string]uint64
}

// buildable reports whether a source compiles in this invocation.
func (m *BuildModel) buildable(pkgIndex int, sf *source.SourceFile) bool {
	switch sf.Scope {
	case source.ScopeLib:
		return true
	case source.ScopeApp, source.ScopeExample:
		return pkgIndex == 0
	case source.ScopeTest:
		return pkgIndex == 0 && m.IncludeTests
	}
	return false
}

// buildObjects emits one object target per compiled source and records the
// module provider map. Headers are indexed but produce no target.
func (b *targetBuilder) buildObjects() {
	m := b.model
	for pi := range m.Packages {
		pkg := &m.Packages[pi]
		b.providers[pi] = make(map[string]TargetID)
		for si := range pkg.Sources {
			sf := &pkg.Sources[si]
			b.byPath[sf.Path] = [2]int{pi, si}
			if !m.buildable(pi, sf) || sf.UnitKind == source.UnitCHeader {
				continue
			}

			var kind TargetKind
			var flags string
			switch sf.UnitKind {
			case source.UnitCSource:
				kind = TargetCObject
				flags = m.cObjectFlags(pi, TargetCObject)
			case source.UnitCppSource:
				kind = TargetCppObject
				flags = m.cObjectFlags(pi, TargetCppObject)
			default:
				kind = TargetFortranObject
				flags = m.fortranObjectFlags(pi)
			}

			id := m.addTarget(Target{
				Kind:         kind,
				OutputFile:   b.objectOutput(pkg, sf),
				Package:      pkg.Name,
				PackageIndex: pi,
				SourceIndex:  si,
				DisplayName:  pkg.Name + "." + sf.Basename(),
				CompileFlags: flags,
			})
			b.objects[[2]int{pi, si}] = id
			for _, mod := range sf.ProvidedModules {
				if _, taken := b.providers[pi][mod]; !taken {
					b.providers[pi][mod] = id
				}
			}
		}
	}
}

// objectOutput derives build_prefix/<package>/<relative>.o.
func (b *targetBuilder) objectOutput(pkg *Package, sf *source.SourceFile) string {
	rel, err := filepath.Rel(pkg.Dir, sf.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(sf.Path)
	}
	return filepath.Join(b.model.packageOutputDir(pkg.Name), rel+".o")
}

// addCompileEdges resolves every used module to its providing object:
// same package first, then the other packages in resolution order.
// External modules are elided; a module with no provider is fatal.
func (b *targetBuilder) addCompileEdges() error {
	m := b.model
	for key, id := range b.objects {
		pi, si := key[0], key[1]
		sf := &m.Packages[pi].Sources[si]
		target := &m.Targets[id]

		seen := make(map[TargetID]bool)
		for _, mod := range sf.UsedModules {
			if m.IsExternalModule(mod) {
				continue
			}
			provider, ok := b.resolveModule(pi, mod)
			if !ok {
				return fberrors.NewMissingModuleError(mod, sf.Path)
			}
			if provider == id || seen[provider] {
				// A file may use a module it also defines.
				continue
			}
			seen[provider] = true
			target.Dependencies = append(target.Dependencies, Edge{Target: provider, Kind: EdgeCompile})
		}
		sort.Slice(target.Dependencies, func(i, j int) bool {
			return m.Targets[target.Dependencies[i].Target].OutputFile < m.Targets[target.Dependencies[j].Target].OutputFile
		})
	}
	return nil
}

// resolveModule finds the object providing mod, searching the consumer's
// package before the rest of the model.
func (b *targetBuilder) resolveModule(pkgIndex int, mod string) (TargetID, bool) {
	if id, ok := b.providers[pkgIndex][mod]; ok {
		return id, true
	}
	for pi := range b.model.Packages {
		if pi == pkgIndex {
			continue
		}
		if id, ok := b.providers[pi][mod]; ok {
			return id, true
		}
	}
	return InvalidTarget, false
}

// buildArchives emits one static archive per package with library objects,
// plus a shared library where the manifest declares one.
func (b *targetBuilder) buildArchives() {
	m := b.model
	for pi := range m.Packages {
		pkg := &m.Packages[pi]
		objs := b.libObjects(pi)
		if len(objs) == 0 {
			continue
		}

		edges := make([]Edge, 0, len(objs))
		outputs := make([]string, 0, len(objs))
		for _, obj := range objs {
			edges = append(edges, Edge{Target: obj, Kind: EdgeLink})
			outputs = append(outputs, m.Targets[obj].OutputFile)
		}

		b.archives[pi] = m.addTarget(Target{
			Kind:         TargetArchive,
			OutputFile:   filepath.Join(m.packageOutputDir(pkg.Name), "lib"+pkg.Name+".a"),
			Package:      pkg.Name,
			PackageIndex: pi,
			SourceIndex:  -1,
			DisplayName:  pkg.Name + ".lib" + pkg.Name,
			Dependencies: edges,
			LinkObjects:  outputs,
		})

		if pkg.SharedLib {
			out, importLib := sharedLibOutput(m.packageOutputDir(pkg.Name), pkg.Name)
			m.addTarget(Target{
				Kind:         TargetSharedLib,
				OutputFile:   out,
				ImportLib:    importLib,
				Package:      pkg.Name,
				PackageIndex: pi,
				SourceIndex:  -1,
				DisplayName:  pkg.Name + ".shared",
				Dependencies: append([]Edge{}, edges...),
				LinkObjects:  append([]string{}, outputs...),
				LinkFlags:    m.LinkFlags,
			})
		}
	}
}

// libObjects returns the package's library object targets in stable
// output-file order.
func (b *targetBuilder) libObjects(pkgIndex int) []TargetID {
	m := b.model
	var objs []TargetID
	for si := range m.Packages[pkgIndex].Sources {
		if m.Packages[pkgIndex].Sources[si].Scope != source.ScopeLib {
			continue
		}
		if id, ok := b.objects[[2]int{pkgIndex, si}]; ok {
			objs = append(objs, id)
		}
	}
	sort.Slice(objs, func(i, j int) bool {
		return m.Targets[objs[i]].OutputFile < m.Targets[objs[j]].OutputFile
	})
	return objs
}

// buildExecutables emits one executable per program unit of the root
// package. The link inputs are the program's object, its non-program
// sibling objects from the same source scope, and the archive closure in
// link order.
func (b *targetBuilder) buildExecutables() {
	m := b.model
	linkOrder := m.packageLinkOrder(0)

	var archiveInputs []string
	var archiveEdges []Edge
	for _, pi := range linkOrder {
		if b.archives[pi] == InvalidTarget {
			continue
		}
		archiveEdges = append(archiveEdges, Edge{Target: b.archives[pi], Kind: EdgeLink})
		archiveInputs = append(archiveInputs, m.Targets[b.archives[pi]].OutputFile)
	}

	root := &m.Packages[0]
	for si := range root.Sources {
		sf := &root.Sources[si]
		if sf.ExeName == "" || !m.buildable(0, sf) {
			continue
		}
		objID, ok := b.objects[[2]int{0, si}]
		if !ok {
			continue
		}

		edges := []Edge{
			{Target: objID, Kind: EdgeCompile},
			{Target: objID, Kind: EdgeLink},
		}
		inputs := []string{m.Targets[objID].OutputFile}
		for _, sibling := range b.scopeSiblings(0, si, sf.Scope) {
			edges = append(edges, Edge{Target: sibling, Kind: EdgeLink})
			inputs = append(inputs, m.Targets[sibling].OutputFile)
		}
		edges = append(edges, archiveEdges...)
		inputs = append(inputs, archiveInputs...)

		nonFortranMain := sf.UnitKind == source.UnitCSource || sf.UnitKind == source.UnitCppSource
		m.addTarget(Target{
			Kind:           TargetExecutable,
			OutputFile:     filepath.Join(m.BuildPrefix, sf.Scope.String(), root.Name, sf.ExeName+exeSuffix()),
			Package:        root.Name,
			PackageIndex:   0,
			SourceIndex:    si,
			DisplayName:    root.Name + "." + sf.ExeName,
			Dependencies:   edges,
			LinkObjects:    inputs,
			LinkFlags:      m.executableLinkFlags(sf, linkOrder, nonFortranMain),
			NonFortranMain: nonFortranMain,
		})
	}
}

// scopeSiblings returns the non-program object targets sharing the given
// source scope, in stable output order. They become link inputs of every
// executable in that scope.
func (b *targetBuilder) scopeSiblings(pkgIndex, selfIndex int, scope source.Scope) []TargetID {
	m := b.model
	var objs []TargetID
	for si := range m.Packages[pkgIndex].Sources {
		sf := &m.Packages[pkgIndex].Sources[si]
		if si == selfIndex || sf.Scope != scope || sf.ExeName != "" {
			continue
		}
		if id, ok := b.objects[[2]int{pkgIndex, si}]; ok {
			objs = append(objs, id)
		}
	}
	sort.Slice(objs, func(i, j int) bool {
		return m.Targets[objs[i]].OutputFile < m.Targets[objs[j]].OutputFile
	})
	return objs
}

// exeSuffix is ".exe" on the Windows family, empty elsewhere.
func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// sharedLibOutput names the shared library, with an import-library sibling
// on the Windows family.
func sharedLibOutput(dir, pkg string) (out, importLib string) {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(dir, pkg+".dll"), filepath.Join(dir, "lib"+pkg+".dll.a")
	case "darwin":
		return filepath.Join(dir, "lib"+pkg+".dylib"), ""
	default:
		return filepath.Join(dir, "lib"+pkg+".so"), ""
	}
}

// computeExpectedDigests fills DigestExpected bottom-up: the source
// fingerprint, the transitively resolved include fingerprints, every
// dependency's expected digest (sorted by output file), and the flag
// string. Cyclic module graphs are tolerated here; the scheduler turns
// them into a fatal error before any skip decision matters.
func (b *targetBuilder) computeExpectedDigests() {
	m := b.model
	const (
		white = iota
		grey
		black
	)
	state := make([]int, len(m.Targets))

	var compute func(id TargetID) uint64
	compute = func(id TargetID) uint64 {
		t := &m.Targets[id]
		switch state[id] {
		case black:
			return t.DigestExpected
		case grey:
			return 0
		}
		state[id] = grey

		deps := make([]Edge, len(t.Dependencies))
		copy(deps, t.Dependencies)
		sort.Slice(deps, func(i, j int) bool {
			return m.Targets[deps[i].Target].OutputFile < m.Targets[deps[j].Target].OutputFile
		})

		h := fnv.New64a()
		var word [8]byte
		writeWord := func(v uint64) {
			binary.LittleEndian.PutUint64(word[:], v)
			_, _ = h.Write(word[:])
		}

		if t.SourceIndex >= 0 {
			sf := &m.Packages[t.PackageIndex].Sources[t.SourceIndex]
			writeWord(sf.Digest)
			for _, d := range b.includeDigests(t.PackageIndex, sf) {
				writeWord(d)
			}
		}
		last := InvalidTarget
		for _, dep := range deps {
			depDigest := compute(dep.Target)
			if dep.Target == last {
				continue
			}
			last = dep.Target
			writeWord(depDigest)
		}
		_, _ = h.Write([]byte(t.CompileFlags))
		_, _ = h.Write([]byte(t.LinkFlags))

		t.DigestExpected = h.Sum64()
		state[id] = black
		return t.DigestExpected
	}

	for i := range m.Targets {
		compute(m.Targets[i].ID)
	}
}

// includeDigests resolves a source's quoted includes to files and returns
// their fingerprints in sorted order, following includes of includes.
// Unresolvable names are logged and ignored, matching the compiler's own
// search leniency.
func (b *targetBuilder) includeDigests(pkgIndex int, sf *source.SourceFile) []uint64 {
	seen := make(map[string]bool)
	var digests []uint64
	b.collectIncludeDigests(pkgIndex, sf, seen, &digests)
	sort.Slice(digests, func(i, j int) bool { return digests[i] < digests[j] })
	return digests
}

func (b *targetBuilder) collectIncludeDigests(pkgIndex int, sf *source.SourceFile, seen map[string]bool, digests *[]uint64) {
	for _, name := range sf.IncludeDeps {
		path, ok := b.resolveInclude(pkgIndex, sf.Path, name)
		if !ok {
			b.logger.Debug("targets.include.unresolved", "from", sf.Path, "include", name)
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		if ref, parsed := b.byPath[path]; parsed {
			header := &b.model.Packages[ref[0]].Sources[ref[1]]
			*digests = append(*digests, header.Digest)
			b.collectIncludeDigests(ref[0], header, seen, digests)
			continue
		}
		digest, ok := b.fileDigs[path]
		if !ok {
			var err error
			digest, err = source.DigestFile(path)
			if err != nil {
				b.logger.Debug("targets.include.unreadable", "path", path, "err", err)
				continue
			}
			b.fileDigs[path] = digest
		}
		*digests = append(*digests, digest)
	}
}

// resolveInclude searches the including file's directory, the package's
// include directories, and the model-wide include directories.
func (b *targetBuilder) resolveInclude(pkgIndex int, fromPath, name string) (string, bool) {
	m := b.model
	var dirs []string
	dirs = append(dirs, filepath.Dir(fromPath))
	dirs = append(dirs, m.Packages[pkgIndex].IncludeDirs...)
	if pre, ok := m.Packages[pkgIndex].Preprocess["cpp"]; ok {
		for _, dir := range pre.Directories {
			dirs = append(dirs, filepath.Join(m.Packages[pkgIndex].Dir, dir))
		}
	}
	dirs = append(dirs, m.IncludeDirs...)

	for _, dir := range dirs {
		candidate, err := source.Canonical(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if _, parsed := b.byPath[candidate]; parsed {
			return candidate, true
		}
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
