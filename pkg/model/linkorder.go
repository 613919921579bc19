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
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
)

// validatePackageGraph rejects cyclic package dependencies before any
// link-order flattening. The topological sort reports every strongly
// connected component, so the error names all cycle members at once.
func (m *BuildModel) validatePackageGraph() error {
	g := simple.NewDirectedGraph()
	for i := range m.Packages {
		g.AddNode(simple.Node(i))
	}
	for i := range m.Packages {
		for _, dep := range m.Packages[i].Dependencies {
			j := m.PackageIndex(dep)
			if j < 0 || j == i {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		unorderable, ok := err.(topo.Unorderable)
		if !ok {
			return fberrors.NewInternalError("Package graph sort failed", err.Error(), err)
		}
		var members []string
		for _, component := range unorderable {
			for _, node := range component {
				members = append(members, m.Packages[node.ID()].Name)
			}
		}
		return fberrors.NewCycleError("Package dependency cycle", members)
	}
	return nil
}

// packageLinkOrder flattens the dependency closure of the package at root
// by reverse post-order depth-first traversal: the root package comes
// first, its dependencies follow, so earlier entries appear earlier on the
// linker command line. The dependencies of one package are visited in
// first-encounter order (the manifest's sorted dependency names); because
// the post-order is reversed, a later sibling precedes an earlier one in
// the result.
//
// Callers must have run validatePackageGraph; the traversal assumes an
// acyclic graph.
func (m *BuildModel) packageLinkOrder(root int) []int {
	visited := make([]bool, len(m.Packages))
	var postorder []int

	var visit func(i int)
	visit = func(i int) {
		visited[i] = true
		for _, dep := range m.Packages[i].Dependencies {
			j := m.PackageIndex(dep)
			if j >= 0 && !visited[j] {
				visit(j)
			}
		}
		postorder = append(postorder, i)
	}
	visit(root)

	order := make([]int, 0, len(postorder))
	for i := len(postorder) - 1; i >= 0; i-- {
		order = append(order, postorder[i])
	}
	return order
}
