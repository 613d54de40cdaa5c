// Package testutil provides helpers for tests that enforce import boundaries
// between the layers of the repository.
package testutil

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// ImportGraph maps a package path to its direct imports.
type ImportGraph map[string][]string

// Boundary forbids packages matching From from importing any path under
// Forbidden. Packages matching Except are exempt. An empty From applies the
// rule to every package in the graph.
type Boundary struct {
	Name      string
	From      []string
	Except    []string
	Forbidden []string
}

var loadPackages = packages.Load

// LoadImportGraph loads patterns, test variants included, and records the
// direct imports of every package.
func LoadImportGraph(t testing.TB, patterns ...string) ImportGraph {
	t.Helper()
	graph, err := loadImportGraph(patterns...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	return graph
}

func loadImportGraph(patterns ...string) (ImportGraph, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := loadPackages(cfg, patterns...)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages match %s", strings.Join(patterns, " "))
	}
	graph := make(ImportGraph, len(pkgs))
	for _, pkg := range pkgs {
		for path := range pkg.Imports {
			graph[pkg.PkgPath] = appendUnique(graph[pkg.PkgPath], path)
		}
		if _, ok := graph[pkg.PkgPath]; !ok {
			graph[pkg.PkgPath] = nil
		}
	}
	return graph, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// HasPathPrefix reports whether path is prefix or lies beneath it.
func HasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// Violations lists "pkg -> import" edges breaking b, sorted.
func (g ImportGraph) Violations(b Boundary) []string {
	var out []string
	for pkg, imports := range g {
		if len(b.From) > 0 && !matchesAny(pkg, b.From) {
			continue
		}
		if matchesAny(pkg, b.Except) {
			continue
		}
		for _, imp := range imports {
			if matchesAny(imp, b.Forbidden) {
				out = append(out, pkg+" -> "+imp)
			}
		}
	}
	sort.Strings(out)
	return out
}

type errorReporter interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertBoundaries reports every edge of g that breaks one of boundaries.
func AssertBoundaries(t errorReporter, g ImportGraph, boundaries ...Boundary) {
	t.Helper()
	for _, b := range boundaries {
		for _, v := range g.Violations(b) {
			t.Errorf("%s: forbidden import %s", b.Name, v)
		}
	}
}
