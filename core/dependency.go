// Package core defines the dependency model and the retriever boundary
// the resolver calls into.
//
// Network and git operations live behind the Retriever interface;
// everything in this package and below is pure data and algorithm.
package core

import (
	"fmt"
	"strings"

	"github.com/nsoperations/depforge/version"
)

// DependencyKind discriminates how a dependency is sourced.
type DependencyKind int

const (
	// KindGit is a module fetched from an arbitrary git URL.
	KindGit DependencyKind = iota
	// KindGitHub is a module hosted on a GitHub instance, identified by
	// owner and repository.
	KindGitHub
	// KindBinary is a prebuilt module described by a definition URL.
	KindBinary
)

func (k DependencyKind) String() string {
	switch k {
	case KindGit:
		return "git"
	case KindGitHub:
		return "github"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Dependency identifies one module in the dependency graph.
//
// It is a comparable value: two dependencies are the same graph node iff
// their kind and identity fields are equal, so Dependency is usable as a
// map key throughout the resolver.
type Dependency struct {
	Kind DependencyKind

	// URL is set for Git and Binary dependencies.
	URL string

	// Server, Owner, and Repo are set for GitHub dependencies. An empty
	// Server means github.com.
	Server string
	Owner  string
	Repo   string
}

// Git constructs a dependency sourced from a git URL.
func Git(url string) Dependency {
	return Dependency{Kind: KindGit, URL: url}
}

// GitHub constructs a dependency hosted on github.com.
func GitHub(owner, repo string) Dependency {
	return Dependency{Kind: KindGitHub, Owner: owner, Repo: repo}
}

// GitHubEnterprise constructs a dependency hosted on a GitHub Enterprise
// server.
func GitHubEnterprise(server, owner, repo string) Dependency {
	return Dependency{Kind: KindGitHub, Server: server, Owner: owner, Repo: repo}
}

// Binary constructs a dependency on a prebuilt module definition.
func Binary(url string) Dependency {
	return Dependency{Kind: KindBinary, URL: url}
}

// Name returns the short name used in working-directory layout and in
// user-facing messages: the repository name for GitHub dependencies, and
// the last path component (minus a .git or .json suffix) otherwise.
func (d Dependency) Name() string {
	switch d.Kind {
	case KindGitHub:
		return d.Repo
	case KindBinary:
		return strings.TrimSuffix(lastPathComponent(d.URL), ".json")
	default:
		return strings.TrimSuffix(lastPathComponent(d.URL), ".git")
	}
}

func lastPathComponent(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func (d Dependency) String() string {
	switch d.Kind {
	case KindGitHub:
		if d.Server != "" {
			return fmt.Sprintf("github %q", d.Server+"/"+d.Owner+"/"+d.Repo)
		}
		return fmt.Sprintf("github %q", d.Owner+"/"+d.Repo)
	case KindBinary:
		return fmt.Sprintf("binary %q", d.URL)
	default:
		return fmt.Sprintf("git %q", d.URL)
	}
}

// Requirement couples a dependency with the constraint one dependent
// places on it.
type Requirement struct {
	Dependency Dependency
	Specifier  version.Specifier
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s %s", r.Dependency, r.Specifier)
}
