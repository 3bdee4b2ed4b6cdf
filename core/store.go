package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nsoperations/depforge/version"
)

// Store is a Retriever backed by a JSON index on disk instead of live
// git and network operations. It serves offline resolution and
// diagnostic reproduction of resolver behavior from a captured index.
//
// Index layout:
//
//	{
//	  "root": [{"dependency": "github:acme/widgets", "specifier": ">= 1.0.0"}],
//	  "dependencies": {
//	    "github:acme/widgets": {
//	      "versions": {
//	        "v1.0.0": [{"dependency": "git:https://example.com/base.git", "specifier": "~> 2.0.0"}]
//	      },
//	      "refs": {"main": "8b2e7a1"}
//	    }
//	  }
//	}
type Store struct {
	root    []Requirement
	entries map[Dependency]storeEntry
}

type storeEntry struct {
	versions map[version.Pinned][]Requirement
	refs     map[string]version.Pinned
}

type storeFile struct {
	Root         []storeRequirement         `json:"root"`
	Dependencies map[string]storeDependency `json:"dependencies"`
}

type storeDependency struct {
	Versions map[string][]storeRequirement `json:"versions"`
	Refs     map[string]string             `json:"refs,omitempty"`
}

type storeRequirement struct {
	Dependency string `json:"dependency"`
	Specifier  string `json:"specifier"`
}

// LoadStore reads a JSON index.
func LoadStore(r io.Reader) (*Store, error) {
	var f storeFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode dependency store: %w", err)
	}

	s := &Store{entries: make(map[Dependency]storeEntry)}

	for _, req := range f.Root {
		parsed, err := parseStoreRequirement(req)
		if err != nil {
			return nil, fmt.Errorf("root requirement: %w", err)
		}
		s.root = append(s.root, parsed)
	}

	for key, sd := range f.Dependencies {
		dep, err := ParseDependencyKey(key)
		if err != nil {
			return nil, err
		}
		entry := storeEntry{
			versions: make(map[version.Pinned][]Requirement, len(sd.Versions)),
			refs:     make(map[string]version.Pinned, len(sd.Refs)),
		}
		for pin, reqs := range sd.Versions {
			parsed := make([]Requirement, 0, len(reqs))
			for _, req := range reqs {
				pr, err := parseStoreRequirement(req)
				if err != nil {
					return nil, fmt.Errorf("%s %s: %w", key, pin, err)
				}
				parsed = append(parsed, pr)
			}
			entry.versions[version.NewPinned(pin)] = parsed
		}
		for ref, pin := range sd.Refs {
			entry.refs[ref] = version.NewPinned(pin)
		}
		s.entries[dep] = entry
	}

	return s, nil
}

// LoadStoreFile reads a JSON index from a file path.
func LoadStoreFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dependency store: %w", err)
	}
	defer f.Close()
	return LoadStore(f)
}

// Root returns the manifest requirements recorded in the index.
func (s *Store) Root() []Requirement {
	return s.root
}

// Versions implements Retriever.
func (s *Store) Versions(_ context.Context, d Dependency) ([]version.Pinned, error) {
	entry, ok := s.entries[d]
	if !ok || len(entry.versions) == 0 {
		return nil, &TaggedVersionNotFoundError{Dependency: d}
	}
	pins := make([]version.Pinned, 0, len(entry.versions))
	for pin := range entry.versions {
		pins = append(pins, pin)
	}
	return pins, nil
}

// Dependencies implements Retriever.
func (s *Store) Dependencies(_ context.Context, d Dependency, v version.Pinned) ([]Requirement, error) {
	entry, ok := s.entries[d]
	if !ok {
		return nil, &TaggedVersionNotFoundError{Dependency: d}
	}
	if reqs, ok := entry.versions[v]; ok {
		return reqs, nil
	}
	// Ref-pinned checkouts may not appear in the version table; they
	// declare no requirements of their own in a captured index.
	for _, pin := range entry.refs {
		if pin == v {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("no index entry for %s at %s", d, v)
}

// ResolvedGitReference implements Retriever.
func (s *Store) ResolvedGitReference(_ context.Context, d Dependency, ref string) (version.Pinned, error) {
	entry, ok := s.entries[d]
	if ok {
		if pin, ok := entry.refs[ref]; ok {
			return pin, nil
		}
		// A tag listed in the version table is itself a valid ref.
		for pin := range entry.versions {
			if pin.Commitish == ref {
				return pin, nil
			}
		}
	}
	return version.Pinned{}, &GitReferenceNotFoundError{Dependency: d, Ref: ref}
}

func parseStoreRequirement(req storeRequirement) (Requirement, error) {
	dep, err := ParseDependencyKey(req.Dependency)
	if err != nil {
		return Requirement{}, err
	}
	spec, ok := version.ParseSpecifier(req.Specifier)
	if !ok {
		return Requirement{}, fmt.Errorf("malformed specifier %q for %s", req.Specifier, req.Dependency)
	}
	return Requirement{Dependency: dep, Specifier: spec}, nil
}

// ParseDependencyKey parses the store's dependency identifiers:
// "github:owner/repo", "github:server/owner/repo", "git:<url>", or
// "binary:<url>".
func ParseDependencyKey(s string) (Dependency, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return Dependency{}, fmt.Errorf("malformed dependency key %q", s)
	}
	switch kind {
	case "github":
		parts := strings.Split(rest, "/")
		switch len(parts) {
		case 2:
			return GitHub(parts[0], parts[1]), nil
		case 3:
			return GitHubEnterprise(parts[0], parts[1], parts[2]), nil
		}
		return Dependency{}, fmt.Errorf("malformed github dependency %q", s)
	case "git":
		return Git(rest), nil
	case "binary":
		return Binary(rest), nil
	}
	return Dependency{}, fmt.Errorf("unknown dependency kind in %q", s)
}

// Key renders the store identifier for the dependency, the inverse of
// ParseDependencyKey.
func (d Dependency) Key() string {
	switch d.Kind {
	case KindGitHub:
		if d.Server != "" {
			return "github:" + d.Server + "/" + d.Owner + "/" + d.Repo
		}
		return "github:" + d.Owner + "/" + d.Repo
	case KindBinary:
		return "binary:" + d.URL
	default:
		return "git:" + d.URL
	}
}
