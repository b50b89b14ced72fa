// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"

	stderrors "errors"

	"github.com/strata-pm/strata"
	"github.com/strata-pm/strata/solve"
)

// buildManifest renders a solved build set as the flat, one-entry-
// per-package tree the VFS mounts: name -> its build's payload blob.
// Turning a Solution into a full file-level Manifest is the build
// driver's job and explicitly out of scope here (a build's individual
// files are never listed anywhere this module sees); this only
// resolves the single opaque payload each ordinary binary build
// publishes, the way a profile directory of symlinks resolves one
// store path per package without unpacking it.
func buildManifest(ctx context.Context, repos []strata.Repository, sol *solve.Solution, out *Loggers) (*strata.Manifest, error) {
	root := &strata.ManifestEntry{Kind: strata.EntryTree, Children: map[string]*strata.ManifestEntry{}}

	for _, r := range sol.Final.ResolvedInOrder() {
		name := r.Spec.ID.Name
		switch r.Spec.ID.Digest.Kind {
		case strata.DigestOpaque:
			digest := r.Spec.ID.Digest.Opaque
			size, err := payloadSize(ctx, repos, digest)
			if err != nil {
				out.Vlogf("build: %s: %v, mounting as an empty placeholder", name, err)
				root.Children[name] = &strata.ManifestEntry{Kind: strata.EntryTree, Children: map[string]*strata.ManifestEntry{}}
				continue
			}
			root.Children[name] = &strata.ManifestEntry{Kind: strata.EntryBlob, Digest: digest, Size: size, Mode: 0644}
		default:
			out.Vlogf("build: %s is a %s build; its payload is not directly mountable", name, r.Spec.ID.Digest.Kind)
			root.Children[name] = &strata.ManifestEntry{Kind: strata.EntryTree, Children: map[string]*strata.ManifestEntry{}}
		}
	}

	return &strata.Manifest{Root: root}, nil
}

// payloadSize walks repos in order looking for digest, honoring
// TryNextRepo exactly as the solver and the VFS both do.
func payloadSize(ctx context.Context, repos []strata.Repository, digest string) (int64, error) {
	var lastErr error
	for _, repo := range repos {
		p, err := repo.OpenPayload(ctx, digest)
		if err != nil {
			var repoErr *strata.RepoError
			if stderrors.As(err, &repoErr) && repoErr.TryNextRepo {
				lastErr = err
				continue
			}
			return 0, err
		}
		if p.Seekable != nil {
			p.Seekable.Close()
		}
		if p.Stream != nil {
			p.Stream.Close()
		}
		return p.Size, nil
	}
	if lastErr == nil {
		lastErr = stderrors.New("digest not found in any configured repository")
	}
	return 0, lastErr
}
