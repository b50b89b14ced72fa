// Package strata defines the data shared by strata's two core
// subsystems: the dependency solver (package solve) and the layered
// virtual filesystem mount (package vfs).
//
// This package intentionally stays thin. It declares the external
// collaborators strata depends on but does not itself implement: the
// content-addressed blob repository, the source-package recipe, and
// the manifest tree a solved build set renders as a filesystem. Their
// concrete implementations - talking to an actual blob store, running
// an actual shell build - are out of scope; strata only needs the
// shapes.
package strata
