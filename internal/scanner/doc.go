// Package scanner discovers content sources: git submodule descriptors from
// .gitmodules and the top-level source directories the watcher follows.
package scanner
