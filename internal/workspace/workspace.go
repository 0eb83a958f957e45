// Package workspace tracks the in-memory text of every document an editor
// has open, translating between file:// URIs and workspace-relative paths.
package workspace

import (
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// Document is the latest known full content of one open file.
type Document struct {
	Path string
	Text string
}

// Workspace owns the text of every currently-open document plus the root
// directory used to resolve file:// URIs into workspace-relative paths.
//
// Only didOpen/didChange/didClose mutate it; everything else reads.
type Workspace struct {
	logger *zap.Logger

	mu      sync.RWMutex
	rootDir string
	docs    map[string]*Document
}

// New creates an empty Workspace rooted at rootDir. rootDir is normalized to
// always end in a path separator so prefix-stripping in ResolveURI is exact.
func New(logger *zap.Logger, rootDir string) *Workspace {
	if rootDir != "" && !strings.HasSuffix(rootDir, "/") {
		rootDir += "/"
	}

	return &Workspace{
		logger:  logger,
		rootDir: rootDir,
		docs:    make(map[string]*Document),
	}
}

// RootDir returns the normalized root directory.
func (w *Workspace) RootDir() string {
	return w.rootDir
}

// ResolveURI parses a file:// URI and, if it falls under the workspace root,
// returns the workspace-relative path. URIs outside the root return ("",
// false) and are logged as a warning, per spec.
func (w *Workspace) ResolveURI(docURI protocol.DocumentURI) (string, bool) {
	path := uri.URI(docURI).Filename()
	if path == "" {
		w.logger.Warn("could not parse document URI", zap.String("uri", string(docURI)))
		return "", false
	}

	if w.rootDir == "" {
		return path, true
	}

	if !strings.HasPrefix(path, w.rootDir) {
		w.logger.Warn("document URI outside workspace root",
			zap.String("uri", string(docURI)),
			zap.String("root", w.rootDir))
		return "", false
	}

	return strings.TrimPrefix(path, w.rootDir), true
}

// URIForPath constructs a file:// URI for a workspace-relative path.
func (w *Workspace) URIForPath(path string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(w.rootDir + path))
}

// DidOpen registers or replaces the full text of an open document.
func (w *Workspace) DidOpen(path, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.docs[path]; exists {
		w.logger.Warn("didOpen for already-open document", zap.String("path", path))
	}

	w.docs[path] = &Document{Path: path, Text: text}
}

// DidChange replaces a document's text with the last content change's text,
// per full-document synchronization (spec.md §4.1: only the `text` of the
// last element of contentChanges is consumed).
func (w *Workspace) DidChange(path, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, ok := w.docs[path]
	if !ok {
		w.logger.Warn("didChange for unknown document", zap.String("path", path))
		doc = &Document{Path: path}
		w.docs[path] = doc
	}

	doc.Text = text
}

// DidClose forgets a document's text.
func (w *Workspace) DidClose(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.docs, path)
}

// Get returns the current text of an open document.
func (w *Workspace) Get(path string) (*Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	doc, ok := w.docs[path]
	return doc, ok
}

// OpenPaths returns the workspace-relative paths of every open document, in
// an unspecified order (spec.md says insertion order is irrelevant).
func (w *Workspace) OpenPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.docs))
	for path := range w.docs {
		paths = append(paths, path)
	}

	return paths
}

// Cleanup frees every document. The Workspace is not usable afterward.
func (w *Workspace) Cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.docs = nil
}
