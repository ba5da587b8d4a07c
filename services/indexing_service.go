package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// NotesIndexer keeps a local notes directory in sync with the vector store.
// Files are identified by path; content hashes decide whether a file needs
// re-indexing.
type NotesIndexer struct {
	svc KnowledgeService
	dir string
}

// NewNotesIndexer creates an indexer over the given directory.
func NewNotesIndexer(svc KnowledgeService, dir string) *NotesIndexer {
	return &NotesIndexer{svc: svc, dir: dir}
}

// ScanAndIndex syncs the directory with the vector store: new and changed
// files are (re-)indexed, files deleted on disk are removed from the index.
func (n *NotesIndexer) ScanAndIndex(ctx context.Context) {
	log.Printf("INDEXER: scanning %s", n.dir)

	indexed, err := n.indexedHashes(ctx)
	if err != nil {
		log.Printf("INDEXER ERROR: could not read current index state: %v", err)
		return
	}

	onDisk := make(map[string]bool)
	err = filepath.Walk(n.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isIndexableFile(path) {
			return nil
		}
		onDisk[path] = true

		hash, err := fileHash(path)
		if err != nil {
			log.Printf("INDEXER WARN: could not hash %s: %v", path, err)
			return nil
		}
		if indexed[path] == hash {
			return nil
		}

		if err := n.reindex(ctx, path, hash); err != nil {
			log.Printf("INDEXER ERROR: failed to index %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("INDEXER ERROR: error walking %s: %v", n.dir, err)
	}

	for path := range indexed {
		if !onDisk[path] {
			log.Printf("INDEXER: %s deleted on disk, removing from index", path)
			if err := n.svc.DeleteSource(ctx, path); err != nil {
				log.Printf("INDEXER ERROR: failed to remove %s: %v", path, err)
			}
		}
	}
	log.Println("INDEXER: scan finished")
}

// Watch blocks watching the directory for changes until the context is
// cancelled. Editors often write via create-temp-and-rename, so Create and
// Write events are handled the same way.
func (n *NotesIndexer) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WATCHER ERROR: failed to create watcher: %v", err)
		return
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isIndexableFile(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
					log.Printf("WATCHER: %s changed, re-indexing", event.Name)
					hash, err := fileHash(event.Name)
					if err != nil {
						log.Printf("WATCHER WARN: could not hash %s: %v", event.Name, err)
						continue
					}
					if err := n.reindex(ctx, event.Name, hash); err != nil {
						log.Printf("WATCHER ERROR: failed to index %s: %v", event.Name, err)
					}
				case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
					log.Printf("WATCHER: %s removed, deleting from index", event.Name)
					if err := n.svc.DeleteSource(ctx, event.Name); err != nil {
						log.Printf("WATCHER ERROR: failed to remove %s: %v", event.Name, err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WATCHER ERROR: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := watcher.Add(n.dir); err != nil {
		log.Printf("WATCHER ERROR: failed to watch %s: %v", n.dir, err)
		return
	}
	log.Printf("WATCHER: watching %s", n.dir)

	<-ctx.Done()
	log.Println("WATCHER: context cancelled, shutting down")
}

// reindex replaces a file's chunks with freshly extracted ones.
func (n *NotesIndexer) reindex(ctx context.Context, path, hash string) error {
	if err := n.svc.DeleteSource(ctx, path); err != nil {
		return err
	}
	return n.svc.IngestFile(ctx, path, hash)
}

// indexedHashes maps every indexed file path under the notes directory to
// its stored content hash.
func (n *NotesIndexer) indexedHashes(ctx context.Context) (map[string]string, error) {
	chunks, err := n.svc.GetAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	state := make(map[string]string)
	for _, chunk := range chunks.Chunks {
		source, _ := chunk.Metadata["source"].(string)
		hash, _ := chunk.Metadata["content_hash"].(string)
		if source == "" || hash == "" {
			continue
		}
		if rel, err := filepath.Rel(n.dir, source); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if _, ok := state[source]; !ok {
			state[source] = hash
		}
	}
	return state, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
