// Package repository ingests a remote code repository into the vector index.
//
// One ingestion run moves through these stages:
//
//	Freshness Gate -> Crawler -> Content Fetcher -> Chunker -> Embedding Stage -> Vector Upsert Stage
//
// The gate runs first so a repository ingested recently costs no host calls.
// Item-level failures (a directory listing, a download, one chunk's
// embedding) are logged, reported as progress and dropped. Only setup errors
// and an unreachable vector store fail the run.
//
// # Usage
//
//	svc, err := repository.NewService(cfg.Ingest, host, store, embedder, history,
//	    repository.WithLogger(logger),
//	    repository.WithEmitter(emitter),
//	)
//	res, err := svc.Ingest(ctx, ownerID, "https://github.com/octo/repo", false)
//
// # Identifiers
//
// Every vector gets an ID built from the run, a process-wide counter and a
// hash of its path and text, so IDs never collide across runs.
package repository
