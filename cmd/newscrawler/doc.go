// Package main hosts the newscrawler entrypoint.
//
// Architecture overview:
//   - Producer: every cycle_interval the scheduler walks the source registry (news, enter, sport) in order,
//     paging each lister from its start page until an empty page or max_pages. A fresh dedup set per cycle drops
//     repeated items before they reach the queue. Cycles never overlap; a tick that fires while a cycle runs is
//     skipped.
//   - Queue & pool: items flow through an unbounded FIFO (queue_capacity > 0 bounds it) to a fixed pool of
//     workers. Each worker fetches, analyzes and stores one item at a time; any error drops that item only.
//   - Persistence & fanout: the record store (Postgres, or memory without a DSN) is authoritative. The bleve search
//     index, the raw archive (memory/local/GCS) and Pub/Sub notifications are secondary and never drop an item.
//   - Shutdown: SIGINT/SIGTERM moves the pipeline from running to draining. The cycle timer is stopped, one sentinel
//     per worker is enqueued behind the remaining work, and the process exits once every item was processed. The
//     HTTP server is stopped last so /readyz and /v1/status stay observable while draining.
//
// Quick checklist:
//   - Configure env vars: NEWSCRAWLER_ANALYZER_API_KEY, NEWSCRAWLER_DATABASE_DSN, NEWSCRAWLER_PIPELINE_WORKERS,
//     NEWSCRAWLER_SEARCH_PATH, NEWSCRAWLER_ARCHIVE_BACKEND, NEWSCRAWLER_PUBSUB_BACKEND.
//   - Apply the schema: newscrawler migrate (or set database.migrate_on_start).
//   - Run locally: go run ./cmd/newscrawler run --config config.yaml, or run --once for a single cycle.
//   - Rebuild the search index from stored articles: newscrawler reindex.
package main
