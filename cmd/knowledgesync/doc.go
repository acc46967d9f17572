// Package main is the knowledgesync entrypoint.
//
// Architecture overview:
//   - Source: one of three fetchers returns a page of raw article entries for an (offset, size) window. The
//     search fetcher queries the hosted search index with resty, the listing fetcher scrapes the
//     server-rendered listing with colly and goquery, and the headless fetcher renders the same listing with
//     chromedp for teasers that only appear client-side.
//   - Index: before paging starts, every identifier already in the destination is loaded into an in-memory
//     key set by following the destination's continuation tokens. A failure here aborts the run.
//   - Normalizer: entries are mapped onto the fixed destination schema. Missing or malformed fields fall back
//     to empty values and each fallback is recorded; topics are split into canonical categories and novel
//     labels.
//   - Coordinator: pages are fetched sequentially until the source runs dry, a page fails, or the item cap is
//     reached. Known entries are skipped, others are normalized and inserted one at a time through a rate
//     limiter. A failed insert is logged and the run moves on.
//   - Destinations: Airtable (default), Postgres via pgx, or an in-memory store used by --dry-run.
//   - Observability: zap logs one line per article outcome; Prometheus counters track pages, outcomes and
//     field fallbacks. `sync` can dump the registry to a textfile; `serve` exposes /metrics.
//
// Commands:
//   - knowledgesync sync [--page-size N] [--max-items N] [--dry-run]
//   - knowledgesync serve
//   - knowledgesync categories
//
// Configuration is read from --config and KSYNC_* environment variables (for example
// KSYNC_DESTINATION_AIRTABLE_API_KEY, KSYNC_SOURCE_SEARCH_APP_ID). Flags override both.
package main
