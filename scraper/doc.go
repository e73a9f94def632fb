// Package scraper searches official gazette websites for regulations.
//
// Every site is described by a Site value: where to send the search, which
// ordered strategies locate result containers, and how titles, content,
// links and dates are pulled out of each container. One GazetteScraper
// interprets any Site, so adding a source means adding data rather than code.
//
// Requests go through a shared Fetcher that applies a browser-like header
// set, a per-attempt timeout, bounded exponential backoff and request
// spacing. A Manager fans a query out to every registered scraper on a
// worker pool and merges what comes back within a deadline.
package scraper
