// Package scholar contains the fetch orchestration core: block
// classification, the consecutive-block breaker, jittered backoff,
// rotating request identities, and the tiered orchestrator that walks a
// publication list through the fast HTTP path, the headless rendering
// path, and a last sequential sweep. The Scraper type ties those pieces
// together for one author profile.
package scholar
