// Package beacon measures web page quality across multi-step user flows.
//
// A flow is a sequence of measurement steps against one live browser page:
// full page loads (navigation mode), arbitrary caller-bounded intervals
// (timespan mode) and instantaneous state captures (snapshot mode). The flow
// package sequences the steps, the recorder package turns raw browser
// artifacts into scored measurements, and the report package persists the
// aggregated result as JSON, HTML or a terminal summary.
//
// The browser is reached over the Chrome DevTools Protocol; see driver/cdp.
package beacon
