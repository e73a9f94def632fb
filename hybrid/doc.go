// Package hybrid answers a question from the local record index and the
// official gazettes at once.
//
// An Orchestrator always runs the local search and, when asked to, a web
// search through a scraper manager in parallel. Web failures never fail the
// request: the result simply carries no web normativas.
package hybrid
