// Package batch drives a run over the confirmed rows: validate, build the
// job graph, submit it stage by stage and record every accepted job and row
// outcome. A failing row never stops the rows after it.
package batch
