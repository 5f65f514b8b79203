// Package pipeline runs the suite's continuous-integration pipeline file.
//
// A pipeline file declares a language, a version matrix, env lines, and
// install/script/after_success steps, plus an optional gated deploy block
// and a notification webhook. The runner expands the matrix and executes
// each entry's steps sequentially, stopping an entry at its first failing
// install or script step. Deploy happens only when the matrix entry,
// branch and tag conditions all hold at once.
package pipeline
