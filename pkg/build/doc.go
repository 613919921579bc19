// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package build schedules and executes the target DAG.
//
// Planning topologically sorts the targets, consults the sidecar digest
// cache to mark up-to-date targets as skipped, and partitions the remaining
// queue into schedule regions: targets in one region share no dependency
// path and may run in parallel. Execution walks the queue region by region
// with a bounded worker pool, invoking the external compiler, archiver, and
// linker, and collecting compile commands for compile_commands.json.
//
// A BuildSession value carries the console, the command table, and the
// failure list through the executor; nothing here is process-global.
package build
