/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package executor

import "sync"

var (
	sharedOnce sync.Once
	shared     *Executor
)

// Shared returns the process-wide default Executor (spec.md §4.1
// "Singleton. A process-wide default executor is offered (shared)."),
// lazily built on first use with the package defaults.
func Shared() *Executor {
	sharedOnce.Do(func() {
		shared = New("shared")
	})
	return shared
}
