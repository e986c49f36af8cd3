// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that reads the time or waits on a deadline accepts a Clock
// instead of calling time.Now or time.After directly. Production code
// passes Real(). Tests pass Fake(), which stands still until Advance
// is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go waitForLock(c)
//	c.WaitForTimers(1) // the goroutine has registered its deadline
//	c.Advance(5 * time.Second)
package clock
