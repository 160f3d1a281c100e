// Package repository holds the log store backends. Each sub package
// implements interfaces.Store against one storage service; the tests in
// this package run the same behavior checks against all of them.
package repository
