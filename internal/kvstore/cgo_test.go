//go:build cgo

package kvstore

const cgoEnabled = true
