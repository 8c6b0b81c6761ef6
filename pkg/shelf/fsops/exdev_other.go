//go:build !unix

package fsops

func isEXDEV(error) bool { return false }
