//go:build !unix && !windows

package fsops

func isCrossDevice(error) bool { return false }
