//go:build !linux

package console

func setLowPriority(name string) {}
