//go:build unix

package session

import "syscall"

var defaultConfirmSignal = syscall.SIGUSR1
