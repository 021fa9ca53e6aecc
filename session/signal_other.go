//go:build !unix

package session

import "os"

var defaultConfirmSignal = os.Interrupt
