//go:build !unix && !windows

package execmem

import "errors"

// Platforms without a virtual-memory interface we support cannot hold
// executable regions at all.

var errUnsupported = errors.New("executable memory is not supported on this platform")

func osAlloc(size int) ([]byte, error) { return nil, errUnsupported }

func osProtectExec(mem []byte) error { return errUnsupported }

func osFree(mem []byte) error { return errUnsupported }
