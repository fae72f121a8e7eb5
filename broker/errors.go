// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import "errors"

// ErrClosed is returned by Run/Tick once the broker has been shut down.
var ErrClosed = errors.New("broker: closed")
