// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memory

import "fmt"

func errNoSuchEndpoint(endpointID any) error {
	return fmt.Errorf("memory: no connection-request handler registered for endpoint %v", endpointID)
}
