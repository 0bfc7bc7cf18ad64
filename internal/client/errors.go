package client

import "errors"

// ErrClientClosing is returned by PrepareToWrite (and, transitively, every
// AddReply* method) once a client's fd has been torn down, matching
// prepareClientToWrite's C_ERR-when-fd<=0 path.
var ErrClientClosing = errors.New("client: connection is closing")
