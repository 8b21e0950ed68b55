package objstore

import "errors"

// ErrObjectNotFound is returned when a hash is absent from every loose
// object file and every loaded pack index.
var ErrObjectNotFound = errors.New("objstore: object not found")
