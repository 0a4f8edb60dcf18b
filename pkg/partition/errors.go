package partition

import "github.com/rotisserie/eris"

// ErrInvalidIndex is the panic value when a nil Index reaches a partitioned operation.
var ErrInvalidIndex = eris.New("invalid partition index")
