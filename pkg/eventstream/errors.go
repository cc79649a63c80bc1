package eventstream

import "errors"

// ErrNilLinkEvent indicates a nil link event payload was provided to a publisher.
var ErrNilLinkEvent = errors.New("nil link event")
