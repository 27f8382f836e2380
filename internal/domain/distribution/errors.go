package distribution

import "errors"

var ErrNoSendEvents = errors.New("no send events for record")
