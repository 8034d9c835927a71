package stream

import "errors"

var (
	ErrStatus       = errors.New("stream request failed")
	ErrStreamClosed = errors.New("stream closed by server")
	ErrGaveUp       = errors.New("stream reconnect attempts exhausted")
)
