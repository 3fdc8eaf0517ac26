package server

import "errors"

var (
	errRoomFull    = errors.New("room full")
	errRoomClosed  = errors.New("room closed")
	errIdExhausted = errors.New("room id space exhausted")
)
