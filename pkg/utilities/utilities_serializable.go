package utilities

import "encoding/json"

// Serializable is anything a publisher can put on the wire.
type Serializable interface {
	Serialize() ([]byte, error)
}

func Serialize[T any](content T) ([]byte, error) {
	return json.Marshal(content)
}
