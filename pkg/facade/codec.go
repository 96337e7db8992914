package facade

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// legacyCodec marshals facade's hand-declared messages via
// golang/protobuf's struct-tag reflection (see doc.go and messages.go)
// instead of the default codec, which requires a compiled file
// descriptor this package doesn't have. It is registered on both the
// server and the client so wire encoding stays consistent end to end.
type legacyCodec struct{}

func (legacyCodec) Name() string { return "orbit-legacy-proto" }

func (legacyCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("facade: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

func (legacyCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("facade: %T does not implement proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}
