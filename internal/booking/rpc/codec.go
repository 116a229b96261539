package rpc

import "encoding/json"

// JSONCodec carries booking messages as JSON so the service needs no
// generated protobuf types. Both ends must force it.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return "json" }
