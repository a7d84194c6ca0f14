/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoEncoder converts a protobuf object into a portable byte form. Used by
// locatorctl to print a cache dump in a stable, diffable format.
type ProtoEncoder interface {
	Encode(proto.Message) ([]byte, error)
}

// ProtoDecoder reverses Encode given the name the object was registered
// under.
type ProtoDecoder interface {
	Decode(typ string, data []byte) (proto.Message, error)
}

// ProtoEncoderDecoder is the combined read/write boundary locatorctl's
// cache-dump subcommand uses.
type ProtoEncoderDecoder interface {
	ProtoEncoder
	ProtoDecoder
}

type msgFactory func() proto.Message

// msgObjFactory maps the handful of wire message kinds locatorctl knows how
// to round-trip. Only "struct" is populated today, the envelope type
// metaclient.GRPCObtainer exchanges with a metadata tablet; more entries
// join this table if locatorctl grows additional dump formats.
var msgObjFactory = map[string]msgFactory{
	"struct": func() proto.Message { return new(structpb.Struct) },
}

type jsonProtoEncoderDecoder struct{}

var _ ProtoEncoderDecoder = jsonProtoEncoderDecoder{}

func (jsonProtoEncoderDecoder) Encode(obj proto.Message) ([]byte, error) {
	return protojson.Marshal(obj)
}

func (jsonProtoEncoderDecoder) Decode(typ string, data []byte) (proto.Message, error) {
	mk, ok := msgObjFactory[typ]
	if !ok {
		return nil, fmt.Errorf("codec: unknown message type %q", typ)
	}
	msg := mk()
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("codec: decoding %q: %w", typ, err)
	}
	return msg, nil
}
