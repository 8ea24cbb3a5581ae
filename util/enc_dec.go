package util

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MsgpackEncDec uses the json struct tags so both codecs agree on field names.
type MsgpackEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(MsgpackEncDec[any])

func NewMsgpackEncoderDecoder[T any]() *MsgpackEncDec[T] {
	return &MsgpackEncDec[T]{}
}

func (encdec *MsgpackEncDec[T]) Encode(value T) ([]byte, error) {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (encdec *MsgpackEncDec[T]) Decode(data []byte) (*T, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var res T
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
