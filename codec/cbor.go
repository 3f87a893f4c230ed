package codec

import (
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes with fxamacker/cbor. Construct it with NewCBOR or
// MustCBOR; the zero value has no modes and fails. ByName("cbor") returns the
// deterministic variant, so equal values always produce equal cache bytes.
// Times are encoded as RFC3339Nano.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR uses CoreDetEncOptions (RFC 8949) when deterministic is set and
// PreferredUnsortedEncOptions otherwise.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. Meant for package-level
// variables.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	if c.enc == nil {
		return nil, errNoCBORMode
	}
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if c.dec == nil {
		return v, errNoCBORMode
	}
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

var errNoCBORMode = errors.New("codec: CBOR codec not initialized; use NewCBOR")
