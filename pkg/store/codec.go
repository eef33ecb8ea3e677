package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	dex "github.com/speakeasy-api/simplify"
)

// cborEncMode encodes canonically so equal methods produce equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// methodRecord is the stored form of a dex.Method. Opcodes are kept by
// mnemonic so records survive reordering of the opcode table.
type methodRecord struct {
	Signature    string          `cbor:"1,keyasint"`
	Access       uint16          `cbor:"2,keyasint,omitempty"`
	Registers    int             `cbor:"3,keyasint"`
	Instructions []insnRecord    `cbor:"4,keyasint"`
	Handlers     []handlerRecord `cbor:"5,keyasint,omitempty"`
	Throws       []string        `cbor:"6,keyasint,omitempty"`
}

type insnRecord struct {
	Op      string  `cbor:"1,keyasint"`
	A       int     `cbor:"2,keyasint,omitempty"`
	B       int     `cbor:"3,keyasint,omitempty"`
	C       int     `cbor:"4,keyasint,omitempty"`
	Literal int64   `cbor:"5,keyasint,omitempty"`
	Target  int     `cbor:"6,keyasint,omitempty"`
	Type    string  `cbor:"7,keyasint,omitempty"`
	Ref     string  `cbor:"8,keyasint,omitempty"`
	Str     string  `cbor:"9,keyasint,omitempty"`
	Args    []int   `cbor:"10,keyasint,omitempty"`
	Keys    []int32 `cbor:"11,keyasint,omitempty"`
	Targets []int   `cbor:"12,keyasint,omitempty"`
	Data    []int64 `cbor:"13,keyasint,omitempty"`
	Width   int     `cbor:"14,keyasint,omitempty"`
	// HasArgs distinguishes an empty register list from none.
	HasArgs bool `cbor:"15,keyasint,omitempty"`
}

type handlerRecord struct {
	Start   int    `cbor:"1,keyasint"`
	End     int    `cbor:"2,keyasint"`
	Handler int    `cbor:"3,keyasint"`
	Type    string `cbor:"4,keyasint,omitempty"`
}

// MarshalMethod serializes a method to canonical CBOR.
func MarshalMethod(m *dex.Method) ([]byte, error) {
	rec := methodRecord{
		Signature: m.Signature(),
		Access:    uint16(m.Access),
		Registers: m.Registers,
		Throws:    m.Throws,
	}
	for _, in := range m.Instructions {
		rec.Instructions = append(rec.Instructions, insnRecord{
			Op: in.Op.String(), A: in.A, B: in.B, C: in.C, Literal: in.Literal,
			Target: in.Target, Type: in.Type, Ref: in.Ref, Str: in.Str,
			Args: in.Args, Keys: in.Keys, Targets: in.Targets, Data: in.Data, Width: in.Width,
			HasArgs: in.Args != nil,
		})
	}
	for _, h := range m.Handlers {
		rec.Handlers = append(rec.Handlers, handlerRecord(h))
	}
	return cborEncMode.Marshal(&rec)
}

// UnmarshalMethod deserializes a method written by MarshalMethod.
func UnmarshalMethod(data []byte) (*dex.Method, error) {
	var rec methodRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: unmarshal method: %w", err)
	}
	ref, err := dex.ParseMethodRef(rec.Signature)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	m := &dex.Method{
		Class:     ref.Class,
		Name:      ref.Name,
		Params:    ref.Params,
		Return:    ref.Return,
		Access:    dex.AccessFlags(rec.Access),
		Registers: rec.Registers,
		Throws:    rec.Throws,
	}
	for i, r := range rec.Instructions {
		op, twoAddr, ok := dex.LookupOpcode(r.Op)
		if !ok || twoAddr {
			return nil, fmt.Errorf("store: %s: instruction %d has unknown opcode %q", rec.Signature, i, r.Op)
		}
		in := dex.Instruction{
			Op: op, A: r.A, B: r.B, C: r.C, Literal: r.Literal, Target: r.Target,
			Type: r.Type, Ref: r.Ref, Str: r.Str, Args: r.Args, Keys: r.Keys,
			Targets: r.Targets, Data: r.Data, Width: r.Width,
		}
		if r.HasArgs && in.Args == nil {
			in.Args = []int{}
		}
		m.Instructions = append(m.Instructions, in)
	}
	for _, h := range rec.Handlers {
		m.Handlers = append(m.Handlers, dex.ExceptionHandler(h))
	}
	if err := dex.Validate(m); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return m, nil
}
