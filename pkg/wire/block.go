// Package wire encodes the block commit contract in the protobuf wire format.
//
// Field layout of a BlockData message:
//
//	1 containerID   varint
//	2 localID       varint
//	3 chunk         bytes, repeated, order significant
//	    1 name      bytes
//	    2 offset    varint
//	    3 length    varint
//	4 metadata      bytes, repeated, emitted sorted by key
//	    1 key       bytes
//	    2 value     bytes
//	5 bcsId         varint, omitted when 0
//
// Unknown fields are skipped on decode.
package wire

import (
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldContainerID protowire.Number = 1
	fieldLocalID     protowire.Number = 2
	fieldChunk       protowire.Number = 3
	fieldMetadata    protowire.Number = 4
	fieldBCSID       protowire.Number = 5

	fieldChunkName   protowire.Number = 1
	fieldChunkOffset protowire.Number = 2
	fieldChunkLength protowire.Number = 3

	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

// MarshalBlockData encodes a block. The output is deterministic.
func MarshalBlockData(b *types.BlockData) []byte {
	var out []byte
	out = appendVarintField(out, fieldContainerID, uint64(b.BlockID.ContainerID))
	out = appendVarintField(out, fieldLocalID, uint64(b.BlockID.LocalID))

	for _, c := range b.Chunks {
		out = protowire.AppendTag(out, fieldChunk, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalChunk(c))
	}

	for _, k := range b.MetadataKeys() {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendString(entry, b.Metadata[k])

		out = protowire.AppendTag(out, fieldMetadata, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}

	if b.BlockCommitSequenceID != 0 {
		out = appendVarintField(out, fieldBCSID, uint64(b.BlockCommitSequenceID))
	}
	return out
}

func marshalChunk(c types.ChunkInfo) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldChunkName, protowire.BytesType)
	out = protowire.AppendString(out, c.Name)
	out = appendVarintField(out, fieldChunkOffset, uint64(c.Offset))
	out = appendVarintField(out, fieldChunkLength, uint64(c.Length))
	return out
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// UnmarshalBlockData decodes a block produced by MarshalBlockData
func UnmarshalBlockData(data []byte) (*types.BlockData, error) {
	out := &types.BlockData{Metadata: make(map[string]string)}

	err := walk(data, func(num protowire.Number, typ protowire.Type, r *reader) error {
		switch {
		case num == fieldContainerID && typ == protowire.VarintType:
			v, err := r.varint()
			out.BlockID.ContainerID = int64(v)
			return err
		case num == fieldLocalID && typ == protowire.VarintType:
			v, err := r.varint()
			out.BlockID.LocalID = int64(v)
			return err
		case num == fieldChunk && typ == protowire.BytesType:
			raw, err := r.bytes()
			if err != nil {
				return err
			}
			c, err := unmarshalChunk(raw)
			if err != nil {
				return err
			}
			out.Chunks = append(out.Chunks, c)
			return nil
		case num == fieldMetadata && typ == protowire.BytesType:
			raw, err := r.bytes()
			if err != nil {
				return err
			}
			k, v, err := unmarshalEntry(raw)
			if err != nil {
				return err
			}
			out.Metadata[k] = v
			return nil
		case num == fieldBCSID && typ == protowire.VarintType:
			v, err := r.varint()
			out.BlockCommitSequenceID = int64(v)
			return err
		}
		return r.skip(num, typ)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalChunk(data []byte) (types.ChunkInfo, error) {
	var (
		c                       types.ChunkInfo
		hasName, hasOff, hasLen bool
	)
	err := walk(data, func(num protowire.Number, typ protowire.Type, r *reader) error {
		var err error
		var v uint64
		switch {
		case num == fieldChunkName && typ == protowire.BytesType:
			var raw []byte
			raw, err = r.bytes()
			c.Name, hasName = string(raw), true
		case num == fieldChunkOffset && typ == protowire.VarintType:
			v, err = r.varint()
			c.Offset, hasOff = int64(v), true
		case num == fieldChunkLength && typ == protowire.VarintType:
			v, err = r.varint()
			c.Length, hasLen = int64(v), true
		default:
			err = r.skip(num, typ)
		}
		return err
	})
	if err != nil {
		return c, err
	}
	if !hasName || !hasOff || !hasLen {
		return c, errdefs.InvalidArgument("chunk info missing required field (name=%v offset=%v length=%v)", hasName, hasOff, hasLen)
	}
	return c, nil
}

func unmarshalEntry(data []byte) (string, string, error) {
	var key, value string
	err := walk(data, func(num protowire.Number, typ protowire.Type, r *reader) error {
		if typ != protowire.BytesType || (num != fieldEntryKey && num != fieldEntryValue) {
			return r.skip(num, typ)
		}
		raw, err := r.bytes()
		if num == fieldEntryKey {
			key = string(raw)
		} else {
			value = string(raw)
		}
		return err
	})
	return key, value, err
}

type reader struct {
	buf []byte
}

func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, r *reader) error) error {
	r := &reader{buf: data}
	for len(r.buf) > 0 {
		num, typ, n := protowire.ConsumeTag(r.buf)
		if n < 0 {
			return malformed(n)
		}
		r.buf = r.buf[n:]
		if err := fn(num, typ, r); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) varint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		return 0, malformed(n)
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(r.buf)
	if n < 0 {
		return nil, malformed(n)
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, r.buf)
	if n < 0 {
		return malformed(n)
	}
	r.buf = r.buf[n:]
	return nil
}

func malformed(n int) error {
	return errdefs.Wrap(errdefs.KindInvalidArgument, protowire.ParseError(n), "malformed block data")
}
