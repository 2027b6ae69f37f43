package pkstore

import (
	"github.com/cespare/xxhash/v2"
)

const (
	valueFormatVer1      = 1
	valueFormatVerLatest = valueFormatVer1
)

type valueFlags uint64

const (
	vfEncodingBit0 = valueFlags(1 << iota)
	vfEncodingBit1
	vfChecksum

	vfEncodingMask  = (vfEncodingBit0 | vfEncodingBit1)
	vfMsgPack       = valueFlags(0)
	vfJSON          = vfEncodingBit0
	vfSupportedMask = (vfEncodingMask | vfChecksum)
	vfDefault       = vfMsgPack | vfChecksum

	minValueSize = 4
	checksumSize = 8
)

func (vf valueFlags) encoding() (Encoding, bool) {
	switch vf & vfEncodingMask {
	case vfMsgPack:
		return MsgPack, true
	case vfJSON:
		return JSON, true
	default:
		return 0, false
	}
}

func flagsForEncoding(enc Encoding) valueFlags {
	switch enc {
	case MsgPack:
		return vfMsgPack
	case JSON:
		return vfJSON
	default:
		panic("unsupported encoding")
	}
}

// ValueCodec turns records into stored bytes and back.
type ValueCodec interface {
	AppendRecord(buf []byte, r Record) ([]byte, error)
	DecodeRecord(raw []byte) (Record, error)
}

// EnvelopeCodec wraps the encoded field map into a small header and an
// optional xxhash64 checksum. Decoding honors the encoding recorded in the
// header, so a store can read values written with either method.
type EnvelopeCodec struct {
	Encoding   Encoding
	NoChecksum bool
}

var DefaultCodec ValueCodec = EnvelopeCodec{Encoding: defaultValueEncoding}

func EncodeRecord(r Record) ([]byte, error) {
	return DefaultCodec.AppendRecord(nil, r)
}

func DecodeRecord(raw []byte) (Record, error) {
	return DefaultCodec.DecodeRecord(raw)
}

type value struct {
	Flags     valueFlags
	FormatVer uint64
	Data      []byte
	Checksum  uint64
}

func (c EnvelopeCodec) AppendRecord(buf []byte, r Record) ([]byte, error) {
	flags := flagsForEncoding(c.Encoding)
	if !c.NoChecksum {
		flags |= vfChecksum
	}

	// The data size precedes the data, so encode the data to a scratch buffer first.
	scratch := valueBytesPool.Get().([]byte)
	defer releaseValueBytes(scratch)
	data, err := c.Encoding.encodeFields(scratch, r.fields)
	if err != nil {
		return buf, err
	}

	bb := bytesBuilder{buf}
	bb.AppendUvarint(uint64(flags))
	bb.AppendUvarint(valueFormatVerLatest)
	bb.AppendUvarint(uint64(len(data)))
	bb.Write(data)
	if flags&vfChecksum != 0 {
		bb.AppendFixedUint64LE(xxhash.Sum64(data))
	}
	return bb.Buf, nil
}

func (c EnvelopeCodec) DecodeRecord(raw []byte) (Record, error) {
	var vle value
	if err := vle.decode(raw); err != nil {
		return Record{}, err
	}
	enc, _ := vle.Flags.encoding()
	fields, err := enc.decodeFields(vle.Data)
	if err != nil {
		return Record{}, &CorruptValueError{Err: err}
	}
	return Record{fields: fields}, nil
}

// ValidateValue checks the envelope (header, sizes, checksum) without decoding
// the record data.
func ValidateValue(raw []byte) error {
	var vle value
	return vle.decode(raw)
}

func (vle *value) decode(raw []byte) error {
	if len(raw) < minValueSize {
		return corruptErrf(raw, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(raw)

	v, err := d.Uvarint()
	if err != nil {
		return corruptErrf(raw, d.Off(), err, "invalid value: bad flags")
	}
	if (valueFlags(v) &^ vfSupportedMask) != 0 {
		return corruptErrf(raw, 0, nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)
	if _, ok := vle.Flags.encoding(); !ok {
		return corruptErrf(raw, 0, nil, "invalid value: unknown encoding in flags %x", v)
	}

	v, err = d.Uvarint()
	if err != nil {
		return corruptErrf(raw, d.Off(), err, "invalid value: bad format version")
	}
	if v == 0 || v > valueFormatVerLatest {
		return corruptErrf(raw, d.Off(), nil, "invalid value: unsupported format version %d", v)
	}
	vle.FormatVer = v

	dataSize, err := d.Uvarinti()
	if err != nil {
		return corruptErrf(raw, d.Off(), err, "invalid value: bad data size")
	}
	expectedSize := dataSize
	if vle.Flags&vfChecksum != 0 {
		expectedSize += checksumSize
	}
	if len(d.Buf) != expectedSize {
		return corruptErrf(raw, d.Off(), nil, "invalid value: got %d bytes for data, expected %d bytes", len(d.Buf), expectedSize)
	}
	vle.Data, _ = d.Raw(dataSize)

	if vle.Flags&vfChecksum != 0 {
		vle.Checksum, _ = d.FixedUint64LE()
		if actual := xxhash.Sum64(vle.Data); actual != vle.Checksum {
			return corruptErrf(raw, len(raw)-checksumSize, nil, "invalid value: checksum %016x, expected %016x", actual, vle.Checksum)
		}
	}
	return nil
}
