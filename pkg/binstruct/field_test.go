package binstruct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsignedSetGetRoundTrip(t *testing.T) {
	f, err := NewField("n", 16, Fixed, BigEndian, KindUnsigned, 1234, "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), v)
}

func TestUnsignedLittleEndianByteSwap(t *testing.T) {
	f, err := NewField("n", 16, Fixed, LittleEndian, KindUnsigned, 0x0102, "")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01}, f.Encode())

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102), v)
}

func TestUnsignedTruncatesToFieldWidth(t *testing.T) {
	f, err := NewField("n", 8, Fixed, BigEndian, KindUnsigned, 0x1FF, "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v)
}

func TestSignedRoundTripNegative(t *testing.T) {
	f, err := NewField("n", 8, Fixed, BigEndian, KindSigned, -1, "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestStringCodecAcceptsBytesOrString(t *testing.T) {
	f, err := NewField("s", 24, Variable, BigEndian, KindString, []byte("abc"), "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	f2, err := NewField("s2", 24, Variable, BigEndian, KindString, "abc", "")
	require.NoError(t, err)
	assert.Equal(t, f.Bitstring, f2.Bitstring)
}

func TestHexstringRoundTrip(t *testing.T) {
	f, err := NewField("h", 16, Variable, BigEndian, KindHexstring, "0x1234", "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "1234", v)
}

func TestOctetstringRoundTrip(t *testing.T) {
	f, err := NewField("ip", 32, Fixed, BigEndian, KindOctetstring, "10.0.0.1", "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", v)
}

func TestOctetstringRejectsOutOfRangeOctet(t *testing.T) {
	_, err := NewField("ip", 32, Fixed, BigEndian, KindOctetstring, "10.0.0.999", "")
	assert.ErrorIs(t, err, ErrFieldInput)
}

func TestBitstringCodecRequiresExactLength(t *testing.T) {
	_, err := NewField("b", 4, Fixed, BigEndian, KindBitstring, "101", "")
	assert.ErrorIs(t, err, ErrFieldInput)

	f, err := NewField("b", 4, Fixed, BigEndian, KindBitstring, "1010", "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "1010", v)
}

func TestFixedLengthRejectsWrongWidth(t *testing.T) {
	f, err := NewField("b", 8, Fixed, BigEndian, KindUnsigned, 1, "")
	require.NoError(t, err)
	err = f.SetRaw([]byte("0101")) // only 4 bits, field is fixed at 8
	assert.ErrorIs(t, err, ErrFieldInput)
}

func TestVariableLengthRejectsOverMax(t *testing.T) {
	_, err := NewField("s", 8, Variable, BigEndian, KindString, []byte("toolong"), "")
	assert.ErrorIs(t, err, ErrFieldInput)
}

func TestCloneIsIndependentCopy(t *testing.T) {
	f, err := NewField("n", 8, Fixed, BigEndian, KindUnsigned, 5, "")
	require.NoError(t, err)
	cp := f.Clone()
	require.NoError(t, cp.Set(9))
	orig, _ := f.Get()
	cloned, _ := cp.Get()
	assert.Equal(t, uint64(5), orig)
	assert.Equal(t, uint64(9), cloned)
}

func TestRegisterKindInstallsCustomCodec(t *testing.T) {
	RegisterKind(Kind("double_byte"), unsignedCodec{})
	f, err := NewField("n", 8, Fixed, BigEndian, Kind("double_byte"), 7, "")
	require.NoError(t, err)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)
}
