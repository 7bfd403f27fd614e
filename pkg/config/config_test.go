package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/interproc"
	"github.com/oisee/ikos/pkg/polydomain"
)

func TestParsePrecisionRecognizesEveryKeyword(t *testing.T) {
	p, err := ParsePrecision("integer")
	require.NoError(t, err)
	require.Equal(t, interproc.PrecisionInteger, p)

	p, err = ParsePrecision("pointer-tracking")
	require.NoError(t, err)
	require.Equal(t, interproc.PrecisionPointer, p)

	p, err = ParsePrecision("")
	require.NoError(t, err)
	require.Equal(t, interproc.PrecisionMemory, p)
}

func TestParsePrecisionRejectsUnknownValue(t *testing.T) {
	_, err := ParsePrecision("bogus")
	require.Error(t, err)
}

func TestParseDomainRecognizesEveryKeyword(t *testing.T) {
	k, err := ParseDomain("dbm")
	require.NoError(t, err)
	require.Equal(t, polydomain.KindDBM, k)

	k, err = ParseDomain("packed-dbm")
	require.NoError(t, err)
	require.Equal(t, polydomain.KindPackedDBM, k)

	k, err = ParseDomain("gauge")
	require.NoError(t, err)
	require.Equal(t, polydomain.KindGauge, k)
}

func TestParseDomainRejectsUnknownValue(t *testing.T) {
	_, err := ParseDomain("triangular")
	require.Error(t, err)
}

func TestParseHardwareAddressesParsesHexAndDecimalRanges(t *testing.T) {
	ranges, err := ParseHardwareAddresses("0x1000-0x1FFF, 4096-8191")
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	require.Equal(t, int64(0x1000), ranges[0].Lo)
	require.Equal(t, int64(0x1FFF), ranges[0].Hi)
	require.Equal(t, int64(4096), ranges[1].Lo)
	require.Equal(t, int64(8191), ranges[1].Hi)
}

func TestParseHardwareAddressesEmptyIsNil(t *testing.T) {
	ranges, err := ParseHardwareAddresses("")
	require.NoError(t, err)
	require.Nil(t, ranges)
}

func TestParseHardwareAddressesRejectsInvertedRange(t *testing.T) {
	_, err := ParseHardwareAddresses("0x100-0x10")
	require.Error(t, err)
}

func TestParseHardwareAddressesRejectsMissingBound(t *testing.T) {
	_, err := ParseHardwareAddresses("0x100")
	require.Error(t, err)
}

func TestInterprocOptionsFindsAbsoluteZeroLocation(t *testing.T) {
	prog := &ar.Program{
		Locations: map[ar.LocID]ar.MemoryLocation{
			1: {ID: 1, Kind: ar.LocGlobal},
			2: {ID: 2, Kind: ar.LocAbsoluteZero},
		},
	}
	opts := Default().InterprocOptions(prog)
	require.Equal(t, ar.LocID(2), opts.AbsZero)
}

func TestInterprocOptionsDefaultsAbsoluteZeroToZero(t *testing.T) {
	prog := &ar.Program{Locations: map[ar.LocID]ar.MemoryLocation{}}
	opts := Default().InterprocOptions(prog)
	require.Equal(t, ar.LocID(0), opts.AbsZero)
}
