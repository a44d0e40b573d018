package slip39

import (
	"math/big"
	"strings"
)

const (
	radixBits         = 10
	identifierBits    = 15
	extendableBits    = 1
	iterationExpBits  = 4
	metadataWordCount = 4
	checksumWordCount = 3

	// The only two mnemonic shapes this codec accepts: 20 words carry a
	// 16-byte value, 33 words carry a 32-byte value.
	shortMnemonicWordCount = 20
	longMnemonicWordCount  = 33

	customizationNonExtendable = "shamir"
	customizationExtendable    = "shamir_extendable"
)

var last10Bits = big.NewInt(1<<radixBits - 1)

// ShareMetadata is the header of a SLIP-39 share: the first four mnemonic
// words in unpacked form.
type ShareMetadata struct {
	Identifier        uint16
	Extendable        bool
	IterationExponent int
	GroupIndex        int
	GroupThreshold    int
	GroupCount        int
	MemberIndex       int
	MemberThreshold   int
}

func (m ShareMetadata) customizationString() string {
	if m.Extendable {
		return customizationExtendable
	}
	return customizationNonExtendable
}

// encodeShare packs metadata and the encrypted secret into word indices and
// appends the RS1024 checksum.
func encodeShare(meta ShareMetadata, encryptedSecret []byte) []int {
	extendable := 0
	if meta.Extendable {
		extendable = 1
	}

	idExp := int(meta.Identifier)<<(extendableBits+iterationExpBits) |
		extendable<<iterationExpBits |
		meta.IterationExponent

	shareParams := meta.GroupIndex
	shareParams = shareParams<<4 | (meta.GroupThreshold - 1)
	shareParams = shareParams<<4 | (meta.GroupCount - 1)
	shareParams = shareParams<<4 | meta.MemberIndex
	shareParams = shareParams<<4 | (meta.MemberThreshold - 1)

	data := make([]int, 0, metadataWordCount)
	data = append(data, intToWordIndices(idExp, 2)...)
	data = append(data, intToWordIndices(shareParams, 2)...)
	data = append(data, bytesToWordIndices(encryptedSecret)...)

	checksum := rs1024CreateChecksum(meta.customizationString(), data)
	return append(data, checksum...)
}

// decodeShare is the inverse of encodeShare. It validates length, vocabulary,
// checksum and zero padding, in that order.
func decodeShare(words []string) (ShareMetadata, []byte, error) {
	var meta ShareMetadata

	if len(words) != shortMnemonicWordCount && len(words) != longMnemonicWordCount {
		return meta, nil, ErrInvalidMnemonicLength
	}

	data := make([]int, len(words))
	for i, w := range words {
		index, ok := wordIndex[strings.ToLower(w)]
		if !ok {
			return meta, nil, ErrInvalidWord
		}
		data[i] = index
	}

	idExp := data[0]<<radixBits | data[1]
	meta.Identifier = uint16(idExp >> (extendableBits + iterationExpBits))
	meta.Extendable = idExp>>iterationExpBits&1 == 1
	meta.IterationExponent = idExp & (1<<iterationExpBits - 1)

	if !rs1024VerifyChecksum(meta.customizationString(), data) {
		return meta, nil, ErrChecksumMismatch
	}

	shareParams := data[2]<<radixBits | data[3]
	meta.GroupIndex = shareParams >> 16 & 0xf
	meta.GroupThreshold = shareParams>>12&0xf + 1
	meta.GroupCount = shareParams>>8&0xf + 1
	meta.MemberIndex = shareParams >> 4 & 0xf
	meta.MemberThreshold = shareParams&0xf + 1

	valueWords := data[metadataWordCount : len(data)-checksumWordCount]
	value, err := wordIndicesToBytes(valueWords)
	if err != nil {
		return meta, nil, err
	}

	return meta, value, nil
}

// bytesToWordIndices re-expresses value as a big-endian base-1024 integer,
// left padded with zero digits up to ceil(8*len/10) words.
func bytesToWordIndices(value []byte) []int {
	wordCount := (len(value)*8 + radixBits - 1) / radixBits

	v := new(big.Int).SetBytes(value)
	word := new(big.Int)
	indices := make([]int, wordCount)
	for i := wordCount - 1; i >= 0; i-- {
		word.And(v, last10Bits)
		v.Rsh(v, radixBits)
		indices[i] = int(word.Int64())
	}
	return indices
}

// wordIndicesToBytes reassembles the base-1024 digits into bytes. The high
// (10*len mod 16) bits are padding and must be zero, mirroring the left
// padding applied by bytesToWordIndices.
func wordIndicesToBytes(indices []int) ([]byte, error) {
	totalBits := len(indices) * radixBits
	paddingBits := totalBits % 16
	byteCount := (totalBits - paddingBits) / 8

	v := new(big.Int)
	for _, index := range indices {
		v.Lsh(v, radixBits)
		v.Or(v, big.NewInt(int64(index)))
	}

	if v.BitLen() > totalBits-paddingBits {
		return nil, ErrInvalidPadding
	}

	value := make([]byte, byteCount)
	v.FillBytes(value)
	return value, nil
}

func intToWordIndices(value, length int) []int {
	indices := make([]int, length)
	for i := length - 1; i >= 0; i-- {
		indices[i] = value & (1<<radixBits - 1)
		value >>= radixBits
	}
	return indices
}

// rs1024Polymod is the Reed-Solomon style checksum over GF(1024) defined by
// SLIP-0039. The generator table is normative and must not change.
func rs1024Polymod(values []int) int {
	gen := []int{
		0xe0e040, 0x1c1c080, 0x3838100, 0x7070200, 0xe0e0009,
		0x1c0c2412, 0x38086c24, 0x3090fc48, 0x21b1f890, 0x3f3f120,
	}
	chk := 1
	for _, v := range values {
		b := chk >> 20
		chk = (chk&0xfffff)<<10 ^ v
		for i := 0; i < 10; i++ {
			if b>>i&1 != 0 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func rs1024CreateChecksum(customization string, data []int) []int {
	values := append(stringToInts(customization), data...)
	values = append(values, 0, 0, 0)
	polymod := rs1024Polymod(values) ^ 1

	checksum := make([]int, checksumWordCount)
	for i := 0; i < checksumWordCount; i++ {
		checksum[i] = polymod >> (radixBits * (checksumWordCount - 1 - i)) & 1023
	}
	return checksum
}

func rs1024VerifyChecksum(customization string, data []int) bool {
	return rs1024Polymod(append(stringToInts(customization), data...)) == 1
}

func stringToInts(s string) []int {
	ints := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		ints[i] = int(s[i])
	}
	return ints
}
