package ir

import (
	"strconv"
	"strings"
)

// TypeToString returns the protocol name, marked when the result is a repeat.
func TypeToString(p Protocol, repeat bool) string {
	if repeat {
		return p.String() + " (Repeat)"
	}
	return p.String()
}

// Hex returns the code value as upper-case hex with a 0x prefix.
func Hex(res *Result) string {
	return "0x" + strings.ToUpper(strconv.FormatUint(res.Value, 16))
}

// HumanReadable returns a short two-line description of the result.
//
//	Protocol  : NEC
//	Code      : 0x20DF40BF (32 Bits)
func HumanReadable(res *Result) string {
	var b strings.Builder
	b.WriteString("Protocol  : ")
	b.WriteString(TypeToString(res.Protocol, res.Repeat))
	b.WriteString("\nCode      : ")
	b.WriteString(Hex(res))
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(int(res.Bits)))
	b.WriteString(" Bits)\n")
	return b.String()
}

// SourceCode renders the result as Go declarations that a sender project can
// paste in to replay the code.
//
//	rawData := [67]uint16{9024, 4512, 552, ...} // NEC 0x20DF40BF
//	address := uint32(0x4)
//	command := uint32(0x2)
//	data := uint64(0x20DF40BF)
func SourceCode(res *Result) string {
	var b strings.Builder
	b.WriteString("rawData := [")
	b.WriteString(strconv.Itoa(len(res.Raw)))
	b.WriteString("]uint16{")
	for i, v := range res.Raw {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	b.WriteString("} // ")
	b.WriteString(TypeToString(res.Protocol, res.Repeat))
	b.WriteString(" ")
	b.WriteString(Hex(res))
	b.WriteString("\n")

	if res.Protocol != Unknown && !res.Repeat {
		b.WriteString("address := uint32(0x")
		b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(res.Address), 16)))
		b.WriteString(")\ncommand := uint32(0x")
		b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(res.Command), 16)))
		b.WriteString(")\n")
	}
	b.WriteString("data := uint64(")
	b.WriteString(Hex(res))
	b.WriteString(")\n")
	return b.String()
}
