/*
Package crashparse implements a pure, stateless parser from raw
debugger text output into structured crash data: stack frames, loaded
modules, register dumps, disassembly, and the labelled classification
fields a debugger emits alongside a crash. Every extractor fails
gracefully on absence, returning a zero value rather than an error,
since most debugger captures are missing most sections.
*/
package crashparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StackFrame is one STACK_FRAME: line, in file order.
type StackFrame struct {
	Index int
	Text  string
}

var stackFrameRe = regexp.MustCompile(`(?m)^STACK_FRAME:(.*)$`)

// StackTrace enumerates every STACK_FRAME: line in order of appearance.
func StackTrace(text string) []StackFrame {
	matches := stackFrameRe.FindAllStringSubmatch(text, -1)
	out := make([]StackFrame, 0, len(matches))
	for i, m := range matches {
		out = append(out, StackFrame{Index: i, Text: m[1]})
	}
	return out
}

// ParsedFrame splits a "module!func_name+offset" stack frame string
// into its three components, per the Result Store's insertion
// requirements. Missing pieces are left empty.
type ParsedFrame struct {
	Module   string
	FuncName string
	Offset   string
}

var frameSplitRe = regexp.MustCompile(`^([^!]*)!([^+]*)\+?(.*)$`)

// SplitFrame decomposes a frame's text into module, func_name, and
// offset. The frame handler looks up func_name here, not a bare
// "function" key, since the latter is never populated by any extractor
// in this package.
func SplitFrame(text string) ParsedFrame {
	m := frameSplitRe.FindStringSubmatch(text)
	if m == nil {
		return ParsedFrame{FuncName: text}
	}
	return ParsedFrame{Module: m[1], FuncName: m[2], Offset: m[3]}
}

// ModuleInfo holds one loaded-module record.
type ModuleInfo struct {
	SymsLoaded bool
	Name       string
	Size       string
	Timestamp  string
	Version    string
	Checksum   string
}

var moduleHeaderRe = regexp.MustCompile(`(?m)^([0-9a-f]{8}) [0-9a-f]{8}\s+(.*)$`)
var moduleKVRe = regexp.MustCompile(`(?m)^\s*([A-Za-z ]+?):\s*(.*)$`)

// LoadedModules extracts every module block keyed by base address. A
// block without an "Image name" key is dropped, matching the filter
// the extractor applies before a module is considered real.
func LoadedModules(text string) map[string]ModuleInfo {
	headers := moduleHeaderRe.FindAllStringSubmatchIndex(text, -1)
	out := make(map[string]ModuleInfo)
	for i, h := range headers {
		base := text[h[2]:h[3]]
		status := text[h[4]:h[5]]

		blockEnd := len(text)
		if i+1 < len(headers) {
			blockEnd = headers[i+1][0]
		}
		block := text[h[1]:blockEnd]

		kv := make(map[string]string)
		for _, m := range moduleKVRe.FindAllStringSubmatch(block, -1) {
			kv[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		}
		name, ok := kv["Image name"]
		if !ok {
			continue
		}
		out[base] = ModuleInfo{
			SymsLoaded: strings.Contains(strings.ToLower(status), "pdb"),
			Name:       name,
			Size:       kv["Size"],
			Timestamp:  kv["Timestamp"],
			Version:    kv["Version"],
			Checksum:   kv["Checksum"],
		}
	}
	return out
}

var registerBlockRe = regexp.MustCompile(`(?ms)^eax=.*?iopl=\S*.*?(?:\n\n|\z)`)
var registerLineRe = regexp.MustCompile(`(e\w\w)=([0-9a-fA-F]+)`)

// Registers finds the last eax..iopl block in the text and returns its
// e-prefixed register names mapped to their (still-hex-string) values.
// Empty if no such block exists.
func Registers(text string) map[string]string {
	blocks := registerBlockRe.FindAllString(text, -1)
	if len(blocks) == 0 {
		return map[string]string{}
	}
	last := blocks[len(blocks)-1]
	out := make(map[string]string)
	for _, m := range registerLineRe.FindAllStringSubmatch(last, -1) {
		out[m[1]] = m[2]
	}
	return out
}

// RegistersAsInts converts a Registers() map's hex-string values to
// integers, for the Result Store's register_dumps table.
func RegistersAsInts(regs map[string]string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(regs))
	for name, hexVal := range regs {
		v, err := strconv.ParseUint(hexVal, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("crashparse: register %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// DisasmLine is one BASIC_BLOCK_INSTRUCTION: line, in file order.
type DisasmLine struct {
	Index   int
	Address string
	Asm     string
}

var disasmRe = regexp.MustCompile(`(?m)^BASIC_BLOCK_INSTRUCTION:(.*)$`)

// Disassembly enumerates every BASIC_BLOCK_INSTRUCTION: line, splitting
// each on its first space into address and assembly text. The capture
// group already strips the label itself, so the split happens once,
// here, on the remaining "<address> <asm>" text.
func Disassembly(text string) []DisasmLine {
	matches := disasmRe.FindAllStringSubmatch(text, -1)
	out := make([]DisasmLine, 0, len(matches))
	for i, m := range matches {
		line := strings.TrimSpace(m[1])
		addr, asm := line, ""
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			addr, asm = line[:idx], strings.TrimSpace(line[idx+1:])
		}
		out = append(out, DisasmLine{Index: i, Address: addr, Asm: asm})
	}
	return out
}

func labelledTail(text, label string) string {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(label) + `:(.*)$`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Classification reads CLASSIFICATION:'s tail, or "" on absence.
func Classification(text string) string { return labelledTail(text, "CLASSIFICATION") }

// ExceptionType reads EXCEPTION_TYPE:'s tail, or "" on absence.
func ExceptionType(text string) string { return labelledTail(text, "EXCEPTION_TYPE") }

// ExceptionSubtype reads EXCEPTION_SUBTYPE:'s tail, or "" on absence.
func ExceptionSubtype(text string) string { return labelledTail(text, "EXCEPTION_SUBTYPE") }

// LongDesc reads SHORT_DESC:'s tail, or "" on absence.
func LongDesc(text string) string { return labelledTail(text, "SHORT_DESC") }

var hashFallbackRe = regexp.MustCompile(`(?m)^Hash=(.*)$`)

// Hash concatenates MAJOR_HASH and MINOR_HASH as "major.minor"; if
// either is absent, falls back to a bare Hash=<value> line; else "".
func Hash(text string) string {
	major := labelledTail(text, "MAJOR_HASH")
	minor := labelledTail(text, "MINOR_HASH")
	if major != "" && minor != "" {
		return major + "." + minor
	}
	if m := hashFallbackRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Result bundles every extractor's output for one debugger capture,
// the shape the Result Store's transactional insert consumes directly.
type Result struct {
	StackFrames      []StackFrame
	LoadedModules    map[string]ModuleInfo
	Registers        map[string]string
	Disassembly      []DisasmLine
	Classification   string
	ExceptionType    string
	ExceptionSubtype string
	LongDesc         string
	Hash             string
}

// Parse runs every extractor over text and returns the combined
// result.
func Parse(text string) Result {
	return Result{
		StackFrames:      StackTrace(text),
		LoadedModules:    LoadedModules(text),
		Registers:        Registers(text),
		Disassembly:      Disassembly(text),
		Classification:   Classification(text),
		ExceptionType:    ExceptionType(text),
		ExceptionSubtype: ExceptionSubtype(text),
		LongDesc:         LongDesc(text),
		Hash:             Hash(text),
	}
}
