package arena

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

// MaxPages is the largest arena, in pages, whose byte size fits a uint32.
const MaxPages = 65535

// encodeULEB128 encodes an unsigned value in LEB128 format.
func encodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// buildMemoryModule generates a module that defines one memory of exactly
// pages pages and exports it under name.
func buildMemoryModule(name string, pages uint32) []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	// Memory section: one memory, limits flag 0x01 (min and max)
	var memSection []byte
	memSection = append(memSection, 0x01)
	memSection = append(memSection, 0x01)
	memSection = append(memSection, encodeULEB128(pages)...)
	memSection = append(memSection, encodeULEB128(pages)...)
	wasm = append(wasm, 0x05)
	wasm = append(wasm, encodeULEB128(uint32(len(memSection)))...)
	wasm = append(wasm, memSection...)

	// Export section: memory 0
	var exportSection []byte
	exportSection = append(exportSection, 0x01)
	exportSection = append(exportSection, encodeULEB128(uint32(len(name)))...)
	exportSection = append(exportSection, []byte(name)...)
	exportSection = append(exportSection, 0x02)
	exportSection = append(exportSection, 0x00)
	wasm = append(wasm, 0x07)
	wasm = append(wasm, encodeULEB128(uint32(len(exportSection)))...)
	wasm = append(wasm, exportSection...)

	return wasm
}
