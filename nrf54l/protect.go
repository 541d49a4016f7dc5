package nrf54l

// TAMPC protection register encoding. The upper half-word must carry the key
// or the write is ignored; the lower half-word is the requested level.
const (
	ProtectKey  = 0x50FA
	LevelOpen   = 0x00F0 // WRITEPROTECTION = Clear
	LevelEnable = 0x0001 // VALUE = High

	ProtectKeyMask = 0xFFFF0000
)

// ProtectValue encodes level with the protection key.
func ProtectValue(level uint16) uint32 {
	return ProtectKey<<16 | uint32(level)
}

// The two writes of an unlock, in order.
const (
	UnlockOpen   uint32 = ProtectKey<<16 | LevelOpen   // 0x50FA00F0
	UnlockEnable uint32 = ProtectKey<<16 | LevelEnable // 0x50FA0001
)

// HasKey reports whether v carries the protection key.
func HasKey(v uint32) bool {
	return v&ProtectKeyMask == ProtectKey<<16
}
