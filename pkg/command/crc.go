package command

// CRC16 computes the CCITT checksum used by message blocks.
func CRC16(buf []byte) uint16 {
	crc := uint16(0xffff)
	for _, b := range buf {
		data := b ^ byte(crc)
		data ^= data << 4
		crc = ((uint16(data) << 8) | (crc >> 8)) ^ uint16(data>>4) ^ (uint16(data) << 3)
	}
	return crc
}
