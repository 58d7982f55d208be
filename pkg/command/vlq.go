package command

// AppendInt appends v in the variable length encoding used by the
// protocol. Small positive and negative values take fewer bytes.
func AppendInt(dst []byte, v uint32) []byte {
	sv := int32(v)
	n := 5
	switch {
	case sv < 3<<5 && sv >= -(1<<5):
		n = 1
	case sv < 3<<12 && sv >= -(1<<12):
		n = 2
	case sv < 3<<19 && sv >= -(1<<19):
		n = 3
	case sv < 3<<26 && sv >= -(1<<26):
		n = 4
	}
	for i := n - 1; i > 0; i-- {
		dst = append(dst, byte(v>>(7*uint(i)))&0x7f|0x80)
	}
	return append(dst, byte(v)&0x7f)
}

// ParseInt decodes one integer from p and returns the rest.
func ParseInt(p []byte) (uint32, []byte, error) {
	if len(p) == 0 {
		return 0, p, ErrTruncated
	}
	c := p[0]
	p = p[1:]
	v := uint32(c & 0x7f)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1f)
	}
	for c&0x80 != 0 {
		if len(p) == 0 {
			return 0, p, ErrTruncated
		}
		c = p[0]
		p = p[1:]
		v = v<<7 | uint32(c&0x7f)
	}
	return v, p, nil
}
