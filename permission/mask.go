package permission

// rootBit is reserved for the admin role.
const rootBit = 63

// Mask is a 64-bit permission set.
type Mask uint64

// Has reports whether bit is set. The root bit satisfies every query.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	if m&(1<<rootBit) != 0 {
		return true
	}
	return m&(1<<bit) != 0
}

func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

func (m Mask) Raw() uint64 {
	return uint64(m)
}
