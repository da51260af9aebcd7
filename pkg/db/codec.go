package db

import "encoding/binary"

// Registry records are length-prefixed binary with a leading schema version
// byte. Decoders are registered per version; a reader hitting an older
// version fills the missing fields with documented defaults (valid=true,
// website absent, stats unknown) instead of refusing the record. Writers
// always emit the newest version.

const (
	canisterSchemaV1 = 1 // proxy id, proxy type, project
	canisterSchemaV2 = 2 // + website, valid flag, cached stats

	projectSchemaV1 = 1 // website
	projectSchemaV2 = 2 // + cached aggregates
)

const (
	statsBurn1h = 1 << iota
	statsBurn24h
	statsBurn7d
)

var canisterDecoders = map[byte]func(buf []byte) CanisterMeta{
	canisterSchemaV1: decodeCanisterV1,
	canisterSchemaV2: decodeCanisterV2,
}

var projectDecoders = map[byte]func(buf []byte) ProjectMeta{
	projectSchemaV1: decodeProjectV1,
	projectSchemaV2: decodeProjectV2,
}

func encodeCanister(m CanisterMeta) []byte {
	buf := make([]byte, 0, 64+len(m.ProxyID)+len(m.Project)+len(m.Website))
	buf = append(buf, canisterSchemaV2)
	buf = appendLPString(buf, m.ProxyID)
	buf = append(buf, byte(m.ProxyType))
	buf = appendLPString(buf, m.Project)
	buf = appendLPString(buf, m.Website)
	if m.Valid {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendStats(buf, m.Stats)
	return buf
}

// decodeCanister never fails: unknown versions and short records decode to
// whatever prefix is readable, with defaults for the rest.
func decodeCanister(buf []byte) CanisterMeta {
	if len(buf) == 0 {
		return CanisterMeta{Valid: true}
	}
	decode, ok := canisterDecoders[buf[0]]
	if !ok {
		// Newer-than-known or corrupt version byte: read the common prefix.
		decode = decodeCanisterV1
	}
	return decode(buf[1:])
}

func decodeCanisterV1(buf []byte) CanisterMeta {
	m := CanisterMeta{Valid: true}
	m.ProxyID, buf = readLPString(buf)
	if len(buf) > 0 {
		m.ProxyType = ProxyType(buf[0])
		buf = buf[1:]
	}
	m.Project, _ = readLPString(buf)
	return m
}

func decodeCanisterV2(buf []byte) CanisterMeta {
	m := CanisterMeta{Valid: true}
	m.ProxyID, buf = readLPString(buf)
	if len(buf) > 0 {
		m.ProxyType = ProxyType(buf[0])
		buf = buf[1:]
	}
	m.Project, buf = readLPString(buf)
	m.Website, buf = readLPString(buf)
	if len(buf) > 0 {
		m.Valid = buf[0] != 0
		buf = buf[1:]
	}
	m.Stats, _ = readStats(buf)
	return m
}

func encodeProject(m ProjectMeta) []byte {
	buf := make([]byte, 0, 48+len(m.Website))
	buf = append(buf, projectSchemaV2)
	buf = appendLPString(buf, m.Website)
	buf = binary.BigEndian.AppendUint64(buf, m.Stats.CanisterCount)
	buf = binary.BigEndian.AppendUint64(buf, m.Stats.TotalBalance)
	buf = appendBurnFlags(buf, m.Stats.TotalBurn1h, m.Stats.TotalBurn24h, m.Stats.TotalBurn7d)
	return buf
}

func decodeProject(buf []byte) ProjectMeta {
	if len(buf) == 0 {
		return ProjectMeta{}
	}
	decode, ok := projectDecoders[buf[0]]
	if !ok {
		decode = decodeProjectV1
	}
	return decode(buf[1:])
}

func decodeProjectV1(buf []byte) ProjectMeta {
	var m ProjectMeta
	m.Website, _ = readLPString(buf)
	return m
}

func decodeProjectV2(buf []byte) ProjectMeta {
	var m ProjectMeta
	m.Website, buf = readLPString(buf)
	if len(buf) >= 16 {
		m.Stats.CanisterCount = binary.BigEndian.Uint64(buf)
		m.Stats.TotalBalance = binary.BigEndian.Uint64(buf[8:])
		buf = buf[16:]
	}
	m.Stats.TotalBurn1h, m.Stats.TotalBurn24h, m.Stats.TotalBurn7d, _ = readBurnFlags(buf)
	return m
}

func appendStats(buf []byte, s CanisterStats) []byte {
	buf = binary.BigEndian.AppendUint64(buf, s.Balance)
	return appendBurnFlags(buf, s.Burn1h, s.Burn24h, s.Burn7d)
}

func readStats(buf []byte) (CanisterStats, []byte) {
	var s CanisterStats
	if len(buf) < 8 {
		return s, nil
	}
	s.Balance = binary.BigEndian.Uint64(buf)
	s.Burn1h, s.Burn24h, s.Burn7d, buf = readBurnFlags(buf[8:])
	return s, buf
}

// appendBurnFlags writes a presence bitmap followed by three fixed u64
// slots; absent windows write zero and stay distinguishable from a real
// zero burn.
func appendBurnFlags(buf []byte, b1h, b24h, b7d *uint64) []byte {
	var flags byte
	vals := [3]uint64{}
	for i, p := range [3]*uint64{b1h, b24h, b7d} {
		if p != nil {
			flags |= 1 << i
			vals[i] = *p
		}
	}
	buf = append(buf, flags)
	for _, v := range vals {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	return buf
}

func readBurnFlags(buf []byte) (b1h, b24h, b7d *uint64, rest []byte) {
	if len(buf) < 25 {
		return nil, nil, nil, nil
	}
	flags := buf[0]
	out := [3]*uint64{}
	for i := range out {
		if flags&(1<<i) != 0 {
			v := binary.BigEndian.Uint64(buf[1+8*i:])
			out[i] = &v
		}
	}
	return out[0], out[1], out[2], buf[25:]
}

func appendLPString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// readLPString returns the string and the remaining buffer; malformed
// lengths yield an empty string and stop further reads.
func readLPString(buf []byte) (string, []byte) {
	if len(buf) < 2 {
		return "", nil
	}
	n := int(binary.BigEndian.Uint16(buf))
	buf = buf[2:]
	if n > len(buf) {
		return "", nil
	}
	return string(buf[:n]), buf[n:]
}
