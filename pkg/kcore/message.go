package kcore

import "encoding/binary"

// putNotifyHeader/getNotifyHeader pack the synthetic NOTIFY_* fields into
// the first bytes of a message body, the same manual-field-at-a-fixed-
// offset approach the teacher's RawTCPInfo struct uses for tcp_info's
// bitfields, adapted from struct-tag unpacking to a tiny fixed header.
func putNotifyHeader(body *[MessBodySize]byte, hdr notifyHeader) {
	binary.LittleEndian.PutUint32(body[0:4], uint32(hdr.Flags))
	binary.LittleEndian.PutUint32(body[4:8], uint32(hdr.Arg))
	binary.LittleEndian.PutUint64(body[8:16], uint64(hdr.Timestamp))
}

func getNotifyHeader(body *[MessBodySize]byte) notifyHeader {
	return notifyHeader{
		Flags:     int32(binary.LittleEndian.Uint32(body[0:4])),
		Arg:       int32(binary.LittleEndian.Uint32(body[4:8])),
		Timestamp: int64(binary.LittleEndian.Uint64(body[8:16])),
	}
}
