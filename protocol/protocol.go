// Package protocol implements the framed command protocol spoken between the
// transfer daemon and its clients.
//
// A frame is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole frame, seq is 0x10 | sequence number and the
// payload is a VLQ encoded command id followed by its VLQ encoded
// arguments. A frame without payload acknowledges the sequence it carries.
package protocol

const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 255
	PayloadMax  = FrameMax - FrameMin

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F
)

// NextSeq returns the sequence byte following seq.
func NextSeq(seq byte) byte {
	return (seq+1)&SeqMask | SeqDest
}
