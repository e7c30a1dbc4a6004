package ofp

import (
	"io"

	"github.com/netrack/ofagent/internal/encoding"
)

// BSNExperimenterID identifies Big Switch Networks vendor extensions,
// the identifier handlers.c's BSN_SET_IP_MASK/BSN_GET_IP_MASK_REQUEST
// messages are carried under.
const BSNExperimenterID uint32 = 0x005c16c7

// BSN experimenter sub-types for the IP-mask vendor extension and the
// hybrid-get readback message.
const (
	BSNExpTypeSetIPMask uint32 = 1 + iota
	BSNExpTypeGetIPMaskRequest
	BSNExpTypeGetIPMaskReply
	BSNExpTypeHybridGetRequest
	BSNExpTypeHybridGetReply
)

// BSNSetIPMask installs Mask at Index in the switch's vendor IP-mask
// table.
type BSNSetIPMask struct {
	Index uint8
	Mask  uint32
}

func (m *BSNSetIPMask) WriteTo(w io.Writer) (int64, error) {
	return encoding.WriteTo(w, m.Index, pad3{}, m.Mask)
}

func (m *BSNSetIPMask) ReadFrom(r io.Reader) (int64, error) {
	return encoding.ReadFrom(r, &m.Index, &defaultPad3, &m.Mask)
}

// BSNGetIPMaskRequest asks for the mask registered at Index.
type BSNGetIPMaskRequest struct {
	Index uint8
}

func (m *BSNGetIPMaskRequest) WriteTo(w io.Writer) (int64, error) {
	return encoding.WriteTo(w, m.Index, pad3{})
}

func (m *BSNGetIPMaskRequest) ReadFrom(r io.Reader) (int64, error) {
	return encoding.ReadFrom(r, &m.Index, &defaultPad3)
}

// BSNGetIPMaskReply answers a BSNGetIPMaskRequest with the mask
// registered at Index.
type BSNGetIPMaskReply struct {
	Index uint8
	Mask  uint32
}

func (m *BSNGetIPMaskReply) WriteTo(w io.Writer) (int64, error) {
	return encoding.WriteTo(w, m.Index, pad3{}, m.Mask)
}

func (m *BSNGetIPMaskReply) ReadFrom(r io.Reader) (int64, error) {
	return encoding.ReadFrom(r, &m.Index, &defaultPad3, &m.Mask)
}

// BSNHybridGetReply answers a hybrid-get readback request with whether
// hybrid mode is enabled and at which version.
type BSNHybridGetReply struct {
	HybridEnable  uint8
	HybridVersion uint8
}

func (m *BSNHybridGetReply) WriteTo(w io.Writer) (int64, error) {
	return encoding.WriteTo(w, m.HybridEnable, m.HybridVersion, pad2{})
}

func (m *BSNHybridGetReply) ReadFrom(r io.Reader) (int64, error) {
	return encoding.ReadFrom(r, &m.HybridEnable, &m.HybridVersion, &defaultPad2)
}
