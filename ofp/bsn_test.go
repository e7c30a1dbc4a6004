package ofp

import (
	"testing"

	"github.com/netrack/ofagent/encoding/encodingtest"
)

func TestBSNSetIPMask(t *testing.T) {
	tests := []encodingtest.MU{
		{&BSNSetIPMask{
			Index: 0x07,
			Mask:  0xffffff00,
		}, []byte{
			0x07,             // Index.
			0x00, 0x00, 0x00, // 3-byte padding.
			0xff, 0xff, 0xff, 0x00, // Mask.
		}},
	}

	encodingtest.RunMU(t, tests)
}

func TestBSNGetIPMaskRequest(t *testing.T) {
	tests := []encodingtest.MU{
		{&BSNGetIPMaskRequest{
			Index: 0x07,
		}, []byte{
			0x07,             // Index.
			0x00, 0x00, 0x00, // 3-byte padding.
		}},
	}

	encodingtest.RunMU(t, tests)
}

func TestBSNGetIPMaskReply(t *testing.T) {
	tests := []encodingtest.MU{
		{&BSNGetIPMaskReply{
			Index: 0x07,
			Mask:  0xffffff00,
		}, []byte{
			0x07,             // Index.
			0x00, 0x00, 0x00, // 3-byte padding.
			0xff, 0xff, 0xff, 0x00, // Mask.
		}},
	}

	encodingtest.RunMU(t, tests)
}

func TestBSNHybridGetReply(t *testing.T) {
	tests := []encodingtest.MU{
		{&BSNHybridGetReply{
			HybridEnable:  0x01,
			HybridVersion: 0x00,
		}, []byte{
			0x01,       // Hybrid enable.
			0x00,       // Hybrid version.
			0x00, 0x00, // 2-byte padding.
		}},
	}

	encodingtest.RunMU(t, tests)
}
