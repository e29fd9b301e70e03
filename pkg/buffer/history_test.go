package buffer

import (
	"sync"
	"testing"

	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPacket(sn uint16) *rtpcodec.RTPPacket {
	return &rtpcodec.RTPPacket{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: sn,
			SSRC:           1234,
		},
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	for sn := uint16(0); sn < 105; sn++ {
		h.Push(testPacket(sn))
	}

	pkts := h.Packets()
	require.Len(t, pkts, 100)
	for i, p := range pkts {
		assert.Equal(t, uint16(i+5), p.SequenceNumber)
	}
	assert.Equal(t, 100, h.Len())
}

func TestHistoryGet(t *testing.T) {
	h := NewHistory(3)
	for sn := uint16(10); sn < 15; sn++ {
		h.Push(testPacket(sn))
	}

	p, err := h.Get(14)
	require.NoError(t, err)
	assert.Equal(t, uint16(14), p.SequenceNumber)

	_, err = h.Get(11)
	assert.ErrorIs(t, err, ErrPacketNotFound)
}

func TestHistoryDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, NewHistory(0).Size())
	assert.Equal(t, 7, NewHistory(7).Size())
}

func TestHistoryConcurrentPush(t *testing.T) {
	h := NewHistory(50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base uint16) {
			defer wg.Done()
			for i := uint16(0); i < 100; i++ {
				h.Push(testPacket(base + i))
				_ = h.Packets()
			}
		}(uint16(w * 1000))
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

func TestFactory(t *testing.T) {
	f := NewFactory(10)
	assert.Nil(t, f.GetHistory("video"))

	h := f.GetOrNew("video")
	require.NotNil(t, h)
	assert.Same(t, h, f.GetOrNew("video"))
	assert.Same(t, h, f.GetHistory("video"))
	assert.Equal(t, 10, h.Size())
	assert.Equal(t, 1, f.Len())

	f.GetOrNew("audio")
	f.Remove("video")
	assert.Nil(t, f.GetHistory("video"))
	assert.Equal(t, 1, f.Len())
}
