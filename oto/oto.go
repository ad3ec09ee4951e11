package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player plays a Monitor through the default audio device.
type Player struct {
	player *oto.Player
}

const otoBufferSize = 50 * time.Millisecond

// Play creates the oto context and starts playing r, which must produce
// interleaved stereo float32 samples at SampleRate. Only one Player can be
// created per process.
func Play(r io.Reader) (*Player, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	p := context.NewPlayer(r)
	p.Play()
	return &Player{player: p}, nil
}

// Close stops the playback.
func (p *Player) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
