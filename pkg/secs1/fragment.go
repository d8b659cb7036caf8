package secs1

import (
	"fmt"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// MaxBlocksPerMessage is the largest block count a message can be split
// into: BlockNumber is an 8-bit field that must start at 1.
const MaxBlocksPerMessage = 255

// FragmentMessage splits payload into a sequence of wire-ready block
// frames, each carrying at most MaxDataLen bytes, numbered 1..N, with
// EndBit set only on the last block. An empty payload yields exactly one
// block: block_number=1, end_bit=true, empty data (spec.md §4.2).
func FragmentMessage(base Header, payload []byte) ([][]byte, error) {
	n := (len(payload) + MaxDataLen - 1) / MaxDataLen
	if n == 0 {
		n = 1
	}
	if n > MaxBlocksPerMessage {
		return nil, secserr.Wrap("secs1.FragmentMessage", secserr.ErrInvalidArgument, fmt.Errorf("payload requires %d blocks, exceeds %d", n, MaxBlocksPerMessage))
	}

	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * MaxDataLen
		end := start + MaxDataLen
		if end > len(payload) {
			end = len(payload)
		}
		h := base
		h.BlockNumber = uint8(i + 1)
		h.EndBit = i == n-1

		frame, err := EncodeBlock(h, payload[start:end])
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
