package audio

import (
	"fmt"
	"os"
)

// One MPEG-1 Layer III frame, 128 kbit/s, 44.1 kHz mono, no padding. A zeroed
// body decodes to silence.
var silentFrameHeader = [4]byte{0xFF, 0xFB, 0x90, 0xC4}

const (
	silentFrameSize  = 417
	silentFrameCount = 4
)

func silenceMP3() []byte {
	data := make([]byte, silentFrameSize*silentFrameCount)
	for i := 0; i < silentFrameCount; i++ {
		copy(data[i*silentFrameSize:], silentFrameHeader[:])
	}
	return data
}

func writeSilence(path string) error {
	if err := os.WriteFile(path, silenceMP3(), 0644); err != nil {
		return fmt.Errorf("write silence: %w", err)
	}
	return nil
}
