package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// wavEnvelope reads 16-bit PCM WAV data and reduces it to buckets RMS values,
// normalized to the loudest bucket. Returns an error for non-PCM or non-16-bit
// content so the caller can decode through ffmpeg instead.
func wavEnvelope(path string, buckets int) ([]float64, error) {
	if buckets <= 0 {
		return nil, errors.New("bucket count must be positive")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	fmtChunk, data, err := readWAVChunks(f)
	if err != nil {
		return nil, err
	}
	if fmtChunk.audioFormat != 1 || fmtChunk.bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported wav encoding (format %d, %d bit)", fmtChunk.audioFormat, fmtChunk.bitsPerSample)
	}

	sampleCount := len(data) / 2
	if sampleCount == 0 {
		return make([]float64, buckets), nil
	}

	// RMS per bucket over all channels interleaved; channel separation does
	// not matter for a visualization envelope.
	envelope := make([]float64, buckets)
	bucketSize := sampleCount / buckets
	if bucketSize == 0 {
		bucketSize = 1
	}

	peak := 0.0
	for b := 0; b < buckets; b++ {
		start := b * bucketSize
		end := start + bucketSize
		if b == buckets-1 || end > sampleCount {
			end = sampleCount
		}
		if start >= end {
			break
		}

		var sumSquares float64
		for i := start; i < end; i++ {
			sample := float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
			sumSquares += sample * sample
		}
		rms := math.Sqrt(sumSquares / float64(end-start))
		envelope[b] = rms
		if rms > peak {
			peak = rms
		}
	}

	if peak > 0 {
		for i := range envelope {
			envelope[i] /= peak
		}
	}
	return envelope, nil
}

type wavFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// readWAVChunks walks the RIFF chunk list and returns the fmt descriptor and
// the raw data chunk bytes.
func readWAVChunks(r io.Reader) (*wavFormat, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, nil, errors.New("not a wav file")
	}

	var fmtChunk *wavFormat
	var data []byte

	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, nil, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(header[0:4])
		chunkSize := binary.LittleEndian.Uint32(header[4:8])

		switch chunkID {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if len(buf) < 16 {
				return nil, nil, errors.New("fmt chunk too short")
			}
			fmtChunk = &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(buf[0:2]),
				numChannels:   binary.LittleEndian.Uint16(buf[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
		case "data":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, nil, fmt.Errorf("read data chunk: %w", err)
			}
			data = buf
		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return nil, nil, fmt.Errorf("skip %s chunk: %w", chunkID, err)
			}
		}

		// chunks are word-aligned
		if chunkSize%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				break
			}
		}

		if fmtChunk != nil && data != nil {
			break
		}
	}

	if fmtChunk == nil {
		return nil, nil, errors.New("missing fmt chunk")
	}
	if data == nil {
		return nil, nil, errors.New("missing data chunk")
	}
	return fmtChunk, data, nil
}
