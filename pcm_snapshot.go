package main

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// pcmSnapshotMagic identifies the container format: a small fixed header
// (magic, stream id length, sample rate, compressed payload length)
// followed by the stream id and the zstd-compressed PCM payload. This is a debug/status export only — it is not part of the
// comparator or silence probe's internal contract.
var pcmSnapshotMagic = [4]byte{'R', 'W', 'S', '1'}

// pcmSnapshotEncoderPool reuses zstd encoders the way the teacher's PCM
// binary encoder does, to avoid re-initializing the compressor per request.
var pcmSnapshotEncoderPool = sync.Pool{
	New: func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	},
}

// EncodePcmSnapshot packages a PcmWindow snapshot for export: a short
// header naming the stream and format, then the zstd-compressed raw PCM.
func EncodePcmSnapshot(id StreamId, pcm []byte) []byte {
	enc := pcmSnapshotEncoderPool.Get().(*zstd.Encoder)
	defer pcmSnapshotEncoderPool.Put(enc)

	compressed := enc.EncodeAll(pcm, make([]byte, 0, len(pcm)/2))

	idBytes := []byte(id)
	header := make([]byte, 4+2+4+4)
	copy(header[0:4], pcmSnapshotMagic[:])
	binary.BigEndian.PutUint16(header[4:6], uint16(len(idBytes)))
	binary.BigEndian.PutUint32(header[6:10], sampleRate)
	binary.BigEndian.PutUint32(header[10:14], uint32(len(compressed)))

	out := make([]byte, 0, len(header)+len(idBytes)+len(compressed))
	out = append(out, header...)
	out = append(out, idBytes...)
	out = append(out, compressed...)
	return out
}

// PcmSnapshotSource supplies the raw PcmWindow for a given stream, or ok=false
// if the stream isn't registered.
type PcmSnapshotSource interface {
	PcmWindowFor(id StreamId) (*PcmWindow, bool)
}

// PcmSnapshotHandler serves GET /pcm?stream=<id> with the zstd-compressed
// snapshot body, for operators debugging a specific stream's silence probe.
func PcmSnapshotHandler(source PcmSnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := r.URL.Query().Get("stream")
		if stream == "" {
			http.Error(w, "missing stream query parameter", http.StatusBadRequest)
			return
		}

		window, ok := source.PcmWindowFor(StreamId(stream))
		if !ok {
			http.Error(w, fmt.Sprintf("unknown stream %q", stream), http.StatusNotFound)
			return
		}

		body := EncodePcmSnapshot(StreamId(stream), window.Snapshot())
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(body)
	}
}
